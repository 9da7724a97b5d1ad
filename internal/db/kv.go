// internal/db/kv.go
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVStore is a cache.Cache persisted in the kvs table, so lookup tables
// survive between runs without a redis server.
type KVStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ cache.Cache = (*KVStore)(nil)

func (h *Handle) KV() *KVStore {
	return &KVStore{db: h.DB, now: time.Now}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row KV
	err := s.db.WithContext(ctx).Where("k = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cache.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	if row.ExpiresAt != nil && !s.now().Before(*row.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, cache.ErrCacheMiss
	}
	return row.V, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	row := KV{K: key, V: value}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		row.ExpiresAt = &exp
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("k = ?", key).Delete(&KV{}).Error
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

func (s *KVStore) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	v, err := s.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}
	v, err = fn()
	if err != nil {
		return nil, err
	}
	if err := s.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *KVStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1=1").Delete(&KV{}).Error
}

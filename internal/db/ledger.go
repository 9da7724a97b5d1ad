// internal/db/ledger.go
package db

import (
	"context"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/syncer"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Ledger records sync runs and failed items. Write errors are logged and
// never reach the sync.
type Ledger struct {
	log   zerolog.Logger
	db    *gorm.DB
	store string
}

var _ syncer.Recorder = (*Ledger)(nil)

func (h *Handle) Ledger(log zerolog.Logger, store string) *Ledger {
	return &Ledger{log: log, db: h.DB, store: store}
}

func (l *Ledger) RunStarted(ctx context.Context, s *syncer.Summary) {
	run := SyncRun{
		RunID:     s.RunID,
		Deposit:   s.Deposit,
		TempSheet: s.TempSheet,
		Sheet:     s.FinalSheet,
		Store:     l.store,
		Location:  s.Location,
		Status:    StatusRunning,
		StartedAt: s.StartedAt,
	}
	if err := l.db.WithContext(ctx).Create(&run).Error; err != nil {
		l.log.Warn().Err(err).Str("run_id", s.RunID).Msg("ledger: create run failed")
	}
}

func (l *Ledger) ItemFailed(ctx context.Context, runID, itemID string, err error) {
	row := ItemFailure{RunID: runID, ItemID: itemID, Reason: err.Error()}
	if werr := l.db.WithContext(ctx).Create(&row).Error; werr != nil {
		l.log.Warn().Err(werr).Str("run_id", runID).Str("item_id", itemID).Msg("ledger: save failure failed")
	}
}

func (l *Ledger) RunFinished(ctx context.Context, s *syncer.Summary, runErr error) {
	finished := s.FinishedAt
	upd := map[string]interface{}{
		"resumed":     s.Resumed,
		"total":       s.Total,
		"processed":   s.Processed,
		"failed":      s.Failed,
		"flushes":     s.Flushes,
		"status":      StatusDone,
		"last_error":  "",
		"finished_at": &finished,
	}
	if runErr != nil {
		upd["status"] = StatusError
		upd["last_error"] = runErr.Error()
	}
	// the run may be cancelled by now
	err := l.db.WithContext(context.WithoutCancel(ctx)).Model(&SyncRun{}).
		Where("run_id = ?", s.RunID).Updates(upd).Error
	if err != nil {
		l.log.Warn().Err(err).Str("run_id", s.RunID).Msg("ledger: finish run failed")
	}
}

// Runs lists the latest runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []SyncRun
	err := l.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&out).Error
	return out, err
}

func (l *Ledger) Failures(ctx context.Context, runID string) ([]ItemFailure, error) {
	var out []ItemFailure
	err := l.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&out).Error
	return out, err
}

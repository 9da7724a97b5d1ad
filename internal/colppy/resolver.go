// internal/colppy/resolver.go
package colppy

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/cache"
	"github.com/rs/zerolog"
)

type companyLister func(ctx context.Context) ([]Company, error)

type costCenterLister func(ctx context.Context, ccType int) ([]CostCenterCode, error)

// CompanyResolver keeps the name -> id map of companies the user can query.
type CompanyResolver struct {
	log   zerolog.Logger
	list  companyLister
	cache cache.Cache
	key   string
	ttl   time.Duration

	byName  map[string]string
	loaded  bool
	fetches int
}

func NewCompanyResolver(log zerolog.Logger, list companyLister, c cache.Cache, key string, ttl time.Duration) *CompanyResolver {
	return &CompanyResolver{log: log, list: list, cache: c, key: key, ttl: ttl, byName: map[string]string{}}
}

// Seed adds known companies without a network call.
func (r *CompanyResolver) Seed(byName map[string]string) {
	for name, id := range byName {
		r.byName[name] = id
	}
}

// IsValid checks the cached map first and refetches at most once on a miss.
func (r *CompanyResolver) IsValid(ctx context.Context, id string) (bool, error) {
	r.loadCached(ctx)
	if len(r.byName) == 0 {
		if err := r.Refresh(ctx); err != nil {
			return false, err
		}
		return r.has(id), nil
	}
	if r.has(id) {
		return true, nil
	}
	r.log.Info().Str("company_id", id).Msg("company not cached, refreshing list")
	if err := r.Refresh(ctx); err != nil {
		return false, err
	}
	return r.has(id), nil
}

// Companies returns name -> id, fetching the list when nothing is known yet.
func (r *CompanyResolver) Companies(ctx context.Context) (map[string]string, error) {
	r.loadCached(ctx)
	if len(r.byName) == 0 {
		if err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	out := make(map[string]string, len(r.byName))
	for k, v := range r.byName {
		out[k] = v
	}
	return out, nil
}

// Refresh replaces the map with the remote list.
func (r *CompanyResolver) Refresh(ctx context.Context) error {
	companies, err := r.list(ctx)
	r.fetches++
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(companies))
	for _, c := range companies {
		byName[c.Name] = string(c.ID)
	}
	r.byName = byName
	r.log.Info().Int("companies", len(byName)).Msg("available companies updated")
	if err := cache.SetJSON(ctx, r.cache, r.key, byName, r.ttl); err != nil {
		r.log.Warn().Err(err).Msg("could not cache companies")
	}
	return nil
}

func (r *CompanyResolver) Fetches() int { return r.fetches }

func (r *CompanyResolver) has(id string) bool {
	for _, v := range r.byName {
		if v == id {
			return true
		}
	}
	return false
}

func (r *CompanyResolver) loadCached(ctx context.Context) {
	if r.loaded {
		return
	}
	r.loaded = true
	var cached map[string]string
	ok, err := cache.GetJSON(ctx, r.cache, r.key, &cached)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not read cached companies")
		return
	}
	if ok {
		r.Seed(cached)
	}
}

// DefaultCostCenters is the built-in name -> code table per cost center type.
func DefaultCostCenters() map[int]map[string]string {
	return map[int]map[string]string{
		1: {
			"Ecommerce":      "33515",
			"Local":          "33516",
			"Mayorista":      "33517",
			"B2B":            "33518",
			"Showroom Malab": "39036",
		},
		2: {},
	}
}

// CostCenterCache resolves cost center display names to codes. Blank names
// mean "no filter". Unknown names trigger one refetch; when still unknown the
// filter is disabled instead of failing.
type CostCenterCache struct {
	log       zerolog.Logger
	list      costCenterLister
	cache     cache.Cache
	keyPrefix string
	ttl       time.Duration
	// company scopes cache keys when set
	company func() string

	codes   map[int]map[string]string
	loaded  map[string]bool
	fetches int
}

func NewCostCenterCache(log zerolog.Logger, list costCenterLister, c cache.Cache, keyPrefix string, ttl time.Duration) *CostCenterCache {
	return &CostCenterCache{
		log:       log,
		list:      list,
		cache:     c,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		codes:     DefaultCostCenters(),
		loaded:    map[string]bool{},
	}
}

// Seed merges codes for ccType, keeping names already known.
func (c *CostCenterCache) Seed(ccType int, byName map[string]string) {
	m, ok := c.codes[ccType]
	if !ok {
		m = map[string]string{}
		c.codes[ccType] = m
	}
	for name, code := range byName {
		if _, exists := m[name]; !exists {
			m[name] = code
		}
	}
}

// Resolve returns the code for name. ok is false when no filter applies.
func (c *CostCenterCache) Resolve(ctx context.Context, ccType int, name string) (string, bool, error) {
	if strings.TrimSpace(name) == "" {
		return "", false, nil
	}
	if err := ValidateCostCenterType(ccType); err != nil {
		return "", false, err
	}
	c.loadCached(ctx, ccType)
	if code, ok := c.codes[ccType][name]; ok {
		return code, code != "", nil
	}
	if err := c.Refresh(ctx, ccType); err != nil {
		return "", false, err
	}
	if code, ok := c.codes[ccType][name]; ok {
		return code, code != "", nil
	}
	c.log.Warn().Int("type", ccType).Str("name", name).Msg("unknown cost center, filter disabled")
	return "", false, nil
}

// Refresh merges the remote codes of ccType into the table.
func (c *CostCenterCache) Refresh(ctx context.Context, ccType int) error {
	if err := ValidateCostCenterType(ccType); err != nil {
		return err
	}
	list, err := c.list(ctx, ccType)
	c.fetches++
	if err != nil {
		return err
	}
	fetched := make(map[string]string, len(list))
	for _, cc := range list {
		fetched[cc.Code] = string(cc.ID)
	}
	c.Seed(ccType, fetched)
	c.log.Info().Int("type", ccType).Int("codes", len(c.codes[ccType])).Msg("cost centers updated")
	if err := cache.SetJSON(ctx, c.cache, c.key(ccType), c.codes[ccType], c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("could not cache cost centers")
	}
	return nil
}

// Codes returns a copy of the name -> code table for ccType.
func (c *CostCenterCache) Codes(ccType int) map[string]string {
	out := make(map[string]string, len(c.codes[ccType]))
	for k, v := range c.codes[ccType] {
		out[k] = v
	}
	return out
}

func (c *CostCenterCache) Fetches() int { return c.fetches }

func (c *CostCenterCache) key(ccType int) string {
	if c.company != nil {
		return c.keyPrefix + ":" + c.company() + ":" + strconv.Itoa(ccType)
	}
	return c.keyPrefix + ":" + strconv.Itoa(ccType)
}

func (c *CostCenterCache) loadCached(ctx context.Context, ccType int) {
	key := c.key(ccType)
	if c.loaded[key] {
		return
	}
	c.loaded[key] = true
	var cached map[string]string
	ok, err := cache.GetJSON(ctx, c.cache, key, &cached)
	if err != nil {
		c.log.Warn().Err(err).Int("type", ccType).Msg("could not read cached cost centers")
		return
	}
	if ok {
		c.Seed(ccType, cached)
	}
}

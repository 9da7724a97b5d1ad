// internal/colppy/client.go
package colppy

import (
	"context"
	"fmt"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/cache"
	"github.com/rs/zerolog"
)

// Defaults are the configured seeds for company and cost center lookups.
type Defaults struct {
	CompanyID          string                       `json:"company_id"`
	AvailableCompanies map[string]string            `json:"available_companies,omitempty"`
	AvailableCCosts    map[string]map[string]string `json:"available_ccosts,omitempty"` // "1"/"2" -> name -> code
}

// Client is the Colppy API surface used by the CLI and the syncer.
type Client struct {
	log         zerolog.Logger
	store       *TemplateStore
	caller      *Caller
	session     *SessionManager
	companies   *CompanyResolver
	costCenters *CostCenterCache
}

type Option func(*options)

type options struct {
	cache    cache.Cache
	cacheTTL time.Duration
	observer Observer
	now      func() time.Time
	keyScope string
}

// WithCache persists company and cost center tables between runs.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *options) { o.cache = c; o.cacheTTL = ttl }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCacheScope namespaces cache keys, e.g. by state.
func WithCacheScope(scope string) Option {
	return func(o *options) { o.keyScope = scope }
}

func New(log zerolog.Logger, templates Templates, defaults Defaults, tr Transport, opts ...Option) (*Client, error) {
	o := options{now: time.Now, keyScope: "default"}
	for _, fn := range opts {
		fn(&o)
	}

	store, err := NewTemplateStore(templates, defaults.CompanyID)
	if err != nil {
		return nil, err
	}
	c := &Client{
		log:    log,
		store:  store,
		caller: NewCaller(log.With().Str("component", "caller").Logger(), tr, o.observer),
	}
	c.session = NewSessionManager(log.With().Str("component", "session").Logger(), store, c.caller)
	c.session.now = o.now

	user := store.sessionUser
	c.companies = NewCompanyResolver(log, c.listCompanies, o.cache,
		fmt.Sprintf("%s:companies:%s", o.keyScope, user), o.cacheTTL)
	c.companies.Seed(defaults.AvailableCompanies)

	c.costCenters = NewCostCenterCache(log, c.listCostCentersDefault, o.cache,
		o.keyScope+":ccost", o.cacheTTL)
	c.costCenters.company = store.CompanyID
	for key, byName := range defaults.AvailableCCosts {
		switch key {
		case "1":
			c.costCenters.Seed(1, byName)
		case "2":
			c.costCenters.Seed(2, byName)
		default:
			return nil, &ConfigurationError{Reason: fmt.Sprintf("available_ccosts key %q must be 1 or 2", key)}
		}
	}
	return c, nil
}

func (c *Client) Session() *SessionManager { return c.session }
func (c *Client) CompanyResolver() *CompanyResolver { return c.companies }
func (c *Client) CostCenterCache() *CostCenterCache { return c.costCenters }
func (c *Client) Store() *TemplateStore { return c.store }

// EnsureSession re-validates the session token, renewing it when expired.
func (c *Client) EnsureSession(ctx context.Context) error {
	_, err := c.session.Token(ctx)
	return err
}

// do checks p, opens the session, builds the payload and sends it.
// Invalid parameters fail before any request is made.
func (c *Client) do(ctx context.Context, op Operation, p Params) (*Response, error) {
	if err := c.store.Validate(op, p); err != nil {
		return nil, err
	}
	if _, err := c.session.Token(ctx); err != nil {
		return nil, err
	}
	if p.CompanyID != "" && scopes[op].company {
		if err := c.checkCompany(ctx, p.CompanyID); err != nil {
			return nil, err
		}
	}
	payload, err := c.store.Build(op, p)
	if err != nil {
		return nil, err
	}
	return c.caller.Call(ctx, op, payload)
}

func (c *Client) checkCompany(ctx context.Context, id string) error {
	if err := ValidateCompanyID(id); err != nil {
		return err
	}
	ok, err := c.companies.IsValid(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{Field: "companyId", Value: id, Err: ErrUnknownCompany}
	}
	return nil
}

func (c *Client) listCompanies(ctx context.Context) ([]Company, error) {
	resp, err := c.do(ctx, OpListCompanies, Params{})
	if err != nil {
		return nil, err
	}
	return decodeList[Company](OpListCompanies, resp)
}

func (c *Client) listCostCentersDefault(ctx context.Context, ccType int) ([]CostCenterCode, error) {
	return c.CostCenters(ctx, ccType, "")
}

// Companies returns the available companies, name -> id.
func (c *Client) Companies(ctx context.Context) (map[string]string, error) {
	return c.companies.Companies(ctx)
}

// CostCenters lists the codes of one cost center type.
func (c *Client) CostCenters(ctx context.Context, ccType int, companyID string) ([]CostCenterCode, error) {
	if err := ValidateCostCenterType(ccType); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, OpListCostCenters, Params{CompanyID: companyID, CostCenterType: &ccType})
	if err != nil {
		return nil, err
	}
	return decodeList[CostCenterCode](OpListCostCenters, resp)
}

func (c *Client) Inventory(ctx context.Context, companyID string) ([]Record, error) {
	resp, err := c.do(ctx, OpListInventory, Params{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	items, err := decodeRecords(OpListInventory, resp)
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("items", len(items)).Msg("inventory fetched")
	return items, nil
}

// DepositsForItem lists the per-deposit stock rows of one item.
func (c *Client) DepositsForItem(ctx context.Context, itemID, companyID string) ([]Record, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, OpListDeposits, Params{CompanyID: companyID, ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return decodeRecords(OpListDeposits, resp)
}

func (c *Client) Invoices(ctx context.Context, dates []string, companyID string) ([]Record, error) {
	resp, err := c.do(ctx, OpListInvoices, Params{CompanyID: companyID, Dates: dates})
	if err != nil {
		return nil, err
	}
	invoices, err := decodeRecords(OpListInvoices, resp)
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("invoices", len(invoices)).Msg("invoices fetched")
	return invoices, nil
}

func (c *Client) Diary(ctx context.Context, dates []string, companyID string) ([]Record, error) {
	resp, err := c.do(ctx, OpListDiary, Params{CompanyID: companyID, Dates: dates})
	if err != nil {
		return nil, err
	}
	movs, err := decodeRecords(OpListDiary, resp)
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("movements", len(movs)).Msg("diary fetched")
	return movs, nil
}

// FilteredDiary keeps the movements matching both cost centers. A name that
// is blank or still unknown after a refresh matches every movement.
func (c *Client) FilteredDiary(ctx context.Context, q DiaryQuery) ([]Record, error) {
	movs, err := c.Diary(ctx, q.Dates, q.CompanyID)
	if err != nil {
		return nil, err
	}
	code1, on1, err := c.costCenters.Resolve(ctx, 1, q.CostCenter1)
	if err != nil {
		return nil, err
	}
	code2, on2, err := c.costCenters.Resolve(ctx, 2, q.CostCenter2)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(movs))
	for _, m := range movs {
		if on1 && m.String("ccosto1") != code1 {
			continue
		}
		if on2 && m.String("ccosto2") != code2 {
			continue
		}
		out = append(out, m)
	}
	c.log.Info().
		Str("ccost1", q.CostCenter1).
		Str("ccost2", q.CostCenter2).
		Int("kept", len(out)).
		Int("total", len(movs)).
		Msg("diary filtered by cost centers")
	return out, nil
}

// internal/colppy/store.go
package colppy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Params carries the per-call context. Zero values (nil for Dates and
// CostCenterType) mean "not given": the store falls back to the last value
// used, then to the configured default.
type Params struct {
	CompanyID      string
	Dates          []string
	CostCenterType *int
	ItemID         string
}

// TemplateStore builds outgoing payloads from templates and the sticky
// session context (session key, company, dates, cost center type, item).
type TemplateStore struct {
	templates      Templates
	defaultCompany string

	sessionUser string
	sessionKey  string

	lastCompany    string
	lastDates      *DateRange
	lastCostCenter int
	lastItem       string
}

func NewTemplateStore(t Templates, defaultCompany string) (*TemplateStore, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if defaultCompany != "" {
		if err := ValidateCompanyID(defaultCompany); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("default company id %q is not an integer", defaultCompany)}
		}
	}
	s := &TemplateStore{templates: t, defaultCompany: defaultCompany}
	if u, ok := t[OpLogin].Parameters["usuario"].(string); ok {
		s.sessionUser = u
	}
	return s, nil
}

// SetSession stamps the session key on every later payload.
func (s *TemplateStore) SetSession(key string) {
	s.sessionKey = key
}

func (s *TemplateStore) HasSession() bool { return s.sessionKey != "" }

// CompanyID returns the company the next company-scoped call would use.
func (s *TemplateStore) CompanyID() string {
	if s.lastCompany != "" {
		return s.lastCompany
	}
	return s.defaultCompany
}

// Validate checks p against op's requirements without touching any state.
// The session key is not checked; it is obtained after validation.
func (s *TemplateStore) Validate(op Operation, p Params) error {
	if _, ok := s.templates[op]; !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("no payload template for %q", op)}
	}
	sc := scopes[op]
	if sc.company {
		if _, err := s.resolveCompany(p.CompanyID); err != nil {
			return err
		}
	}
	if sc.dates {
		if _, err := s.resolveDates(p.Dates); err != nil {
			return err
		}
	}
	if sc.costCenter {
		if _, err := s.resolveCostCenterType(p.CostCenterType); err != nil {
			return err
		}
	}
	if sc.item {
		if _, err := s.resolveItem(p.ItemID); err != nil {
			return err
		}
	}
	return nil
}

// Build validates p against op's requirements and returns a fresh payload.
// Sticky values are only updated when the whole build succeeds.
func (s *TemplateStore) Build(op Operation, p Params) (Payload, error) {
	tmpl, ok := s.templates[op]
	if !ok {
		return Payload{}, &ConfigurationError{Reason: fmt.Sprintf("no payload template for %q", op)}
	}
	sc := scopes[op]

	if sc.session && s.sessionKey == "" {
		return Payload{}, missing("session")
	}

	var (
		company string
		dates   DateRange
		ccType  int
		item    string
		err     error
	)
	if sc.company {
		if company, err = s.resolveCompany(p.CompanyID); err != nil {
			return Payload{}, err
		}
	}
	if sc.dates {
		if dates, err = s.resolveDates(p.Dates); err != nil {
			return Payload{}, err
		}
	}
	if sc.costCenter {
		if ccType, err = s.resolveCostCenterType(p.CostCenterType); err != nil {
			return Payload{}, err
		}
	}
	if sc.item {
		if item, err = s.resolveItem(p.ItemID); err != nil {
			return Payload{}, err
		}
	}

	out := Payload{Auth: tmpl.Auth, Service: tmpl.Service, Parameters: copyMap(tmpl.Parameters)}
	if sc.session {
		out.Parameters["sesion"] = map[string]any{"usuario": s.sessionUser, "claveSesion": s.sessionKey}
	}
	if sc.company {
		out.Parameters["idEmpresa"] = company
	}
	if sc.dates {
		if err := setDates(op, out.Parameters, dates); err != nil {
			return Payload{}, err
		}
	}
	if sc.costCenter {
		out.Parameters["ccosto"] = ccType
	}
	if sc.item {
		out.Parameters["idItem"] = item
	}

	if sc.company {
		s.lastCompany = company
	}
	if sc.dates {
		s.lastDates = &dates
	}
	if sc.costCenter {
		s.lastCostCenter = ccType
	}
	if sc.item {
		s.lastItem = item
	}
	return out, nil
}

// explicit -> last used -> configured default -> error
func (s *TemplateStore) resolveCompany(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateCompanyID(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}
	if s.lastCompany != "" {
		return s.lastCompany, nil
	}
	if s.defaultCompany != "" {
		return s.defaultCompany, nil
	}
	return "", missing("companyId")
}

func (s *TemplateStore) resolveDates(explicit []string) (DateRange, error) {
	if explicit != nil {
		return NewDateRange(explicit...)
	}
	if s.lastDates != nil {
		return *s.lastDates, nil
	}
	return DateRange{}, missing("dateRange")
}

func (s *TemplateStore) resolveCostCenterType(explicit *int) (int, error) {
	if explicit != nil {
		if err := ValidateCostCenterType(*explicit); err != nil {
			return 0, err
		}
		return *explicit, nil
	}
	if s.lastCostCenter != 0 {
		return s.lastCostCenter, nil
	}
	return 0, missing("costCenterType")
}

func (s *TemplateStore) resolveItem(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateItemID(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}
	if s.lastItem != "" {
		return s.lastItem, nil
	}
	return "", missing("itemId")
}

func setDates(op Operation, params map[string]any, r DateRange) error {
	switch op {
	case OpListDiary:
		params["fromDate"] = r.From()
		params["toDate"] = r.To()
	case OpListInvoices:
		filters, ok := params["filter"].([]any)
		if !ok || len(filters) < 2 {
			return &ConfigurationError{Reason: "list_invoices template needs two date filters"}
		}
		for i, v := range []string{r.From(), r.To()} {
			f, ok := filters[i].(map[string]any)
			if !ok {
				return &ConfigurationError{Reason: fmt.Sprintf("list_invoices filter %d is not an object", i)}
			}
			f["value"] = v
		}
	}
	return nil
}

func ValidateCompanyID(id string) error {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return &ValidationError{Field: "companyId", Value: id, Err: ErrInvalidCompanyID}
	}
	return nil
}

func ValidateCostCenterType(t int) error {
	if t != 1 && t != 2 {
		return &ValidationError{Field: "costCenterType", Value: t, Err: ErrInvalidCostCenterType}
	}
	return nil
}

func ValidateItemID(id string) error {
	if id == "" {
		return &ValidationError{Field: "itemId", Value: id, Err: ErrInvalidItemID}
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "itemId", Value: id, Err: ErrInvalidItemID}
		}
	}
	return nil
}

// ItemIDOf stringifies an item id given as a string or an integer.
func ItemIDOf(v any) (string, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		if x != math.Trunc(x) {
			return "", &ValidationError{Field: "itemId", Value: v, Err: ErrInvalidItemID}
		}
		s = strconv.FormatFloat(x, 'f', 0, 64)
	case json.Number:
		s = x.String()
	default:
		return "", &ValidationError{Field: "itemId", Value: v, Err: ErrInvalidItemID}
	}
	if err := ValidateItemID(s); err != nil {
		return "", err
	}
	return s, nil
}

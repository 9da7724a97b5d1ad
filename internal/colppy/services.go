// internal/colppy/services.go
package colppy

type Operation string

const (
	OpLogin           Operation = "login"
	OpListCompanies   Operation = "list_companies"
	OpListCostCenters Operation = "list_ccost"
	OpListDiary       Operation = "list_diary"
	OpListInvoices    Operation = "list_invoices"
	OpListInventory   Operation = "list_inventory"
	OpListDeposits    Operation = "list_deposits_for_item"
)

// Operations in the order they are written to the templates file.
var Operations = []Operation{
	OpLogin,
	OpListCompanies,
	OpListCostCenters,
	OpListDiary,
	OpListInvoices,
	OpListInventory,
	OpListDeposits,
}

type Service struct {
	Provision string `json:"provision" yaml:"provision"`
	Operation string `json:"operacion" yaml:"operacion"`
}

var services = map[Operation]Service{
	OpLogin:           {Provision: "Usuario", Operation: "iniciar_sesion"},
	OpListCompanies:   {Provision: "Empresa", Operation: "listar_empresa"},
	OpListCostCenters: {Provision: "Empresa", Operation: "listar_ccostos"},
	OpListDiary:       {Provision: "Contabilidad", Operation: "listar_movimientosdiario"},
	OpListInvoices:    {Provision: "FacturaVenta", Operation: "listar_facturasventa"},
	OpListInventory:   {Provision: "Inventario", Operation: "listar_itemsinventario"},
	OpListDeposits:    {Provision: "Inventario", Operation: "listar_dispDeposito"},
}

// ServiceFor returns the provision/operacion pair of op.
func ServiceFor(op Operation) (Service, bool) {
	s, ok := services[op]
	return s, ok
}

// scope lists the context fields an operation needs before dispatch.
type scope struct {
	session    bool
	company    bool
	dates      bool
	costCenter bool
	item       bool
}

var scopes = map[Operation]scope{
	OpLogin:           {},
	OpListCompanies:   {session: true},
	OpListCostCenters: {session: true, company: true, costCenter: true},
	OpListDiary:       {session: true, company: true, dates: true},
	OpListInvoices:    {session: true, company: true, dates: true},
	OpListInventory:   {session: true, company: true},
	OpListDeposits:    {session: true, company: true, item: true},
}

// content key of the "response" object holding each operation's payload
var contentKeys = map[Operation]string{
	OpLogin:           "data",
	OpListCompanies:   "data",
	OpListCostCenters: "codigos",
	OpListDiary:       "movimientos",
	OpListInvoices:    "data",
	OpListInventory:   "data",
	OpListDeposits:    "data",
}

type Credential struct {
	User     string `json:"usuario" yaml:"usuario"`
	Password string `json:"password" yaml:"password"` // MD5 hash, as the API expects
}

// Credentials: DevUser signs every request ("auth"), User opens the session.
type Credentials struct {
	DevUser Credential `json:"dev_user" yaml:"dev_user"`
	User    Credential `json:"user" yaml:"user"`
}

func (c Credentials) Complete() bool {
	return c.DevUser.User != "" && c.DevUser.Password != "" && c.User.User != "" && c.User.Password != ""
}

// DefaultTemplates returns the built-in request bodies, without credentials.
func DefaultTemplates() Templates {
	t := Templates{
		OpLogin: {
			Parameters: map[string]any{},
		},
		OpListCompanies: {
			Parameters: map[string]any{
				"start": 0,
				"limit": 10,
				"filter": []any{
					map[string]any{"field": "IdEmpresa", "op": "<>", "value": "1"},
				},
				"order": map[string]any{"field": []any{"IdEmpresa"}, "order": "asc"},
			},
		},
		OpListCostCenters: {
			Parameters: map[string]any{
				"idEmpresa": "",
				"ccosto":    0,
			},
		},
		OpListDiary: {
			Parameters: map[string]any{
				"idEmpresa": "",
				"fromDate":  "",
				"toDate":    "",
				"start":     0,
				"limit":     10000,
			},
		},
		OpListInvoices: {
			Parameters: map[string]any{
				"idEmpresa": "",
				"start":     0,
				"limit":     10000,
				"filter": []any{
					map[string]any{"field": "fechaFactura", "op": ">=", "value": ""},
					map[string]any{"field": "fechaFactura", "op": "<=", "value": ""},
				},
				"order": map[string]any{"field": []any{"idTipoComprobante", "idFactura"}, "order": "asc"},
			},
		},
		OpListInventory: {
			Parameters: map[string]any{
				"idEmpresa": "",
				"start":     0,
				"limit":     10000,
				"filter":    []any{},
				"order":     map[string]any{"field": "descripcion", "dir": "ASC"},
			},
		},
		OpListDeposits: {
			Parameters: map[string]any{
				"idEmpresa": "",
				"idItem":    "",
			},
		},
	}
	for op, p := range t {
		p.Service = services[op]
		t[op] = p
	}
	return t
}

// internal/colppy/types.go
package colppy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one row of a list operation, as the API returns it.
type Record map[string]any

// String renders field key the way a spreadsheet cell shows it.
func (r Record) String(key string) string {
	return CellString(r[key])
}

func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// flexString accepts "123" and 123 alike.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

type Company struct {
	ID   flexString `json:"IdEmpresa"`
	Name string     `json:"razonSocial"`
}

type CostCenterCode struct {
	Code string     `json:"Codigo"`
	ID   flexString `json:"Id"`
}

// DiaryQuery selects ledger movements by dates and up to two cost centers,
// given by display name. Blank names disable that filter.
type DiaryQuery struct {
	Dates       []string
	CompanyID   string
	CostCenter1 string
	CostCenter2 string
}

func decodeRecords(op Operation, resp *Response) ([]Record, error) {
	if isNull(resp.Content) {
		return nil, &MalformedResponseError{Reason: string(op) + ": no " + contentKeys[op] + " in response"}
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Content))
	dec.UseNumber()
	var out []Record
	if err := dec.Decode(&out); err != nil {
		return nil, &MalformedResponseError{Reason: string(op) + ": " + err.Error(), Body: resp.Content}
	}
	return out, nil
}

func decodeList[T any](op Operation, resp *Response) ([]T, error) {
	if isNull(resp.Content) {
		return nil, &MalformedResponseError{Reason: string(op) + ": no " + contentKeys[op] + " in response"}
	}
	var out []T
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, &MalformedResponseError{Reason: string(op) + ": " + err.Error(), Body: resp.Content}
	}
	return out, nil
}

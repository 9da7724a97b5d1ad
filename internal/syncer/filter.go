// internal/syncer/filter.go
package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
)

// Filter keeps the inventory records for which a boolean expression holds,
// e.g. `tipoItem == "P" && precioVenta > 0`.
type Filter struct {
	src  string
	prog *vm.Program
}

// NewFilter compiles src. An empty src means no filter and returns nil.
func NewFilter(src string) (*Filter, error) {
	if src == "" {
		return nil, nil
	}
	prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &colppy.ConfigurationError{Reason: fmt.Sprintf("inventory filter %q: %v", src, err)}
	}
	return &Filter{src: src, prog: prog}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.src
}

// Match reports whether rec passes. A nil filter matches everything and an
// undefined field evaluates to nil, which does not match.
func (f *Filter) Match(rec colppy.Record) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.prog, env(rec))
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.src, err)
	}
	if out == nil {
		return false, nil
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q evaluated to %T, expected bool", f.src, out)
	}
	return b, nil
}

// env exposes numbers as float64 so they compare with literals.
func env(rec colppy.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if n, ok := v.(json.Number); ok {
			if fv, err := n.Float64(); err == nil {
				out[k] = fv
				continue
			}
			out[k] = n.String()
			continue
		}
		out[k] = v
	}
	return out
}

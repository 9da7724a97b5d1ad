// internal/colppy/templates.go
package colppy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Payload is the request body: {auth, service, parameters}.
type Payload struct {
	Auth       Credential     `json:"auth" yaml:"auth"`
	Service    Service        `json:"service" yaml:"service"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// Templates holds one payload template per operation.
type Templates map[Operation]Payload

// WithCredentials stamps dev_user as auth on every template and the user
// credential as login parameters.
func (t Templates) WithCredentials(c Credentials) Templates {
	out := make(Templates, len(t))
	for op, p := range t {
		p.Auth = c.DevUser
		p.Parameters = copyMap(p.Parameters)
		if op == OpLogin {
			p.Parameters = map[string]any{"usuario": c.User.User, "password": c.User.Password}
		}
		out[op] = p
	}
	return out
}

func (t Templates) check() error {
	var miss []string
	for _, op := range Operations {
		p, ok := t[op]
		if !ok {
			miss = append(miss, string(op))
			continue
		}
		if p.Parameters == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("template %q has no parameters", op)}
		}
	}
	if len(miss) > 0 {
		return &ConfigurationError{Reason: "payload templates missing: " + strings.Join(miss, ", ")}
	}
	return nil
}

// LoadOrCreateTemplates reads the templates file (JSON, or YAML by extension)
// or writes the built-in defaults when it does not exist yet.
func LoadOrCreateTemplates(path string, creds Credentials) (Templates, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t := DefaultTemplates()
			if err := SaveTemplates(path, t); err != nil {
				return nil, false, fmt.Errorf("write default templates: %w", err)
			}
			return t.WithCredentials(creds), true, nil
		}
		return nil, false, &ConfigurationError{Reason: fmt.Sprintf("open templates %s: %v", path, err)}
	}

	t := Templates{}
	if isYAML(path) {
		err = yaml.Unmarshal(raw, &t)
	} else {
		err = json.Unmarshal(raw, &t)
	}
	if err != nil {
		return nil, false, &ConfigurationError{Reason: fmt.Sprintf("parse templates %s: %v", path, err)}
	}
	if err := t.check(); err != nil {
		return nil, false, err
	}
	return t.WithCredentials(creds), false, nil
}

func SaveTemplates(path string, t Templates) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	var (
		raw []byte
		err error
	)
	if isYAML(path) {
		raw, err = yaml.Marshal(t)
	} else {
		raw, err = json.MarshalIndent(t, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = copyValue(x[i])
		}
		return out
	default:
		return v
	}
}

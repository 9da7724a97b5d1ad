// internal/config/config.go
package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Main application config, kept as config.json in the data dir.
type Config struct {
	State      string                     `json:"state"` // testing | production
	LogLevel   string                     `json:"log_level"`
	Colppy     ColppyConfig               `json:"colppy"`
	Sync       SyncConfig                 `json:"sync"`
	SheetStore string                     `json:"sheet_store"`
	Stores     map[string]json.RawMessage `json:"stores"` // backend name -> raw backend config
	Cache      CacheConfig                `json:"cache"`
	Database   DatabaseConfig             `json:"database"`
	Metrics    MetricsConfig              `json:"metrics"`
}

type ColppyConfig struct {
	Credentials    colppy.Credentials `json:"credentials"`
	Defaults       colppy.Defaults    `json:"defaults"`
	TemplatesPath  string             `json:"templates_path"`
	TimeoutSeconds int                `json:"timeout_seconds"`
	// replaces the state endpoint, for proxies and tests
	BaseURL string `json:"base_url,omitempty"`
}

type SyncConfig struct {
	BatchSize         int    `json:"batch_size"`
	SessionCheckEvery int    `json:"session_check_every"`
	Filter            string `json:"filter,omitempty"`
}

type CacheConfig struct {
	Backend    string      `json:"backend"` // memory | db | redis
	TTLMinutes int         `json:"ttl_minutes"`
	Redis      RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Driver string `json:"driver"` // sqlite | sqlite-cgo | mysql | postgres
	DSN    string `json:"dsn"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty"`
}

// Known values, checked by Validate.
var (
	States        = []string{"testing", "production"}
	SheetStores   = []string{"gsheets", "memory", "xlsx"}
	CacheBackends = []string{"db", "memory", "redis"}
	DBDrivers     = []string{"mysql", "postgres", "sqlite", "sqlite-cgo"}
)

// Default returns the config written on first run. Paths live in dataDir.
func Default(dataDir string) *Config {
	xlsx, _ := json.Marshal(map[string]string{"path": filepath.Join(dataDir, "inventory.xlsx")})
	gsheets, _ := json.Marshal(map[string]string{
		"spreadsheet_id":   "",
		"credentials_file": filepath.Join(dataDir, "service_account.json"),
	})
	return &Config{
		State:    "testing",
		LogLevel: "info",
		Colppy: ColppyConfig{
			Defaults: colppy.Defaults{
				AvailableCompanies: map[string]string{},
				AvailableCCosts:    map[string]map[string]string{},
			},
			TemplatesPath:  filepath.Join(dataDir, "payload_templates.json"),
			TimeoutSeconds: 60,
		},
		Sync: SyncConfig{
			BatchSize:         100,
			SessionCheckEvery: 300,
		},
		SheetStore: "xlsx",
		Stores: map[string]json.RawMessage{
			"xlsx":    xlsx,
			"gsheets": gsheets,
		},
		Cache: CacheConfig{
			Backend:    "db",
			TTLMinutes: 24 * 60,
			Redis:      RedisConfig{Addr: "localhost:6379"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dataDir, "colppy2gs.db"),
		},
		Metrics: MetricsConfig{Textfile: filepath.Join(dataDir, "colppy2gs.prom")},
	}
}

// LoadOrCreate reads path or writes the defaults there. created reports
// the second case.
func LoadOrCreate(path string) (*Config, bool, error) {
	dataDir := filepath.Dir(path)
	_ = os.MkdirAll(dataDir, 0o755)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default(dataDir)
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("write default config: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := Default(dataDir)
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, false, &colppy.ConfigurationError{Reason: fmt.Sprintf("parse config %s: %v", path, err)}
	}
	if cfg.Stores == nil {
		cfg.Stores = map[string]json.RawMessage{}
	}
	return cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// UnmarshalStore decodes the raw config of one sheet backend.
func (c *Config) UnmarshalStore(name string, v any) error {
	raw, ok := c.Stores[name]
	if !ok {
		return fmt.Errorf("no %q store in config", name)
	}
	return json.Unmarshal(raw, v)
}

// Store returns the raw config of a backend, "{}" when absent.
func (c *Config) Store(name string) json.RawMessage {
	if raw, ok := c.Stores[name]; ok && len(raw) > 0 {
		return raw
	}
	return json.RawMessage("{}")
}

// SetStoreField patches one key of a backend config.
func (c *Config) SetStoreField(name, key string, value any) error {
	m := map[string]any{}
	if err := json.Unmarshal(c.Store(name), &m); err != nil {
		return fmt.Errorf("store %q: %w", name, err)
	}
	m[key] = value
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if c.Stores == nil {
		c.Stores = map[string]json.RawMessage{}
	}
	c.Stores[name] = raw
	return nil
}

type envOverrides struct {
	State          string `envconfig:"STATE"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	ColppyUser     string `envconfig:"COLPPY_USER"`
	ColppyPassword string `envconfig:"COLPPY_PASSWORD"`
	CompanyID      string `envconfig:"COMPANY_ID"`
	SheetStore     string `envconfig:"SHEET_STORE"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
}

const EnvPrefix = "COLPPY2GS"

// ApplyEnv loads the given .env files, skipping missing ones, then applies
// COLPPY2GS_* variables over the file values.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, p := range envFiles {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return &colppy.ConfigurationError{Reason: err.Error()}
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.State, env.State)
	set(&c.LogLevel, env.LogLevel)
	set(&c.Colppy.Credentials.User.User, env.ColppyUser)
	set(&c.Colppy.Credentials.User.Password, env.ColppyPassword)
	set(&c.Colppy.Defaults.CompanyID, env.CompanyID)
	set(&c.SheetStore, env.SheetStore)
	set(&c.Cache.Redis.Addr, env.RedisAddr)
	return nil
}

// Validate runs before any network activity.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return &colppy.ConfigurationError{Reason: fmt.Sprintf(format, args...)}
	}
	if !c.Colppy.Credentials.Complete() {
		return bad("colppy.credentials: dev_user and user need usuario and password")
	}
	if !oneOf(c.State, States) {
		return bad("state %q must be one of %s", c.State, strings.Join(States, ", "))
	}
	if c.Sync.BatchSize < 1 {
		return bad("sync.batch_size must be at least 1, got %d", c.Sync.BatchSize)
	}
	if c.Sync.SessionCheckEvery < 1 {
		return bad("sync.session_check_every must be at least 1, got %d", c.Sync.SessionCheckEvery)
	}
	if !oneOf(c.SheetStore, SheetStores) {
		return bad("sheet_store %q must be one of %s", c.SheetStore, strings.Join(SheetStores, ", "))
	}
	if !oneOf(c.Cache.Backend, CacheBackends) {
		return bad("cache.backend %q must be one of %s", c.Cache.Backend, strings.Join(CacheBackends, ", "))
	}
	if !oneOf(c.Database.Driver, DBDrivers) {
		return bad("database.driver %q must be one of %s", c.Database.Driver, strings.Join(DBDrivers, ", "))
	}
	if c.Colppy.Defaults.CompanyID != "" {
		if err := colppy.ValidateCompanyID(c.Colppy.Defaults.CompanyID); err != nil {
			return bad("colppy.defaults.company_id: %v", err)
		}
	}
	return nil
}

func oneOf(v string, list []string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/cache"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	conf "github.com/jguecaimburu/colppy-to-gsheets/internal/config"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/db"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/logs"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/metrics"
	"github.com/rs/zerolog"

	// sheet backends
	_ "github.com/jguecaimburu/colppy-to-gsheets/internal/sheets/gsheets"
	_ "github.com/jguecaimburu/colppy-to-gsheets/internal/sheets/xlsx"
)

// app holds everything a command needs, built from the config.
type app struct {
	log     zerolog.Logger
	cfg     *conf.Config
	dataDir string
	db      *db.Handle
	metrics *metrics.Metrics
	client  *colppy.Client

	closers []io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	path := cfgFile
	if path == "" {
		path = filepath.Join(dir, "config.json")
	}
	cfg, firstRun, err := conf.LoadOrCreate(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(".env", filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if state != "" {
		cfg.State = state
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, logCloser, err := logs.New(filepath.Join(dir, "app.log"), true, level)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a := &app{log: log, cfg: cfg, dataDir: dir, closers: []io.Closer{logCloser}}
	if firstRun {
		log.Info().Str("path", path).Msg("default config created, fill in colppy.credentials")
	}

	if err := cfg.Validate(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.log.Error().Err(err).Msg("startup failed")
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	m, err := metrics.New()
	if err != nil {
		return err
	}
	a.metrics = m

	dbh, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("DB open error: %w", err)
	}
	a.db = dbh
	a.closers = append(a.closers, closerFunc(dbh.Close))
	if err := dbh.Migrate(); err != nil {
		return fmt.Errorf("DB migrate error: %w", err)
	}
	a.log.Debug().Str("driver", dbh.Driver).Msg("DB ready")

	lookup, err := a.openCache(ctx)
	if err != nil {
		return err
	}

	tplPath := cfg.Colppy.TemplatesPath
	if tplPath == "" {
		tplPath = filepath.Join(a.dataDir, "payload_templates.json")
	}
	templates, created, err := colppy.LoadOrCreateTemplates(tplPath, cfg.Colppy.Credentials)
	if err != nil {
		return err
	}
	if created {
		a.log.Info().Str("path", tplPath).Msg("default payload templates written")
	}

	var topts []colppy.TransportOption
	if cfg.Colppy.BaseURL != "" {
		topts = append(topts, colppy.WithBaseURL(cfg.Colppy.BaseURL))
	}
	tr, err := colppy.NewHTTPTransport(a.component("transport"), cfg.State,
		time.Duration(cfg.Colppy.TimeoutSeconds)*time.Second, topts...)
	if err != nil {
		return err
	}

	client, err := colppy.New(a.component("colppy"), templates, cfg.Colppy.Defaults, tr,
		colppy.WithCache(lookup, time.Duration(cfg.Cache.TTLMinutes)*time.Minute),
		colppy.WithCacheScope(cfg.State),
		colppy.WithObserver(m),
	)
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	switch a.cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.Redis.Addr,
			Password: a.cfg.Cache.Redis.Password,
			DB:       a.cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r)
		return r, nil
	default:
		return a.db.KV(), nil
	}
}

func (a *app) component(name string) zerolog.Logger {
	return a.log.With().Str("component", name).Logger()
}

// Close writes the metrics textfile and releases resources, last opened first.
func (a *app) Close() {
	if a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.log.Warn().Err(err).Msg("metrics textfile not written")
		}
		_ = a.metrics.Shutdown(context.Background())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/cmscore/adapters/clock"
	apihttp "github.com/artpar/cmscore/adapters/http"
	"github.com/artpar/cmscore/adapters/idgen"
	"github.com/artpar/cmscore/adapters/memory"
	"github.com/artpar/cmscore/adapters/metrics"
	"github.com/artpar/cmscore/adapters/sqlite"
	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/config"
	"github.com/artpar/cmscore/pkg/wire"
	"github.com/artpar/cmscore/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB // nil for the memory driver
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Schemas    *app.SchemaService
	Items      *app.ItemService
	References *app.ReferenceService
	Views      *app.ViewService

	cfg    *config.Config
	holder *config.Holder
}

// Options tunes initialization beyond what the config file carries.
type Options struct {
	// Version is reported by GET /version.
	Version string

	// Registry receives the metrics. The default registry is used when nil.
	Registry *prometheus.Registry
}

// New creates and initializes the application from a fixed configuration.
func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates and initializes the application.
func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	logger := setupLogger(cfg.Logging)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("initializing cmscore")

	a := &App{Logger: logger, cfg: cfg}

	stores, err := a.initStores()
	if err != nil {
		return nil, fmt.Errorf("init stores: %w", err)
	}

	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
		} else {
			a.Metrics = metrics.New()
		}
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.initServices(stores)

	if err := a.initHTTPServer(opts); err != nil {
		a.closeDB()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

// NewWithHotReload creates the application from a config file and applies
// later edits of its reloadable fields without a restart.
func NewWithHotReload(path string, opts Options) (*App, error) {
	initial, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	holder, err := config.NewHolder(path, setupLogger(initial.Logging))
	if err != nil {
		return nil, err
	}

	a, err := NewWithOptions(holder.Get(), opts)
	if err != nil {
		holder.Stop()
		return nil, err
	}
	a.holder = holder

	holder.OnChange(a.applyConfig)
	if a.Metrics != nil {
		holder.OnReload(a.Metrics.ConfigReloaded)
	}

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable, SIGHUP only")
	}
	holder.WatchSignals()

	return a, nil
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	if a.holder != nil {
		return a.holder.Get()
	}
	return a.cfg
}

// Reload re-reads the config file. It fails when hot reload is off.
func (a *App) Reload() error {
	if a.holder == nil {
		return fmt.Errorf("hot reload is not enabled")
	}
	return a.holder.Reload()
}

func (a *App) applyConfig(cfg *config.Config) {
	a.Items.SetPaging(cfg.Items.DefaultPageSize, cfg.Items.MaxPageSize)
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

func (a *App) initStores() (ports.Stores, error) {
	clk := clock.Real{}

	if a.cfg.Database.Driver == "memory" {
		a.Logger.Warn().Msg("using in-memory store, content is lost on exit")
		return ports.Stores{
			Models:  memory.NewModelStore(),
			Groups:  memory.NewGroupStore(),
			Schemas: memory.NewSchemaStore(),
			Items:   memory.NewItemStore(memory.ItemStoreConfig{Clock: clk}),
			Views:   memory.NewViewStore(),
		}, nil
	}

	db, err := sqlite.Open(a.cfg.Database.DSN)
	if err != nil {
		return ports.Stores{}, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return ports.Stores{}, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", a.cfg.Database.DSN).Msg("database initialized")

	return ports.Stores{
		Models:  sqlite.NewModelStore(db),
		Groups:  sqlite.NewGroupStore(db),
		Schemas: sqlite.NewSchemaStore(db),
		Items:   sqlite.NewItemStore(db, clk),
		Views:   sqlite.NewViewStore(db),
	}, nil
}

func (a *App) initServices(stores ports.Stores) {
	ids := idgen.UUID{}
	clk := clock.Real{}

	var rec ports.Recorder
	if a.Metrics != nil {
		rec = a.Metrics
	}

	a.Schemas = app.NewSchemaService(stores, ids, clk, rec, a.Logger)
	a.Items = app.NewItemService(stores, ids, clk, rec, a.Logger, app.ItemServiceConfig{
		LockShards:      a.cfg.Items.LockShards,
		DefaultPageSize: a.cfg.Items.DefaultPageSize,
		MaxPageSize:     a.cfg.Items.MaxPageSize,
	})
	a.References = app.NewReferenceService(stores, a.Logger)
	a.Views = app.NewViewService(stores, a.Items, ids, clk, a.Logger)
}

func (a *App) initHTTPServer(opts Options) error {
	codecs, err := wire.NewRegistry(a.cfg.Wire.ContentType())
	if err != nil {
		return err
	}

	handler := apihttp.NewHandler(apihttp.Services{
		Schemas:    a.Schemas,
		Items:      a.Items,
		References: a.References,
		Views:      a.Views,
	}, codecs, a.Logger)

	var health apihttp.HealthChecker
	if a.DB != nil {
		health = a.DB
	}

	rcfg := apihttp.RouterConfig{
		MetricsPath:    a.cfg.Metrics.Path,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		Version:        opts.Version,
	}
	if a.Metrics != nil {
		rcfg.Metrics = a.Metrics
		if opts.Registry != nil {
			rcfg.MetricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
		} else {
			rcfg.MetricsHandler = promhttp.Handler()
		}
	}

	router := apihttp.NewRouter(handler, apihttp.NewHealthHandler(health), a.Logger, rcfg)

	a.HTTPServer = &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.closeDB()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) closeDB() {
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
	}
	a.DB = nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

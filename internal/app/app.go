// Package app wires the pieces of the Wishkro client together: configuration,
// logging, the credential store, the HTTP client, and the session manager.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/wishkro/wishkro-go/pkg/apiclient"
	"github.com/wishkro/wishkro-go/pkg/credstore"
	sqlitestore "github.com/wishkro/wishkro-go/pkg/credstore/drivers/sqlite"
	"github.com/wishkro/wishkro-go/pkg/cryptox"
	"github.com/wishkro/wishkro-go/pkg/session"
	"github.com/wishkro/wishkro-go/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application holds the initialized client stack.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store   credstore.Store
	client  *apiclient.Client
	session *session.Manager
}

// New creates an Application with all dependencies initialized. The
// credential store is opened (and migrated) eagerly so a broken database
// surfaces at startup, not mid-command.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "wishkro",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60), cfg.RequestsPerMin)
	}

	app.client = apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBase,
		Timeout: cfg.RequestTimeout,
		Limiter: limiter,
		Logger:  app.logger,
	})

	app.session = session.New(session.Config{
		Client: app.client,
		Store:  app.store,
		Logger: app.logger,
	})

	return app, nil
}

func (app *Application) initStore() error {
	if dir := filepath.Dir(app.cfg.CredentialsFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials directory: %w", err)
		}
	}

	var opts []sqlitestore.Option
	// Sealing is only enabled when stable key material exists; an ephemeral
	// key would make the persisted session unreadable on the next run.
	if app.cfg.MasterKeyFile != "" || os.Getenv(cryptox.MasterKeyEnv) != "" {
		keyMaterial, err := cryptox.LoadMasterKey(app.cfg.MasterKeyFile)
		if err != nil {
			return fmt.Errorf("load master key: %w", err)
		}
		sealer, err := cryptox.NewSealer(keyMaterial)
		if err != nil {
			return fmt.Errorf("initialize sealer: %w", err)
		}
		opts = append(opts, sqlitestore.WithSealer(sealer))
		app.logger.Debug("credential sealing enabled")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", app.cfg.CredentialsFile)
	store, err := sqlitestore.NewStore(dsn, opts...)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	if err := store.ApplyMigrations(); err != nil {
		_ = store.Close()
		return fmt.Errorf("apply credential store migrations: %w", err)
	}

	app.store = store
	return nil
}

// Session returns the session manager.
func (app *Application) Session() *session.Manager { return app.session }

// Client returns the API client.
func (app *Application) Client() *apiclient.Client { return app.client }

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Close releases the credential store.
func (app *Application) Close() error {
	return app.store.Close()
}

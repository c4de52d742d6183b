// Package app wires the gateway, the session and the view-model of a
// GreenLog process.
package app

import (
	"context"
	"fmt"

	"github.com/mgmu/greenlog/internal/garden"
	"github.com/mgmu/greenlog/internal/gateway"
	"github.com/mgmu/greenlog/internal/ingest"
	"github.com/mgmu/greenlog/internal/session"
	"github.com/mgmu/greenlog/internal/store"
	"github.com/sirupsen/logrus"
)

// Gateway drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Config selects the backend of the process.
type Config struct {
	Driver       string
	URL          string
	User         string
	FetchRetries int
}

// App owns the components of a session. Build it with New, then call Init
// once and Dispose when done.
type App struct {
	Session *session.Manager
	Garden  *garden.Garden
	Fetcher *ingest.Fetcher

	cfg    Config
	log    logrus.FieldLogger
	gw     gateway.Gateway
	cancel context.CancelFunc
}

func New(cfg Config, log logrus.FieldLogger) (*App, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite, DriverNone:
	case "":
		cfg.Driver = DriverNone
	default:
		return nil, fmt.Errorf("app: unknown gateway driver %q", cfg.Driver)
	}
	return &App{
		cfg:     cfg,
		log:     log,
		Fetcher: ingest.NewFetcher(cfg.FetchRetries),
	}, nil
}

// Init connects to the backend, resolves the session identity and starts
// following the user's plant collection. A backend that cannot be reached is
// replaced by the Null gateway so that the process stays usable.
func (a *App) Init(ctx context.Context) error {
	if a.gw != nil {
		return fmt.Errorf("app: already initialized")
	}
	a.gw = a.connect(ctx)

	ctx, a.cancel = context.WithCancel(ctx)
	a.Session = session.New(a.gw, a.log)
	a.Garden = garden.New(a.gw, store.NewLocal(), a.log)
	user := a.Session.Resolve(ctx)
	a.Garden.Start(ctx, user.Uid)
	return nil
}

func (a *App) connect(ctx context.Context) gateway.Gateway {
	log := a.log.WithField("driver", a.cfg.Driver)
	switch a.cfg.Driver {
	case DriverPostgres:
		db := gateway.NewPostgres(a.cfg.URL, a.cfg.User)
		if err := db.Connect(ctx); err != nil {
			log.WithError(err).Warn("Could not connect to backend, running locally")
			return gateway.Null{}
		}
		return db
	case DriverSQLite:
		db, err := gateway.OpenSQLite(a.cfg.URL, a.cfg.User)
		if err != nil {
			log.WithError(err).Warn("Could not open backend, running locally")
			return gateway.Null{}
		}
		return db
	}
	log.Info("No backend configured, running locally")
	return gateway.Null{}
}

// Dispose stops the subscription and closes the backend.
func (a *App) Dispose() error {
	if a.gw == nil {
		return nil
	}
	a.cancel()
	a.Garden.Wait()
	return a.gw.Close()
}

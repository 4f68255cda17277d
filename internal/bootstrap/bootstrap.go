// Package bootstrap builds the console's object graph from configuration.
// The desktop shell and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gvsdash/internal/api"
	"gvsdash/internal/config"
	"gvsdash/internal/crypto"
	"gvsdash/internal/database"
	"gvsdash/internal/i18n"
	"gvsdash/internal/jobs"
	"gvsdash/internal/services/analytics"
	"gvsdash/internal/services/auth"
	"gvsdash/internal/services/datasets"
	"gvsdash/internal/services/scheduler"
	"gvsdash/internal/services/training"
	"gvsdash/internal/session"
	"gvsdash/internal/storage"
)

const keyringService = "gvsdash"

// Console is every long-lived component, wired once.
type Console struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Messages *i18n.Catalog

	DB       *gorm.DB
	Storage  storage.Storage
	Sessions *session.Store
	Client   *api.Client
	Tracker  *jobs.Tracker

	Auth      *auth.Service
	Training  *training.Service
	Datasets  *datasets.Service
	Analytics *analytics.Service
	Scheduler *scheduler.Service

	closers []func() error
}

// New opens the database and storage backend and wires the services. Nothing
// polls or fires until Start.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Console, error) {
	c := &Console{
		Config:   cfg,
		Log:      log,
		Messages: i18n.New(cfg.Locale),
	}

	db, err := database.Open(cfg.Storage.DatabaseURL, cfg.Log.Level, log)
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.closers = append(c.closers, func() error { return database.Close(db) })

	store, err := c.openStorage(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Storage = store

	c.Sessions = session.NewStore(store, log)
	c.Client = api.NewClient(cfg.API, c.Sessions, log)
	c.Tracker = jobs.NewTracker(c.Client.ML, store, c.Client, cfg.Poll.Interval, log)

	c.Auth = auth.NewService(c.Client.Auth, c.Sessions, log)
	c.Training = training.NewService(store, c.Tracker, log)
	c.Datasets = datasets.NewService(c.Client.ProcessedData, log)
	c.Analytics = analytics.NewService(c.Client.Anomalies, c.Client.Forecasts, c.Client.Models, log)
	c.Scheduler = scheduler.NewService(ctx, db, c.Tracker, log)

	return c, nil
}

// openStorage selects the slot backend and seals it when encryption is on.
func (c *Console) openStorage(ctx context.Context) (storage.Storage, error) {
	cfg := c.Config.Storage
	log := c.Log.WithField("backend", cfg.Backend)

	var inner storage.Storage
	switch cfg.Backend {
	case "memory":
		inner = storage.NewMemory()
	case "keyring":
		inner = storage.NewKeyring(keyringService)
	case "redis":
		r, err := storage.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		c.closers = append(c.closers, r.Close)
		inner = r
	case "database":
		inner = storage.NewDatabase(c.DB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if !cfg.Encrypt {
		log.Debug("Storage opened without encryption")
		return inner, nil
	}

	key, err := crypto.LoadKey(cfg.EncryptionKey, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage key: %w", err)
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		return nil, err
	}
	log.Debug("Storage opened with encryption")
	return storage.NewEncrypted(inner, cipher), nil
}

// Start restores the tracked training job, begins polling and loads the
// cron schedules. A scheduler failure is logged, not fatal.
func (c *Console) Start(ctx context.Context) {
	c.Tracker.Start(ctx)
	if err := c.Scheduler.Start(); err != nil {
		c.Log.WithError(err).Warn("Failed to start scheduler")
	}
}

// Close stops background work and releases connections in reverse order.
func (c *Console) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Tracker != nil {
		c.Tracker.Stop()
	}

	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}

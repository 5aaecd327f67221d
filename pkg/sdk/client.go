package refine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/refine/internal/db"
	dbRedis "github.com/kailas-cloud/refine/internal/db/redis"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
	sessionrepo "github.com/kailas-cloud/refine/internal/repository/session"
	healthuc "github.com/kailas-cloud/refine/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/refine/internal/usecase/session"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultSessionTTL       = 24 * time.Hour
)

// sessionUseCase is the internal interface for session operations.
type sessionUseCase interface {
	Create(ctx context.Context, id, profile string, patch searchstate.Patch) (domsession.Session, error)
	Get(ctx context.Context, id string) (domsession.Session, error)
	Delete(ctx context.Context, id string) error
	Apply(ctx context.Context, id string, expectedRevision int, cmd sessionuc.Command) (domsession.Session, error)
	QueryParams(ctx context.Context, id string) (sessionuc.QueryParams, error)
}

// Client is the refine SDK entry point.
type Client struct {
	store      db.Store
	sessionSvc sessionUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a refine Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{sessionTTL: defaultSessionTTL}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("refine: database address required (use WithValkey or WithRedis)")
	}
	if cfg.driver != "valkey" && cfg.driver != "redis" {
		return nil, fmt.Errorf("refine: unknown driver %q", cfg.driver)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.addrs,
		Username:   cfg.username,
		Password:   cfg.password,
		DB:         cfg.db,
		ClientName: "refine-sdk",
	})
	if err != nil {
		return nil, fmt.Errorf("refine: create %s store: %w", cfg.driver, err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("refine: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	profiles := make(map[string]searchstate.Patch, len(cfg.profiles))
	for name, p := range cfg.profiles {
		profiles[name] = searchstate.Patch(p)
	}

	repo := sessionrepo.New(store, cfg.keyPrefix, cfg.sessionTTL, nil)
	sessionSvc, err := sessionuc.New(repo, profiles)
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}

	return &Client{
		store:      store,
		sessionSvc: sessionSvc,
		healthSvc:  healthuc.New(store).WithCheck("session_script", store.LoadScripts),
		obs:        obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Sessions returns the search session service.
func (c *Client) Sessions() *SessionService {
	return &SessionService{svc: c.sessionSvc, obs: c.obs}
}

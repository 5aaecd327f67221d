package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/refine/internal/db"
	"github.com/kailas-cloud/refine/internal/domain"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
)

// store is the consumer interface for sessions (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	CompareAndSetHash(ctx context.Context, req db.CASRequest) (db.CASResult, error)
}

// Repo implements usecase/session.Repository on a hash per session.
type Repo struct {
	store   store
	prefix  string
	ttl     time.Duration
	latency prometheus.ObserverVec
}

// New creates a session repository.
// latency is a histogram vec with label "op", passed explicitly; nil disables it.
func New(s store, prefix string, ttl time.Duration, latency prometheus.ObserverVec) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix, ttl: ttl, latency: latency}
}

// Create stores a new session. It fails with domain.ErrSessionExists when the id is taken.
func (r *Repo) Create(ctx context.Context, sess domsession.Session) error {
	res, err := r.write(ctx, "create", 0, sess)
	if err != nil {
		return err
	}
	if !res.Swapped {
		return domain.ErrSessionExists
	}
	return nil
}

// Get loads the session with the given id.
func (r *Repo) Get(ctx context.Context, id string) (domsession.Session, error) {
	defer r.observe("get", time.Now())

	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domsession.Session{}, fmt.Errorf("hgetall session %s: %w", id, err)
	}
	if len(m) == 0 {
		return domsession.Session{}, domain.ErrSessionNotFound
	}
	return sessionFromHash(id, m)
}

// Save stores sess provided the stored session is still at the revision
// preceding sess.Revision(). The session TTL is refreshed.
func (r *Repo) Save(ctx context.Context, sess domsession.Session) error {
	res, err := r.write(ctx, "save", sess.Revision()-1, sess)
	if err != nil {
		return err
	}
	if res.Swapped {
		return nil
	}

	current, err := strconv.Atoi(res.Current)
	if err != nil {
		return fmt.Errorf("session %s: invalid stored revision %q: %w", sess.ID(), res.Current, err)
	}
	if current == 0 {
		return domain.ErrSessionNotFound
	}
	return domain.NewRevisionConflict(current)
}

// Delete removes a session.
func (r *Repo) Delete(ctx context.Context, id string) error {
	defer r.observe("delete", time.Now())

	key := r.key(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check session %s: %w", id, err)
	}
	if !exists {
		return domain.ErrSessionNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del session %s: %w", id, err)
	}
	return nil
}

func (r *Repo) write(ctx context.Context, op string, expected int, sess domsession.Session) (db.CASResult, error) {
	defer r.observe(op, time.Now())

	fields, err := sessionToHash(sess)
	if err != nil {
		return db.CASResult{}, err
	}
	res, err := r.store.CompareAndSetHash(ctx, db.CASRequest{
		Key:        r.key(sess.ID()),
		GuardField: fieldRevision,
		Expected:   strconv.Itoa(expected),
		Fields:     fields,
		TTL:        r.ttl,
	})
	if err != nil {
		return db.CASResult{}, fmt.Errorf("%s session %s: %w", op, sess.ID(), err)
	}
	return res, nil
}

func (r *Repo) observe(op string, start time.Time) {
	if r.latency != nil {
		r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// Valkey key pattern: {prefix}session:{id}
func (r *Repo) key(id string) string {
	return r.prefix + "session:" + id
}

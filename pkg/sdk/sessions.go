package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domsession "github.com/kailas-cloud/refine/internal/domain/session"
)

// Params are search state properties keyed by their wire names
// (query, page, facets, hitsPerPage, ...).
type Params map[string]any

// Session is a snapshot of a stored search session.
type Session struct {
	ID        string
	Profile   string
	Revision  int
	UpdatedAt time.Time
	Query     string
	Page      int
	// State is the full search state as JSON.
	State                      json.RawMessage
	RefinedDisjunctiveFacets   []string
	UnrefinedDisjunctiveFacets []string
}

// QueryParams is the search API projection of a session.
type QueryParams struct {
	Params  map[string]any
	Encoded string
}

// SessionService manages search sessions.
type SessionService struct {
	svc sessionUseCase
	obs *observer
}

// Create starts a session from the named profile ("" for the default one)
// with params applied on top. The id is generated.
func (s *SessionService) Create(ctx context.Context, profile string, params Params) (_ Session, err error) {
	return s.CreateWithID(ctx, "", profile, params)
}

// CreateWithID is Create with a caller-chosen id. It fails with
// ErrSessionExists when the id is taken.
func (s *SessionService) CreateWithID(
	ctx context.Context, id, profile string, params Params,
) (_ Session, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.create", id, start, err) }()

	sess, err := s.svc.Create(ctx, id, profile, toPatch(params))
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return fromInternalSession(sess)
}

// Get retrieves a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (_ Session, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.get", id, start, err) }()

	sess, err := s.svc.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return fromInternalSession(sess)
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.delete", id, start, err) }()

	if err = s.svc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Apply runs one operation on the session. revision must match the stored
// revision, or be 0 to skip the check. Operations that change nothing keep
// the revision.
func (s *SessionService) Apply(ctx context.Context, id string, revision int, cmd Command) (_ Session, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.apply", id, start, err) }()

	sess, err := s.svc.Apply(ctx, id, revision, cmd.cmd)
	if err != nil {
		return Session{}, fmt.Errorf("apply %s: %w", cmd.cmd.Op, err)
	}
	return fromInternalSession(sess)
}

// QueryParams returns the parameters to send to the search API.
func (s *SessionService) QueryParams(ctx context.Context, id string) (_ QueryParams, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.query_params", id, start, err) }()

	qp, err := s.svc.QueryParams(ctx, id)
	if err != nil {
		return QueryParams{}, fmt.Errorf("query params: %w", err)
	}
	return QueryParams{Params: qp.Params, Encoded: qp.Encoded}, nil
}

func fromInternalSession(sess domsession.Session) (Session, error) {
	st := sess.State()
	raw, err := st.MarshalJSON()
	if err != nil {
		return Session{}, fmt.Errorf("marshal state: %w", err)
	}
	return Session{
		ID:                         sess.ID(),
		Profile:                    sess.Profile(),
		Revision:                   sess.Revision(),
		UpdatedAt:                  time.UnixMilli(sess.UpdatedAt()).UTC(),
		Query:                      st.Query(),
		Page:                       st.Page(),
		State:                      raw,
		RefinedDisjunctiveFacets:   st.RefinedDisjunctiveFacets(),
		UnrefinedDisjunctiveFacets: st.UnrefinedDisjunctiveFacets(),
	}, nil
}

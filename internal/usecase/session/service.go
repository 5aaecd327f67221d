package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/refine/internal/domain"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
	"github.com/kailas-cloud/refine/internal/logger"
	"github.com/kailas-cloud/refine/internal/metrics"
)

// DefaultProfile is used when Create is called without a profile name.
const DefaultProfile = "default"

// Operation results reported in refine_state_operations_total.
const (
	resultOK    = "ok"
	resultNoop  = "noop"
	resultError = "error"
)

// QueryParams is the search API projection of a session state.
type QueryParams struct {
	Params  map[string]any
	Encoded string
}

// Service drives search sessions: it loads a state, runs one transition and
// writes it back under optimistic locking.
type Service struct {
	repo     Repository
	profiles map[string]*searchstate.State
	newID    func() string
}

// New creates a session service. Every profile patch is built into a state up
// front, so a broken profile fails here rather than on the first request.
func New(repo Repository, profiles map[string]searchstate.Patch) (*Service, error) {
	built := make(map[string]*searchstate.State, len(profiles))
	for name, patch := range profiles {
		s, err := searchstate.Make(patch)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		built[name] = s
	}
	if _, ok := built[DefaultProfile]; !ok {
		built[DefaultProfile] = searchstate.MustMake(nil)
	}
	return &Service{repo: repo, profiles: built, newID: uuid.NewString}, nil
}

// Create starts a session from the named profile with patch applied on top.
// An empty id gets a generated one.
func (s *Service) Create(ctx context.Context, id, profile string, patch searchstate.Patch) (domsession.Session, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	base, ok := s.profiles[profile]
	if !ok {
		return domsession.Session{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, profile)
	}

	state := base
	if len(patch) > 0 {
		var err error
		if state, err = base.SetQueryParameters(patch); err != nil {
			return domsession.Session{}, fmt.Errorf("create session: %w", err)
		}
	}

	if id == "" {
		id = s.newID()
	}
	sess, err := domsession.New(id, profile, state)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("%w: %w", domain.ErrInvalidCommand, err)
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		err = fmt.Errorf("create session: %w", err)
		logFailure(ctx, "Session create failed", err, logger.SessionID(id), logger.Profile(profile))
		return domsession.Session{}, err
	}

	metrics.SessionsCreatedTotal.WithLabelValues(profile).Inc()
	logger.FromContext(ctx).Debug("Session created", logger.SessionID(id), logger.Profile(profile))
	return sess, nil
}

// Get retrieves a session by id.
func (s *Service) Get(ctx context.Context, id string) (domsession.Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		err = fmt.Errorf("get session: %w", err)
		logFailure(ctx, "Session get failed", err, logger.SessionID(id))
		return domsession.Session{}, err
	}
	return sess, nil
}

// Delete removes a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		err = fmt.Errorf("delete session: %w", err)
		logFailure(ctx, "Session delete failed", err, logger.SessionID(id))
		return err
	}
	return nil
}

// QueryParams returns the search API parameters of a session, both as a map
// and URL-encoded.
func (s *Service) QueryParams(ctx context.Context, id string) (QueryParams, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return QueryParams{}, err
	}
	params := sess.State().QueryParams()
	return QueryParams{Params: params, Encoded: searchstate.EncodeParams(params)}, nil
}

// Apply runs cmd against the session state. expectedRevision 0 skips the
// revision check; any other value must match the stored revision. A command
// that leaves the state unchanged is not written and keeps the revision.
func (s *Service) Apply(ctx context.Context, id string, expectedRevision int, cmd Command) (domsession.Session, error) {
	ctx = logger.WithOperation(ctx, id, cmd.Op)
	sess, result, err := s.apply(ctx, id, expectedRevision, cmd.Run)

	metrics.StateOperationsTotal.WithLabelValues(opLabel(cmd.Op), result).Inc()
	if err != nil {
		logFailure(ctx, "State operation failed", err, logger.Revision(expectedRevision))
		return domsession.Session{}, err
	}
	return sess, nil
}

// SetParameters merges patch into the session state.
func (s *Service) SetParameters(ctx context.Context, id string, expectedRevision int, patch searchstate.Patch) (domsession.Session, error) {
	return s.Apply(ctx, id, expectedRevision, Command{Op: OpSetQueryParameters, Patch: patch})
}

func (s *Service) apply(
	ctx context.Context, id string, expectedRevision int,
	run func(*searchstate.State) (*searchstate.State, error),
) (domsession.Session, string, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return domsession.Session{}, resultError, fmt.Errorf("get session: %w", err)
	}
	if expectedRevision != 0 && expectedRevision != sess.Revision() {
		return domsession.Session{}, resultError, domain.NewRevisionConflict(sess.Revision())
	}

	next, err := run(sess.State())
	if err != nil {
		return domsession.Session{}, resultError, fmt.Errorf("apply: %w", err)
	}
	if unchanged(sess.State(), next) {
		return sess, resultNoop, nil
	}

	updated := sess.Next(next)
	if err := s.repo.Save(ctx, updated); err != nil {
		return domsession.Session{}, resultError, fmt.Errorf("save session: %w", err)
	}
	return updated, resultOK, nil
}

// rejections are caller errors; they are logged at debug, anything else at error.
var rejections = []error{
	searchstate.ErrValidation,
	searchstate.ErrUnknownFacet,
	searchstate.ErrUnknownParameter,
	searchstate.ErrInvalidOperator,
	domain.ErrSessionNotFound,
	domain.ErrSessionExists,
	domain.ErrProfileNotFound,
	domain.ErrUnknownCommand,
	domain.ErrInvalidCommand,
	domain.ErrRevisionConflict,
}

func isRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logFailure(ctx context.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if isRejection(err) {
		logger.FromContext(ctx).Debug(msg, fields...)
		return
	}
	logger.FromContext(ctx).Error(msg, fields...)
}

// unchanged reports whether next carries the same state as cur.
func unchanged(cur, next *searchstate.State) bool {
	if cur == next {
		return true
	}
	a, errA := cur.MarshalJSON()
	b, errB := next.MarshalJSON()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// opLabel bounds the op label to known operations.
func opLabel(op string) string {
	if _, ok := handlers[op]; ok {
		return op
	}
	return "unknown"
}

package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/refine/internal/domain"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
	"github.com/kailas-cloud/refine/internal/logger"
	healthuc "github.com/kailas-cloud/refine/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/refine/internal/usecase/session"
	"github.com/kailas-cloud/refine/internal/version"
)

// maxBodyBytes caps request bodies; a search state patch is small.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the session API on a chi router.
type Server struct {
	sessions      *sessionuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	metrics       http.Handler
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions *sessionuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		sessions: sessions,
		health:   health,
		logger:   logger,
		metrics:  promhttp.Handler(),
	}
	s.errorHandlers = []errorHandler{
		revisionConflictHandler,
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorResponseCodeSessionNotFound),
		sentinelHandler(domain.ErrSessionExists, http.StatusConflict, ErrorResponseCodeSessionAlreadyExists),
		sentinelHandler(domain.ErrProfileNotFound, http.StatusNotFound, ErrorResponseCodeProfileNotFound),
		sentinelHandler(domain.ErrUnknownCommand, http.StatusBadRequest, ErrorResponseCodeUnknownCommand),
		sentinelHandler(domain.ErrInvalidCommand, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(searchstate.ErrUnknownFacet, http.StatusBadRequest, ErrorResponseCodeUnknownFacet),
		sentinelHandler(searchstate.ErrUnknownParameter, http.StatusBadRequest, ErrorResponseCodeUnknownParameter),
		sentinelHandler(searchstate.ErrInvalidOperator, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(searchstate.ErrValidation, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{session}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/operations", s.ApplyOperation)
			r.Patch("/parameters", s.SetParameters)
			r.Get("/query-params", s.GetQueryParams)
		})
	})
}

// Handler returns a router serving every endpoint, with no middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var patch searchstate.Patch
	if len(req.Parameters) > 0 {
		var err error
		if patch, err = searchstate.DecodePatch(req.Parameters); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	sess, err := s.sessions.Create(r.Context(), req.ID, req.Profile, patch)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+sess.ID())
	writeSession(w, http.StatusCreated, sess)
}

// GetSession handles GET /sessions/{session}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeSession(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /sessions/{session}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApplyOperation handles POST /sessions/{session}/operations.
func (s *Server) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	rev, ok := expectedRevision(w, r)
	if !ok {
		return
	}

	var cmd sessionuc.Command
	if err := decodeBody(r, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if cmd.Op == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "op is required")
		return
	}

	sess, err := s.sessions.Apply(r.Context(), id, rev, cmd)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeSession(w, http.StatusOK, sess)
}

// SetParameters handles PATCH /sessions/{session}/parameters.
func (s *Server) SetParameters(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	rev, ok := expectedRevision(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	patch, err := searchstate.DecodePatch(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sess, err := s.sessions.SetParameters(r.Context(), id, rev, patch)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeSession(w, http.StatusOK, sess)
}

// GetQueryParams handles GET /sessions/{session}/query-params.
func (s *Server) GetQueryParams(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	qp, err := s.sessions.QueryParams(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryParamsResponse{Params: qp.Params, Encoded: qp.Encoded})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.String(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

// sessionParam binds the {session} path parameter.
func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "session", chi.URLParam(r, "session"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter session: "+err.Error())
		return "", false
	}
	if err := domsession.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return "", false
	}
	return id, true
}

// expectedRevision reads the revision query parameter, falling back to If-Match.
// 0 means the caller did not ask for a revision check.
func expectedRevision(w http.ResponseWriter, r *http.Request) (int, bool) {
	var rev *int
	if err := runtime.BindQueryParameter("form", true, false, "revision", r.URL.Query(), &rev); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter revision: "+err.Error())
		return 0, false
	}
	if rev != nil {
		if *rev < 1 {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "revision must be >= 1")
			return 0, false
		}
		return *rev, true
	}

	ifMatch := strings.TrimSpace(r.Header.Get("If-Match"))
	if ifMatch == "" || ifMatch == "*" {
		return 0, true
	}
	n, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(ifMatch, "W/"), `"`))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "If-Match must be a quoted revision")
		return 0, false
	}
	return n, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func sessionToResponse(sess domsession.Session) SessionResponse {
	st := sess.State()
	return SessionResponse{
		ID:                         sess.ID(),
		Profile:                    sess.Profile(),
		Revision:                   sess.Revision(),
		UpdatedAt:                  time.UnixMilli(sess.UpdatedAt()).UTC(),
		State:                      st,
		RefinedDisjunctiveFacets:   nonNil(st.RefinedDisjunctiveFacets()),
		UnrefinedDisjunctiveFacets: nonNil(st.UnrefinedDisjunctiveFacets()),
		RefinedHierarchicalFacets:  nonNil(st.RefinedHierarchicalFacets()),
	}
}

func writeSession(w http.ResponseWriter, status int, sess domsession.Session) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(sess.Revision())))
	writeJSON(w, status, sessionToResponse(sess))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// clientSentinels are errors whose text is safe to show, starting from the sentinel.
var clientSentinels = []error{
	domain.ErrSessionNotFound,
	domain.ErrSessionExists,
	domain.ErrProfileNotFound,
	domain.ErrRevisionConflict,
	domain.ErrUnknownCommand,
	domain.ErrInvalidCommand,
	searchstate.ErrInvalidOperator,
}

// safeDomainMessage returns an error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var (
		schemaErr  *searchstate.SchemaError
		tagErr     *searchstate.TagModeConflictError
		valueErr   *searchstate.InvalidValueError
		facetErr   *searchstate.UnknownFacetError
		unknownErr *searchstate.UnknownParameterError
	)
	switch {
	case errors.As(err, &schemaErr):
		return schemaErr.Error()
	case errors.As(err, &tagErr):
		return tagErr.Error()
	case errors.As(err, &valueErr):
		return valueErr.Error()
	case errors.As(err, &facetErr):
		return facetErr.Error()
	case errors.As(err, &unknownErr):
		return unknownErr.Error()
	}

	for _, s := range clientSentinels {
		if !errors.Is(err, s) {
			continue
		}
		// Drop the "op: " prefixes added on the way up.
		msg := err.Error()
		if i := strings.Index(msg, s.Error()); i >= 0 {
			return msg[i:]
		}
		return s.Error()
	}
	if errors.Is(err, searchstate.ErrValidation) {
		return searchstate.ErrValidation.Error()
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// revisionConflictHandler handles ErrRevisionConflict with ETag header and extra fields.
func revisionConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrRevisionConflict) {
		return false
	}
	var rce *domain.RevisionConflictError
	if errors.As(err, &rce) {
		w.Header().Set("ETag", strconv.Quote(strconv.Itoa(rce.CurrentRevision)))
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":             ErrorResponseCodeRevisionConflict,
			"message":          msg,
			"current_revision": rce.CurrentRevision,
		})
		return true
	}
	writeError(w, http.StatusConflict, ErrorResponseCodeRevisionConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

// requestLogger prefers the request-scoped logger set by the wide-event middleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l, ok := logger.Lookup(r.Context()); ok {
		return l
	}
	return s.logger
}

package chi

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/refine/internal/domain/searchstate"
)

// ErrorResponseCode is the machine-readable code of an error response.
type ErrorResponseCode string

// Error response codes.
const (
	ErrorResponseCodeBadRequest           ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed     ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnknownCommand       ErrorResponseCode = "unknown_command"
	ErrorResponseCodeUnknownFacet         ErrorResponseCode = "unknown_facet"
	ErrorResponseCodeUnknownParameter     ErrorResponseCode = "unknown_parameter"
	ErrorResponseCodeSessionNotFound      ErrorResponseCode = "session_not_found"
	ErrorResponseCodeSessionAlreadyExists ErrorResponseCode = "session_already_exists"
	ErrorResponseCodeProfileNotFound      ErrorResponseCode = "profile_not_found"
	ErrorResponseCodeRevisionConflict     ErrorResponseCode = "revision_conflict"
	ErrorResponseCodeUnauthorized         ErrorResponseCode = "unauthorized"
	ErrorResponseCodeForbidden            ErrorResponseCode = "forbidden"
	ErrorResponseCodeInternalError        ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	ID         string          `json:"id,omitempty"`
	Profile    string          `json:"profile,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// SessionResponse is the view of a session returned by every session endpoint.
type SessionResponse struct {
	ID                         string             `json:"id"`
	Profile                    string             `json:"profile"`
	Revision                   int                `json:"revision"`
	UpdatedAt                  time.Time          `json:"updated_at"`
	State                      *searchstate.State `json:"state"`
	RefinedDisjunctiveFacets   []string           `json:"refined_disjunctive_facets"`
	UnrefinedDisjunctiveFacets []string           `json:"unrefined_disjunctive_facets"`
	RefinedHierarchicalFacets  []string           `json:"refined_hierarchical_facets"`
}

// QueryParamsResponse is the body of GET /sessions/{session}/query-params.
type QueryParamsResponse struct {
	Params  map[string]any `json:"params"`
	Encoded string         `json:"encoded"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

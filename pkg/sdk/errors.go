package refine

import (
	"github.com/kailas-cloud/refine/internal/domain"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSessionNotFound   = domain.ErrSessionNotFound
	ErrSessionExists     = domain.ErrSessionExists
	ErrProfileNotFound   = domain.ErrProfileNotFound
	ErrRevisionConflict  = domain.ErrRevisionConflict
	ErrUnknownCommand    = domain.ErrUnknownCommand
	ErrInvalidCommand    = domain.ErrInvalidCommand
	ErrValidation        = searchstate.ErrValidation
	ErrUnknownFacet      = searchstate.ErrUnknownFacet
	ErrTagModeConflict   = searchstate.ErrTagModeConflict
	ErrInvalidOperator   = searchstate.ErrInvalidOperator
	ErrUnknownParameter  = searchstate.ErrUnknownParameter
	ErrUnknownProperty   = searchstate.ErrSchema
	ErrInvalidParamValue = searchstate.ErrInvalidValue
)

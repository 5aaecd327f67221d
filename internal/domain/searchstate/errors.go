package searchstate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is the parent of every error that rejects a state transition.
	ErrValidation = errors.New("invalid search state transition")
	// ErrSchema signals a parameter name outside the closed search state schema.
	ErrSchema = errors.New("unknown search state property")
	// ErrTagModeConflict signals mixing raw tag filters with managed tag refinements.
	ErrTagModeConflict = errors.New("tag mode conflict")
	// ErrInvalidValue signals a known parameter carrying a value of the wrong type.
	ErrInvalidValue = errors.New("invalid parameter value")
	// ErrInvalidOperator signals a numeric operator outside =, >, >=, <, <=, !=.
	ErrInvalidOperator = errors.New("invalid numeric operator")
	// ErrUnknownFacet signals a facet-scoped call on an undeclared attribute.
	ErrUnknownFacet = errors.New("unknown facet")
	// ErrUnknownParameter signals a read of a parameter that does not exist.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// SchemaError lists every patch key that is not a search state property.
type SchemaError struct {
	Keys []string
}

func (e *SchemaError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("property %s is not defined on search state", e.Keys[0])
	}
	return fmt.Sprintf("properties %s are not defined on search state", strings.Join(e.Keys, " "))
}

func (e *SchemaError) Unwrap() []error { return []error{ErrSchema, ErrValidation} }

// TagMode names one of the two mutually exclusive ways of filtering by tags.
type TagMode string

// Tag modes.
const (
	// TagModeManaged is the tagRefinements list maintained by add/remove/toggle.
	TagModeManaged TagMode = "managed"
	// TagModeRaw is the caller-formatted tagFilters string.
	TagModeRaw TagMode = "raw"
)

// TagModeConflictError is returned when a patch switches tag mode without clearing tags first.
type TagModeConflictError struct {
	Active    TagMode
	Requested TagMode
}

func (e *TagModeConflictError) Error() string {
	return fmt.Sprintf("tags: cannot switch from %s tag API to %s tag API, clear tags first", e.Active, e.Requested)
}

func (e *TagModeConflictError) Unwrap() []error { return []error{ErrTagModeConflict, ErrValidation} }

// InvalidValueError is returned when a known parameter receives a value it cannot hold.
type InvalidValueError struct {
	Name string
	Want string
	Got  any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("parameter %s expects %s, got %T", e.Name, e.Want, e.Got)
}

func (e *InvalidValueError) Unwrap() []error { return []error{ErrInvalidValue, ErrValidation} }

// UnknownFacetError reports an attribute missing from the facet list an operation requires.
type UnknownFacetError struct {
	Facet string
	List  string // facets, disjunctiveFacets or hierarchicalFacets
}

func (e *UnknownFacetError) Error() string {
	return fmt.Sprintf("%s is not defined in the %s attribute of the search state", e.Facet, e.List)
}

func (e *UnknownFacetError) Unwrap() error { return ErrUnknownFacet }

// UnknownParameterError reports a read of a name that is not a search state property.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("parameter %q is not an attribute of search state", e.Name)
}

func (e *UnknownParameterError) Unwrap() error { return ErrUnknownParameter }

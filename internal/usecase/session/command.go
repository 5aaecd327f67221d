package session

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/kailas-cloud/refine/internal/domain"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
)

// Operation names accepted in Command.Op.
const (
	OpSetQuery                          = "setQuery"
	OpSetPage                           = "setPage"
	OpSetHitsPerPage                    = "setHitsPerPage"
	OpSetTypoTolerance                  = "setTypoTolerance"
	OpSetQueryParameters                = "setQueryParameters"
	OpAddNumericRefinement              = "addNumericRefinement"
	OpRemoveNumericRefinement           = "removeNumericRefinement"
	OpAddFacetRefinement                = "addFacetRefinement"
	OpRemoveFacetRefinement             = "removeFacetRefinement"
	OpToggleFacetRefinement             = "toggleFacetRefinement"
	OpAddExcludeRefinement              = "addExcludeRefinement"
	OpRemoveExcludeRefinement           = "removeExcludeRefinement"
	OpToggleExcludeFacetRefinement      = "toggleExcludeFacetRefinement"
	OpAddDisjunctiveFacetRefinement     = "addDisjunctiveFacetRefinement"
	OpRemoveDisjunctiveFacetRefinement  = "removeDisjunctiveFacetRefinement"
	OpToggleDisjunctiveFacetRefinement  = "toggleDisjunctiveFacetRefinement"
	OpToggleHierarchicalFacetRefinement = "toggleHierarchicalFacetRefinement"
	OpAddTagRefinement                  = "addTagRefinement"
	OpRemoveTagRefinement               = "removeTagRefinement"
	OpToggleTagRefinement               = "toggleTagRefinement"
	OpClearRefinements                  = "clearRefinements"
	OpClearTags                         = "clearTags"
)

// Command is a single search state operation addressed to a session.
type Command struct {
	Op          string   `json:"op"`
	Attribute   string   `json:"attribute,omitempty"`
	Value       *string  `json:"value,omitempty"`
	Operator    string   `json:"operator,omitempty"`
	Number      *float64 `json:"number,omitempty"`
	Page        *int     `json:"page,omitempty"`
	HitsPerPage *int     `json:"hitsPerPage,omitempty"`
	// Kinds narrows clearRefinements to some refinement kinds (numeric, conjunctiveFacet, ...).
	Kinds []string `json:"kinds,omitempty"`
	// Parameters is the raw patch of setQueryParameters.
	Parameters json.RawMessage `json:"parameters,omitempty"`

	// Patch takes precedence over Parameters when set by a Go caller.
	Patch searchstate.Patch `json:"-"`
}

type handler func(s *searchstate.State, c Command) (*searchstate.State, error)

var handlers = map[string]handler{
	OpSetQuery: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if c.Value == nil {
			return nil, missing(c.Op, "value")
		}
		return s.SetQuery(*c.Value)
	},
	OpSetPage: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if c.Page == nil {
			return nil, missing(c.Op, "page")
		}
		if *c.Page < 0 {
			return nil, fmt.Errorf("%w: %s: page must be >= 0", domain.ErrInvalidCommand, c.Op)
		}
		return s.SetPage(*c.Page)
	},
	OpSetHitsPerPage: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if c.HitsPerPage == nil {
			return nil, missing(c.Op, "hitsPerPage")
		}
		if *c.HitsPerPage < 0 {
			return nil, fmt.Errorf("%w: %s: hitsPerPage must be >= 0", domain.ErrInvalidCommand, c.Op)
		}
		return s.SetHitsPerPage(*c.HitsPerPage)
	},
	OpSetTypoTolerance: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if c.Value == nil {
			return nil, missing(c.Op, "value")
		}
		return s.SetTypoTolerance(*c.Value)
	},
	OpSetQueryParameters: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		patch := c.Patch
		if patch == nil {
			if len(c.Parameters) == 0 {
				return nil, missing(c.Op, "parameters")
			}
			var err error
			if patch, err = searchstate.DecodePatch(c.Parameters); err != nil {
				return nil, err
			}
		}
		return s.SetQueryParameters(patch)
	},
	OpAddNumericRefinement: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if err := requireArgs(c, "attribute", "operator", "number"); err != nil {
			return nil, err
		}
		return s.AddNumericRefinement(c.Attribute, searchstate.Operator(c.Operator), *c.Number)
	},
	OpRemoveNumericRefinement: func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if err := requireArgs(c, "attribute", "operator"); err != nil {
			return nil, err
		}
		return s.RemoveNumericRefinement(c.Attribute, searchstate.Operator(c.Operator))
	},
	OpAddFacetRefinement:                facetOp((*searchstate.State).AddFacetRefinement),
	OpRemoveFacetRefinement:             facetOp((*searchstate.State).RemoveFacetRefinement),
	OpToggleFacetRefinement:             facetOp((*searchstate.State).ToggleFacetRefinement),
	OpAddExcludeRefinement:              facetOp((*searchstate.State).AddExcludeRefinement),
	OpRemoveExcludeRefinement:           facetOp((*searchstate.State).RemoveExcludeRefinement),
	OpToggleExcludeFacetRefinement:      facetOp((*searchstate.State).ToggleExcludeFacetRefinement),
	OpAddDisjunctiveFacetRefinement:     facetOp((*searchstate.State).AddDisjunctiveFacetRefinement),
	OpRemoveDisjunctiveFacetRefinement:  facetOp((*searchstate.State).RemoveDisjunctiveFacetRefinement),
	OpToggleDisjunctiveFacetRefinement:  facetOp((*searchstate.State).ToggleDisjunctiveFacetRefinement),
	OpToggleHierarchicalFacetRefinement: facetOp((*searchstate.State).ToggleHierarchicalFacetRefinement),
	OpAddTagRefinement:                  tagOp((*searchstate.State).AddTagRefinement),
	OpRemoveTagRefinement:               tagOp((*searchstate.State).RemoveTagRefinement),
	OpToggleTagRefinement:               tagOp((*searchstate.State).ToggleTagRefinement),
	OpClearRefinements:                  clearRefinements,
	OpClearTags: func(s *searchstate.State, _ Command) (*searchstate.State, error) {
		return s.ClearTags()
	},
}

// Ops returns every supported operation name, sorted.
func Ops() []string {
	ops := make([]string, 0, len(handlers))
	for op := range handlers {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// Run applies c to s. It does not touch storage.
func (c Command) Run(s *searchstate.State) (*searchstate.State, error) {
	h, ok := handlers[c.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, c.Op)
	}
	return h(s, c)
}

func facetOp(fn func(*searchstate.State, string, string) (*searchstate.State, error)) handler {
	return func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if err := requireArgs(c, "attribute", "value"); err != nil {
			return nil, err
		}
		return fn(s, c.Attribute, *c.Value)
	}
}

func tagOp(fn func(*searchstate.State, string) (*searchstate.State, error)) handler {
	return func(s *searchstate.State, c Command) (*searchstate.State, error) {
		if err := requireArgs(c, "value"); err != nil {
			return nil, err
		}
		return fn(s, *c.Value)
	}
}

// clearRefinements clears everything, one attribute, or some kinds of one or
// every attribute.
func clearRefinements(s *searchstate.State, c Command) (*searchstate.State, error) {
	if len(c.Kinds) == 0 {
		if c.Attribute == "" {
			return s.ClearRefinements()
		}
		return s.ClearRefinementsFor(c.Attribute)
	}

	kinds := make([]searchstate.Kind, 0, len(c.Kinds))
	for _, name := range c.Kinds {
		k, err := searchstate.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidCommand, c.Op, err)
		}
		kinds = append(kinds, k)
	}
	return s.ClearRefinementsFunc(func(r searchstate.Refinement) bool {
		if c.Attribute != "" && r.Attribute != c.Attribute {
			return false
		}
		return slices.Contains(kinds, r.Kind)
	})
}

func requireArgs(c Command, names ...string) error {
	for _, name := range names {
		var empty bool
		switch name {
		case "attribute":
			empty = c.Attribute == ""
		case "operator":
			empty = c.Operator == ""
		case "value":
			empty = c.Value == nil
		case "number":
			empty = c.Number == nil
		}
		if empty {
			return missing(c.Op, name)
		}
	}
	return nil
}

func missing(op, arg string) error {
	return fmt.Errorf("%w: %s requires %s", domain.ErrInvalidCommand, op, arg)
}

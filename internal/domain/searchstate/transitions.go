package searchstate

import (
	"fmt"
	"math"
)

// Every transition below builds a Patch and goes through SetQueryParameters.
// Transitions that would not change anything return the receiver itself.

// SetQuery replaces the query and goes back to the first page.
func (s *State) SetQuery(q string) (*State, error) {
	if q == s.query {
		return s, nil
	}
	return s.SetQueryParameters(Patch{ParamQuery: q, ParamPage: 0})
}

// SetPage moves to page p.
func (s *State) SetPage(p int) (*State, error) {
	if p == s.page {
		return s, nil
	}
	return s.SetQueryParameters(Patch{ParamPage: p})
}

// SetHitsPerPage changes the page size and goes back to the first page.
func (s *State) SetHitsPerPage(n int) (*State, error) {
	if cur, ok := s.HitsPerPage(); ok && cur == n {
		return s, nil
	}
	return s.SetQueryParameters(Patch{ParamHitsPerPage: n, ParamPage: 0})
}

// SetTypoTolerance changes the typo tolerance ("true", "false", "min" or "strict")
// and goes back to the first page.
func (s *State) SetTypoTolerance(t string) (*State, error) {
	if cur, ok := s.TypoTolerance(); ok && cur == t {
		return s, nil
	}
	return s.SetQueryParameters(Patch{ParamTypoTolerance: t, ParamPage: 0})
}

// SetFacets replaces the conjunctive facet declarations.
func (s *State) SetFacets(facets []string) (*State, error) {
	return s.SetQueryParameters(Patch{ParamFacets: facets})
}

// SetDisjunctiveFacets replaces the disjunctive facet declarations.
func (s *State) SetDisjunctiveFacets(facets []string) (*State, error) {
	return s.SetQueryParameters(Patch{ParamDisjunctiveFacets: facets})
}

// SetHierarchicalFacets replaces the hierarchical facet declarations.
func (s *State) SetHierarchicalFacets(facets []HierarchicalFacet) (*State, error) {
	return s.SetQueryParameters(Patch{ParamHierarchicalFacets: facets})
}

// AddNumericRefinement sets (attr, op) to value. Only one value is kept per
// (attr, op): a later call with a different value replaces the earlier one.
func (s *State) AddNumericRefinement(attr string, op Operator, value float64) (*State, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &InvalidValueError{Name: ParamNumericRefinements, Want: "finite number", Got: value}
	}
	if s.IsNumericRefined(attr, op, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:               0,
		ParamNumericRefinements: s.numericRefinements.with(attr, op, value),
	})
}

// RemoveNumericRefinement drops the value of (attr, op).
func (s *State) RemoveNumericRefinement(attr string, op Operator) (*State, error) {
	if !s.IsNumericRefined(attr, op) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage: 0,
		ParamNumericRefinements: s.numericRefinements.clear(func(a string, o Operator, _ float64) bool {
			return a == attr && o == op
		}),
	})
}

// AddFacetRefinement selects value on the conjunctive facet attr.
func (s *State) AddFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	if s.facetsRefinements.isRefined(attr, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:              0,
		ParamFacetsRefinements: s.facetsRefinements.add(attr, value),
	})
}

// AddExcludeRefinement excludes value on the conjunctive facet attr.
func (s *State) AddExcludeRefinement(attr, value string) (*State, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	if s.facetsExcludes.isRefined(attr, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:           0,
		ParamFacetsExcludes: s.facetsExcludes.add(attr, value),
	})
}

// AddDisjunctiveFacetRefinement selects value on the disjunctive facet attr.
func (s *State) AddDisjunctiveFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireDisjunctive(attr); err != nil {
		return nil, err
	}
	if s.disjunctiveFacetsRefinements.isRefined(attr, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:                         0,
		ParamDisjunctiveFacetsRefinements: s.disjunctiveFacetsRefinements.add(attr, value),
	})
}

// RemoveFacetRefinement unselects value on the conjunctive facet attr.
func (s *State) RemoveFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	if !s.facetsRefinements.isRefined(attr, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:              0,
		ParamFacetsRefinements: s.facetsRefinements.remove(attr, value),
	})
}

// RemoveExcludeRefinement drops the exclusion of value on attr.
func (s *State) RemoveExcludeRefinement(attr, value string) (*State, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	if !s.facetsExcludes.isRefined(attr, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:           0,
		ParamFacetsExcludes: s.facetsExcludes.remove(attr, value),
	})
}

// RemoveDisjunctiveFacetRefinement unselects value on the disjunctive facet attr.
func (s *State) RemoveDisjunctiveFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireDisjunctive(attr); err != nil {
		return nil, err
	}
	if !s.disjunctiveFacetsRefinements.isRefined(attr, value) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:                         0,
		ParamDisjunctiveFacetsRefinements: s.disjunctiveFacetsRefinements.remove(attr, value),
	})
}

// ToggleFacetRefinement selects or unselects value on attr. The page is kept.
func (s *State) ToggleFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	return s.SetQueryParameters(Patch{
		ParamFacetsRefinements: s.facetsRefinements.toggle(attr, value),
	})
}

// ToggleExcludeFacetRefinement excludes or re-includes value on attr. The page is kept.
func (s *State) ToggleExcludeFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	return s.SetQueryParameters(Patch{
		ParamFacetsExcludes: s.facetsExcludes.toggle(attr, value),
	})
}

// ToggleDisjunctiveFacetRefinement selects or unselects value on attr. The page is kept.
func (s *State) ToggleDisjunctiveFacetRefinement(attr, value string) (*State, error) {
	if err := s.requireDisjunctive(attr); err != nil {
		return nil, err
	}
	return s.SetQueryParameters(Patch{
		ParamDisjunctiveFacetsRefinements: s.disjunctiveFacetsRefinements.toggle(attr, value),
	})
}

// ToggleHierarchicalFacetRefinement refines name on the path value, or climbs
// back up when value is the current path or one of its ancestors. The page is kept.
func (s *State) ToggleHierarchicalFacetRefinement(name, value string) (*State, error) {
	facet, ok := s.HierarchicalFacetByName(name)
	if !ok {
		return nil, &UnknownFacetError{Facet: name, List: ParamHierarchicalFacets}
	}
	next := toggleHierarchicalPath(s.hierarchicalFacetsRefinements.get(name), value, facet.SeparatorOrDefault())
	return s.SetQueryParameters(Patch{
		ParamHierarchicalFacetsRefinements: s.hierarchicalFacetsRefinements.with(name, next),
	})
}

// AddTagRefinement appends tag to the managed tag refinements.
func (s *State) AddTagRefinement(tag string) (*State, error) {
	if s.IsTagRefined(tag) {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:           0,
		ParamTagRefinements: append(cloneStrings(s.tagRefinements), tag),
	})
}

// RemoveTagRefinement drops tag from the managed tag refinements.
func (s *State) RemoveTagRefinement(tag string) (*State, error) {
	if !s.IsTagRefined(tag) {
		return s, nil
	}
	kept := make([]string, 0, len(s.tagRefinements)-1)
	for _, t := range s.tagRefinements {
		if t != tag {
			kept = append(kept, t)
		}
	}
	return s.SetQueryParameters(Patch{ParamPage: 0, ParamTagRefinements: kept})
}

// ToggleTagRefinement adds tag when absent and removes it when present.
func (s *State) ToggleTagRefinement(tag string) (*State, error) {
	if s.IsTagRefined(tag) {
		return s.RemoveTagRefinement(tag)
	}
	return s.AddTagRefinement(tag)
}

// ClearRefinements removes every facet, exclude, hierarchical and numeric refinement.
func (s *State) ClearRefinements() (*State, error) {
	return s.ClearRefinementsFunc(func(Refinement) bool { return true })
}

// ClearRefinementsFor removes every refinement of attr, whatever its kind.
func (s *State) ClearRefinementsFor(attr string) (*State, error) {
	return s.ClearRefinementsFunc(func(r Refinement) bool { return r.Attribute == attr })
}

// ClearRefinementsFunc removes every stored refinement for which fn returns true.
// Attributes left without values are dropped. The page always goes back to 0.
func (s *State) ClearRefinementsFunc(fn func(Refinement) bool) (*State, error) {
	facetClear := func(kind Kind) func(attr, value string) bool {
		return func(attr, value string) bool {
			return fn(Refinement{Attribute: attr, Kind: kind, Value: value})
		}
	}
	return s.SetQueryParameters(Patch{
		ParamPage: 0,
		ParamNumericRefinements: s.numericRefinements.clear(func(attr string, op Operator, v float64) bool {
			return fn(Refinement{Attribute: attr, Kind: KindNumeric, Operator: op, Number: v})
		}),
		ParamFacetsRefinements:             s.facetsRefinements.clear(facetClear(KindConjunctiveFacet)),
		ParamFacetsExcludes:                s.facetsExcludes.clear(facetClear(KindExclude)),
		ParamDisjunctiveFacetsRefinements:  s.disjunctiveFacetsRefinements.clear(facetClear(KindDisjunctiveFacet)),
		ParamHierarchicalFacetsRefinements: s.hierarchicalFacetsRefinements.clear(facetClear(KindHierarchicalFacet)),
	})
}

// ClearTags drops both the managed tag refinements and the raw tag filter.
func (s *State) ClearTags() (*State, error) {
	if s.tagFilters == nil && len(s.tagRefinements) == 0 {
		return s, nil
	}
	return s.SetQueryParameters(Patch{
		ParamPage:           0,
		ParamTagFilters:     nil,
		ParamTagRefinements: []string{},
	})
}

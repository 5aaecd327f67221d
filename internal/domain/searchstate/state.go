// Package searchstate holds the immutable search state: query, facet, tag and
// numeric refinements plus pass-through search options.
//
// A *State is never modified after it is returned. Every transition builds a
// new State and shares unchanged containers with its predecessor, so states
// can be read from any number of goroutines without locking.
package searchstate

import (
	"bytes"
	"fmt"
	"slices"
)

// State is an immutable set of search parameters.
type State struct {
	query string
	page  int

	facets             []string
	disjunctiveFacets  []string
	hierarchicalFacets []HierarchicalFacet

	facetsRefinements             refinementList
	facetsExcludes                refinementList
	disjunctiveFacetsRefinements  refinementList
	hierarchicalFacetsRefinements refinementList
	numericRefinements            numericList

	tagRefinements []string
	tagFilters     *string

	opts options
}

// Make builds a State from a partial set of properties. Unspecified properties
// take their defaults (empty query, page 0, no facets, no refinements).
// Only the schema and value types are checked; tag modes are not validated.
func Make(p Patch) (*State, error) {
	if unknown := unknownKeys(p); len(unknown) > 0 {
		return nil, &SchemaError{Keys: unknown}
	}
	s := &State{}
	if err := s.apply(p); err != nil {
		return nil, err
	}
	return s, nil
}

// MustMake is like Make but panics on error.
func MustMake(p Patch) *State {
	s, err := Make(p)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks whether p may be applied to current.
func Validate(current *State, p Patch) error {
	if unknown := unknownKeys(p); len(unknown) > 0 {
		return &SchemaError{Keys: unknown}
	}

	refs, setsRefs := p[ParamTagRefinements]
	tf, setsFilters := p[ParamTagFilters]
	addsRefs := setsRefs && nonEmptyStrings(refs)
	addsFilters := setsFilters && nonEmptyString(tf)

	if current.hasTagFilters() && addsRefs {
		return &TagModeConflictError{Active: TagModeRaw, Requested: TagModeManaged}
	}
	if len(current.tagRefinements) > 0 && addsFilters {
		return &TagModeConflictError{Active: TagModeManaged, Requested: TagModeRaw}
	}
	if addsRefs && addsFilters {
		return &TagModeConflictError{Active: TagModeManaged, Requested: TagModeRaw}
	}
	return nil
}

// SetQueryParameters returns a new State with every property in p replaced.
// Nothing is applied when validation fails.
func (s *State) SetQueryParameters(p Patch) (*State, error) {
	if err := Validate(s, p); err != nil {
		return nil, err
	}
	next := *s
	if err := next.apply(p); err != nil {
		return nil, err
	}
	return &next, nil
}

// SetQueryParameter sets a single property. When a scalar property already
// holds value the receiver itself is returned.
func (s *State) SetQueryParameter(name string, value any) (*State, error) {
	if f, ok := fieldIndex[name]; ok && f.scalar && f.get(s) == value {
		return s, nil
	}
	return s.SetQueryParameters(Patch{name: value})
}

// QueryParameter returns the value of any property by its wire name.
// Unset optional properties return nil.
func (s *State) QueryParameter(name string) (any, error) {
	f, ok := fieldIndex[name]
	if !ok {
		return nil, &UnknownParameterError{Name: name}
	}
	return f.get(s), nil
}

// apply writes p into s in schema order. s must not be shared yet.
func (s *State) apply(p Patch) error {
	for _, f := range fields {
		v, ok := p[f.name]
		if !ok {
			continue
		}
		if err := f.set(s, v); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the full-text query.
func (s *State) Query() string { return s.query }

// Page returns the zero-based page index.
func (s *State) Page() int { return s.page }

// Facets returns the conjunctive facet attributes.
func (s *State) Facets() []string { return cloneStrings(s.facets) }

// DisjunctiveFacets returns the disjunctive facet attributes.
func (s *State) DisjunctiveFacets() []string { return cloneStrings(s.disjunctiveFacets) }

// HierarchicalFacets returns the declared hierarchical facets.
func (s *State) HierarchicalFacets() []HierarchicalFacet {
	return cloneHierarchicalFacets(s.hierarchicalFacets)
}

// TagRefinements returns the managed tag refinements.
func (s *State) TagRefinements() []string { return cloneStrings(s.tagRefinements) }

// TagFilters returns the raw tag filter, if set.
func (s *State) TagFilters() (string, bool) {
	if s.tagFilters == nil {
		return "", false
	}
	return *s.tagFilters, true
}

// HitsPerPage returns the number of hits per page, if set.
func (s *State) HitsPerPage() (int, bool) { return deref(s.opts.hitsPerPage) }

// MaxValuesPerFacet returns the facet value limit, if set.
func (s *State) MaxValuesPerFacet() (int, bool) { return deref(s.opts.maxValuesPerFacet) }

// TypoTolerance returns the typo tolerance mode, if set.
func (s *State) TypoTolerance() (string, bool) { return deref(s.opts.typoTolerance) }

// IsConjunctiveFacet reports whether attr is declared in facets.
func (s *State) IsConjunctiveFacet(attr string) bool { return slices.Contains(s.facets, attr) }

// IsDisjunctiveFacet reports whether attr is declared in disjunctiveFacets.
func (s *State) IsDisjunctiveFacet(attr string) bool {
	return slices.Contains(s.disjunctiveFacets, attr)
}

// IsHierarchicalFacet reports whether name is declared in hierarchicalFacets.
func (s *State) IsHierarchicalFacet(name string) bool {
	_, ok := s.HierarchicalFacetByName(name)
	return ok
}

// HierarchicalFacetByName looks up a declared hierarchical facet.
func (s *State) HierarchicalFacetByName(name string) (HierarchicalFacet, bool) {
	for _, f := range s.hierarchicalFacets {
		if f.Name == name {
			return cloneHierarchicalFacets([]HierarchicalFacet{f})[0], true
		}
	}
	return HierarchicalFacet{}, false
}

func (s *State) requireConjunctive(attr string) error {
	if !s.IsConjunctiveFacet(attr) {
		return &UnknownFacetError{Facet: attr, List: ParamFacets}
	}
	return nil
}

func (s *State) requireDisjunctive(attr string) error {
	if !s.IsDisjunctiveFacet(attr) {
		return &UnknownFacetError{Facet: attr, List: ParamDisjunctiveFacets}
	}
	return nil
}

func (s *State) requireHierarchical(name string) error {
	if !s.IsHierarchicalFacet(name) {
		return &UnknownFacetError{Facet: name, List: ParamHierarchicalFacets}
	}
	return nil
}

// IsFacetRefined reports whether attr has any conjunctive refinement, or value when given.
func (s *State) IsFacetRefined(attr string, value ...string) (bool, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return false, err
	}
	return s.facetsRefinements.isRefined(attr, value...), nil
}

// IsExcludeRefined reports whether attr has any exclusion, or value when given.
func (s *State) IsExcludeRefined(attr string, value ...string) (bool, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return false, err
	}
	return s.facetsExcludes.isRefined(attr, value...), nil
}

// IsDisjunctiveFacetRefined reports whether attr has any disjunctive refinement, or value when given.
func (s *State) IsDisjunctiveFacetRefined(attr string, value ...string) (bool, error) {
	if err := s.requireDisjunctive(attr); err != nil {
		return false, err
	}
	return s.disjunctiveFacetsRefinements.isRefined(attr, value...), nil
}

// IsHierarchicalFacetRefined reports whether name has a path, or exactly the path value when given.
func (s *State) IsHierarchicalFacetRefined(name string, value ...string) (bool, error) {
	if err := s.requireHierarchical(name); err != nil {
		return false, err
	}
	return s.hierarchicalFacetsRefinements.isRefined(name, value...), nil
}

// IsNumericRefined reports whether (attr, op) holds a value, or exactly value when given.
func (s *State) IsNumericRefined(attr string, op Operator, value ...float64) bool {
	v, ok := s.numericRefinements.lookup(attr, op)
	if !ok {
		return false
	}
	return len(value) == 0 || v == value[0]
}

// IsTagRefined reports whether tag is in the managed tag refinements.
func (s *State) IsTagRefined(tag string) bool { return slices.Contains(s.tagRefinements, tag) }

// ConjunctiveRefinements returns the selected values of a conjunctive facet.
func (s *State) ConjunctiveRefinements(attr string) ([]string, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	return s.facetsRefinements.get(attr), nil
}

// ExcludeRefinements returns the excluded values of a conjunctive facet.
func (s *State) ExcludeRefinements(attr string) ([]string, error) {
	if err := s.requireConjunctive(attr); err != nil {
		return nil, err
	}
	return s.facetsExcludes.get(attr), nil
}

// DisjunctiveRefinements returns the selected values of a disjunctive facet.
func (s *State) DisjunctiveRefinements(attr string) ([]string, error) {
	if err := s.requireDisjunctive(attr); err != nil {
		return nil, err
	}
	return s.disjunctiveFacetsRefinements.get(attr), nil
}

// HierarchicalRefinement returns the refined path of a hierarchical facet (zero or one element).
func (s *State) HierarchicalRefinement(name string) []string {
	return s.hierarchicalFacetsRefinements.get(name)
}

// NumericRefinements returns operator -> value for attr.
func (s *State) NumericRefinements(attr string) map[Operator]float64 {
	return s.numericRefinements.get(attr)
}

// NumericRefinement returns the value stored for (attr, op).
func (s *State) NumericRefinement(attr string, op Operator) (float64, bool) {
	return s.numericRefinements.lookup(attr, op)
}

// RefinedHierarchicalFacets returns the declared hierarchical facets that have an
// entry in the refinements, in declaration order. A facet climbed back to the
// root keeps its empty entry and is still listed.
func (s *State) RefinedHierarchicalFacets() []string {
	var out []string
	for _, f := range s.hierarchicalFacets {
		if s.hierarchicalFacetsRefinements.has(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// RefinedDisjunctiveFacets returns every facet that must be queried disjunctively:
// refined disjunctive facets, disjunctive facets carrying numeric refinements,
// then refined hierarchical facets.
func (s *State) RefinedDisjunctiveFacets() []string {
	var out []string
	seen := map[string]struct{}{}
	push := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, attr := range s.disjunctiveFacetsRefinements.keys() {
		if s.disjunctiveFacetsRefinements.isRefined(attr) {
			push(attr)
		}
	}
	for _, attr := range s.numericRefinements.keys() {
		if s.IsDisjunctiveFacet(attr) && len(s.numericRefinements.ops[attr]) > 0 {
			push(attr)
		}
	}
	for _, name := range s.RefinedHierarchicalFacets() {
		push(name)
	}
	return out
}

// UnrefinedDisjunctiveFacets returns declared disjunctive facets missing from
// RefinedDisjunctiveFacets, in declaration order.
func (s *State) UnrefinedDisjunctiveFacets() []string {
	refined := s.RefinedDisjunctiveFacets()
	var out []string
	for _, f := range s.disjunctiveFacets {
		if !slices.Contains(refined, f) {
			out = append(out, f)
		}
	}
	return out
}

// QueryParams projects every set, non-managed property into a flat map ready
// to be sent to the search API.
func (s *State) QueryParams() map[string]any {
	params := make(map[string]any)
	for _, f := range fields {
		if f.managed {
			continue
		}
		if v := f.get(s); v != nil {
			params[f.name] = v
		}
	}
	return params
}

// MarshalJSON writes every set property under its wire name, in schema order.
func (s *State) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range fields {
		var v any
		if f.encode != nil {
			v = f.encode(s)
		} else {
			v = f.get(s)
		}
		if v == nil {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeJSONMember(&buf, f.name, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeState rebuilds a State from its JSON form.
func DecodeState(data []byte) (*State, error) {
	p, err := DecodePatch(data)
	if err != nil {
		return nil, fmt.Errorf("decode search state: %w", err)
	}
	return Make(p)
}

func (s *State) hasTagFilters() bool { return s.tagFilters != nil && *s.tagFilters != "" }

func nonEmptyStrings(v any) bool {
	list, ok := v.([]string)
	return ok && len(list) > 0
}

func nonEmptyString(v any) bool {
	str, ok := v.(string)
	return ok && str != ""
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

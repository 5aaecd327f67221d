package searchstate

import (
	"encoding/json"
	"math"
	"sort"
)

// Names of the search state properties referenced by the transitions.
// The full closed schema lives in the fields table below.
const (
	ParamQuery                         = "query"
	ParamPage                          = "page"
	ParamFacets                        = "facets"
	ParamDisjunctiveFacets             = "disjunctiveFacets"
	ParamHierarchicalFacets            = "hierarchicalFacets"
	ParamFacetsRefinements             = "facetsRefinements"
	ParamFacetsExcludes                = "facetsExcludes"
	ParamDisjunctiveFacetsRefinements  = "disjunctiveFacetsRefinements"
	ParamNumericRefinements            = "numericRefinements"
	ParamTagRefinements                = "tagRefinements"
	ParamHierarchicalFacetsRefinements = "hierarchicalFacetsRefinements"
	ParamTagFilters                    = "tagFilters"
	ParamHitsPerPage                   = "hitsPerPage"
	ParamMaxValuesPerFacet             = "maxValuesPerFacet"
	ParamTypoTolerance                 = "typoTolerance"
)

// Patch is a partial set of search state properties keyed by their wire names.
// A nil value clears an optional property.
type Patch map[string]any

// options holds the pass-through search options. nil means unset.
type options struct {
	hitsPerPage                  *int
	maxValuesPerFacet            *int
	queryType                    *string
	typoTolerance                *string
	minWordSizefor1Typo          *int
	minWordSizefor2Typos         *int
	allowTyposOnNumericTokens    *bool
	ignorePlurals                *bool
	restrictSearchableAttributes *string
	advancedSyntax               *bool
	analytics                    *bool
	analyticsTags                *string
	synonyms                     *bool
	replaceSynonymsInHighlight   *bool
	optionalWords                *string
	removeWordsIfNoResults       *string
	attributesToRetrieve         *string
	attributesToHighlight        *string
	highlightPreTag              *string
	highlightPostTag             *string
	attributesToSnippet          *string
	getRankingInfo               *int
	distinct                     *bool
	aroundLatLng                 *string
	aroundLatLngViaIP            *bool
	aroundRadius                 *int
	aroundPrecision              *int
	insideBoundingBox            *string
}

// field describes one property of the closed schema.
type field struct {
	name string
	want string
	// managed properties are structural and never sent as query params.
	managed bool
	// scalar properties hold comparable values.
	scalar bool
	get    func(s *State) any
	set    func(s *State, v any) error
	decode func(raw json.RawMessage) (any, error)
	// encode returns the value written by MarshalJSON; defaults to get.
	encode func(s *State) any
}

var fields = []field{
	{
		name: ParamQuery, want: "string", scalar: true,
		get: func(s *State) any { return s.query },
		set: func(s *State, v any) error {
			if v == nil {
				s.query = ""
				return nil
			}
			q, ok := coerce[string](v)
			if !ok {
				return &InvalidValueError{Name: ParamQuery, Want: "string", Got: v}
			}
			s.query = q
			return nil
		},
		decode: decodeOptional[string],
	},
	stringsField(ParamFacets, func(s *State) *[]string { return &s.facets }),
	stringsField(ParamDisjunctiveFacets, func(s *State) *[]string { return &s.disjunctiveFacets }),
	{
		name: ParamHierarchicalFacets, want: "list of hierarchical facets", managed: true,
		get: func(s *State) any { return cloneHierarchicalFacets(s.hierarchicalFacets) },
		set: func(s *State, v any) error {
			switch hf := v.(type) {
			case nil:
				s.hierarchicalFacets = nil
			case []HierarchicalFacet:
				s.hierarchicalFacets = cloneHierarchicalFacets(hf)
			default:
				return &InvalidValueError{Name: ParamHierarchicalFacets, Want: "list of hierarchical facets", Got: v}
			}
			return nil
		},
		decode: decodeValue[[]HierarchicalFacet],
	},
	refinementListField(ParamFacetsRefinements, func(s *State) *refinementList { return &s.facetsRefinements }),
	refinementListField(ParamFacetsExcludes, func(s *State) *refinementList { return &s.facetsExcludes }),
	refinementListField(ParamDisjunctiveFacetsRefinements,
		func(s *State) *refinementList { return &s.disjunctiveFacetsRefinements }),
	{
		name: ParamNumericRefinements, want: "map of attribute to operator values", managed: true,
		get: func(s *State) any { return s.numericRefinements.toMap() },
		set: func(s *State, v any) error {
			switch nr := v.(type) {
			case nil:
				s.numericRefinements = numericList{}
			case numericList:
				s.numericRefinements = nr
			case map[string]map[Operator]float64:
				l, err := numericListFromMap(nr)
				if err != nil {
					return err
				}
				s.numericRefinements = l
			default:
				return &InvalidValueError{Name: ParamNumericRefinements, Want: "map of attribute to operator values", Got: v}
			}
			if !s.numericRefinements.finite() {
				return &InvalidValueError{Name: ParamNumericRefinements, Want: "finite operator values", Got: v}
			}
			return nil
		},
		decode: decodeValue[numericList],
		encode: func(s *State) any { return s.numericRefinements },
	},
	stringsField(ParamTagRefinements, func(s *State) *[]string { return &s.tagRefinements }),
	hierarchicalRefinementsField(),
	{
		name: ParamTagFilters, want: "string", scalar: true,
		get: func(s *State) any {
			if s.tagFilters == nil {
				return nil
			}
			return *s.tagFilters
		},
		set: func(s *State, v any) error {
			if v == nil {
				s.tagFilters = nil
				return nil
			}
			tf, ok := coerce[string](v)
			if !ok {
				return &InvalidValueError{Name: ParamTagFilters, Want: "string", Got: v}
			}
			s.tagFilters = &tf
			return nil
		},
		decode: decodeOptional[string],
	},
	optionField(ParamHitsPerPage, "integer", func(o *options) **int { return &o.hitsPerPage }),
	optionField(ParamMaxValuesPerFacet, "integer", func(o *options) **int { return &o.maxValuesPerFacet }),
	{
		name: ParamPage, want: "non-negative integer", scalar: true,
		get: func(s *State) any { return s.page },
		set: func(s *State, v any) error {
			if v == nil {
				s.page = 0
				return nil
			}
			p, ok := coerce[int](v)
			if !ok || p < 0 {
				return &InvalidValueError{Name: ParamPage, Want: "non-negative integer", Got: v}
			}
			s.page = p
			return nil
		},
		decode: decodeOptional[int],
	},
	optionField("queryType", "string", func(o *options) **string { return &o.queryType }),
	optionField(ParamTypoTolerance, "string", func(o *options) **string { return &o.typoTolerance }),
	optionField("minWordSizefor1Typo", "integer", func(o *options) **int { return &o.minWordSizefor1Typo }),
	optionField("minWordSizefor2Typos", "integer", func(o *options) **int { return &o.minWordSizefor2Typos }),
	optionField("allowTyposOnNumericTokens", "boolean", func(o *options) **bool { return &o.allowTyposOnNumericTokens }),
	optionField("ignorePlurals", "boolean", func(o *options) **bool { return &o.ignorePlurals }),
	optionField("restrictSearchableAttributes", "string",
		func(o *options) **string { return &o.restrictSearchableAttributes }),
	optionField("advancedSyntax", "boolean", func(o *options) **bool { return &o.advancedSyntax }),
	optionField("analytics", "boolean", func(o *options) **bool { return &o.analytics }),
	optionField("analyticsTags", "string", func(o *options) **string { return &o.analyticsTags }),
	optionField("synonyms", "boolean", func(o *options) **bool { return &o.synonyms }),
	optionField("replaceSynonymsInHighlight", "boolean",
		func(o *options) **bool { return &o.replaceSynonymsInHighlight }),
	optionField("optionalWords", "string", func(o *options) **string { return &o.optionalWords }),
	optionField("removeWordsIfNoResults", "string", func(o *options) **string { return &o.removeWordsIfNoResults }),
	optionField("attributesToRetrieve", "string", func(o *options) **string { return &o.attributesToRetrieve }),
	optionField("attributesToHighlight", "string", func(o *options) **string { return &o.attributesToHighlight }),
	optionField("highlightPreTag", "string", func(o *options) **string { return &o.highlightPreTag }),
	optionField("highlightPostTag", "string", func(o *options) **string { return &o.highlightPostTag }),
	optionField("attributesToSnippet", "string", func(o *options) **string { return &o.attributesToSnippet }),
	optionField("getRankingInfo", "integer", func(o *options) **int { return &o.getRankingInfo }),
	optionField("distinct", "boolean", func(o *options) **bool { return &o.distinct }),
	optionField("aroundLatLng", "string", func(o *options) **string { return &o.aroundLatLng }),
	optionField("aroundLatLngViaIP", "boolean", func(o *options) **bool { return &o.aroundLatLngViaIP }),
	optionField("aroundRadius", "integer", func(o *options) **int { return &o.aroundRadius }),
	optionField("aroundPrecision", "integer", func(o *options) **int { return &o.aroundPrecision }),
	optionField("insideBoundingBox", "string", func(o *options) **string { return &o.insideBoundingBox }),
}

var fieldIndex = func() map[string]*field {
	idx := make(map[string]*field, len(fields))
	for i := range fields {
		idx[fields[i].name] = &fields[i]
	}
	return idx
}()

// Parameters returns every property name of the search state, in schema order.
func Parameters() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// ManagedParameters returns the structural properties that QueryParams never emits.
func ManagedParameters() []string {
	var names []string
	for _, f := range fields {
		if f.managed {
			names = append(names, f.name)
		}
	}
	return names
}

// unknownKeys returns the sorted patch keys missing from the schema.
func unknownKeys(p Patch) []string {
	var unknown []string
	for k := range p {
		if _, ok := fieldIndex[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// DecodePatch parses a JSON object into a Patch, typing every value by its property.
// Unknown keys are rejected with a SchemaError naming all of them.
func DecodePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidValueError{Name: "patch", Want: "JSON object", Got: string(data)}
	}

	probe := make(Patch, len(raw))
	for k := range raw {
		probe[k] = nil
	}
	if unknown := unknownKeys(probe); len(unknown) > 0 {
		return nil, &SchemaError{Keys: unknown}
	}

	p := make(Patch, len(raw))
	for k, msg := range raw {
		f := fieldIndex[k]
		v, err := f.decode(msg)
		if err != nil {
			return nil, &InvalidValueError{Name: k, Want: f.want, Got: string(msg)}
		}
		p[k] = v
	}
	return p, nil
}

func stringsField(name string, ref func(s *State) *[]string) field {
	return field{
		name: name, want: "list of strings", managed: true,
		get: func(s *State) any { return cloneStrings(*ref(s)) },
		set: func(s *State, v any) error {
			if v == nil {
				*ref(s) = nil
				return nil
			}
			list, ok := v.([]string)
			if !ok {
				return &InvalidValueError{Name: name, Want: "list of strings", Got: v}
			}
			*ref(s) = cloneStrings(list)
			return nil
		},
		decode: decodeValue[[]string],
	}
}

func refinementListField(name string, ref func(s *State) *refinementList) field {
	const want = "map of attribute to values"
	return field{
		name: name, want: want, managed: true,
		get: func(s *State) any { return ref(s).toMap() },
		set: func(s *State, v any) error {
			switch l := v.(type) {
			case nil:
				*ref(s) = refinementList{}
			case refinementList:
				*ref(s) = l
			case map[string][]string:
				*ref(s) = refinementListFromMap(l)
			default:
				return &InvalidValueError{Name: name, Want: want, Got: v}
			}
			return nil
		},
		decode: decodeValue[refinementList],
		encode: func(s *State) any { return *ref(s) },
	}
}

// hierarchicalRefinementsField holds at most one path per facet.
func hierarchicalRefinementsField() field {
	f := refinementListField(ParamHierarchicalFacetsRefinements,
		func(s *State) *refinementList { return &s.hierarchicalFacetsRefinements })
	set := f.set
	f.set = func(s *State, v any) error {
		if err := set(s, v); err != nil {
			return err
		}
		for _, paths := range s.hierarchicalFacetsRefinements.values {
			if len(paths) > 1 {
				return &InvalidValueError{Name: ParamHierarchicalFacetsRefinements, Want: "at most one path per facet", Got: v}
			}
		}
		return nil
	}
	return f
}

func optionField[T comparable](name, want string, ref func(o *options) **T) field {
	return field{
		name: name, want: want, scalar: true,
		get: func(s *State) any {
			if p := *ref(&s.opts); p != nil {
				return *p
			}
			return nil
		},
		set: func(s *State, v any) error {
			if v == nil {
				*ref(&s.opts) = nil
				return nil
			}
			t, ok := coerce[T](v)
			if !ok {
				return &InvalidValueError{Name: name, Want: want, Got: v}
			}
			*ref(&s.opts) = &t
			return nil
		},
		decode: decodeOptional[T],
	}
}

// coerce converts v to T. Integers also accept other integer types and
// integral float64 values, which is what generic JSON decoding produces.
func coerce[T any](v any) (T, bool) {
	if t, ok := v.(T); ok {
		return t, true
	}
	var zero T
	if _, ok := any(zero).(int); !ok {
		return zero, false
	}
	var n int
	switch x := v.(type) {
	case int64:
		if int64(int(x)) != x {
			return zero, false
		}
		n = int(x)
	case int32:
		n = int(x)
	case float64:
		// float64(math.MaxInt) rounds up to 2^63, which is already out of range.
		if x != math.Trunc(x) || x < math.MinInt || x >= math.MaxInt {
			return zero, false
		}
		n = int(x)
	default:
		return zero, false
	}
	t, _ := any(n).(T)
	return t, true
}

func decodeOptional[T any](raw json.RawMessage) (any, error) {
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err //nolint:wrapcheck // wrapped into InvalidValueError by DecodePatch
	}
	if v == nil {
		return nil, nil
	}
	return *v, nil
}

func decodeValue[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err //nolint:wrapcheck // wrapped into InvalidValueError by DecodePatch
	}
	return v, nil
}

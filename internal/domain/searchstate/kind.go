package searchstate

import "fmt"

// Kind identifies which refinement family a stored value belongs to.
type Kind int

// Refinement kinds.
const (
	KindNumeric Kind = iota + 1
	KindDisjunctiveFacet
	KindConjunctiveFacet
	KindExclude
	KindHierarchicalFacet
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDisjunctiveFacet:
		return "disjunctiveFacet"
	case KindConjunctiveFacet:
		return "conjunctiveFacet"
	case KindExclude:
		return "exclude"
	case KindHierarchicalFacet:
		return "hierarchicalFacet"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindNumeric, KindDisjunctiveFacet, KindConjunctiveFacet, KindExclude, KindHierarchicalFacet} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown refinement kind %q", s)
}

// Operator is a numeric comparison operator.
type Operator string

// Numeric operators.
const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
)

// IsValid checks if the operator is one of the supported comparisons.
func (o Operator) IsValid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		return true
	}
	return false
}

// Refinement is a single stored refinement value, handed to clearing predicates.
type Refinement struct {
	Attribute string
	Kind      Kind
	// Value is the facet value or hierarchical path. Empty for numeric refinements.
	Value string
	// Operator and Number are set for numeric refinements only.
	Operator Operator
	Number   float64
}

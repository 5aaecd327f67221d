package searchstate

import "strings"

// DefaultHierarchicalSeparator joins the levels of a hierarchical facet path.
const DefaultHierarchicalSeparator = " > "

// HierarchicalFacet declares a tree-structured facet such as "category > subcategory".
type HierarchicalFacet struct {
	Name      string   `json:"name" yaml:"name"`
	Separator string   `json:"separator,omitempty" yaml:"separator"`
	SortBy    []string `json:"sortBy,omitempty" yaml:"sort_by"`
}

// SeparatorOrDefault returns the configured separator or DefaultHierarchicalSeparator.
func (f HierarchicalFacet) SeparatorOrDefault() string {
	if f.Separator == "" {
		return DefaultHierarchicalSeparator
	}
	return f.Separator
}

// SortByOrDefault returns the configured facet value ordering or isRefined:desc, name:asc.
func (f HierarchicalFacet) SortByOrDefault() []string {
	if len(f.SortBy) == 0 {
		return []string{"isRefined:desc", "name:asc"}
	}
	return cloneStrings(f.SortBy)
}

func cloneHierarchicalFacets(in []HierarchicalFacet) []HierarchicalFacet {
	out := make([]HierarchicalFacet, len(in))
	for i, f := range in {
		out[i] = HierarchicalFacet{Name: f.Name, Separator: f.Separator}
		if f.SortBy != nil {
			out[i].SortBy = cloneStrings(f.SortBy)
		}
	}
	return out
}

// toggleHierarchicalPath computes the next refinement of a hierarchical facet.
// Toggling the current path, or one of its ancestors, climbs to the parent of
// the toggled value (or to the root for a top-level value). Any other value
// becomes the new path.
func toggleHierarchicalPath(current []string, value, sep string) []string {
	climb := len(current) > 0 &&
		(current[0] == value || strings.HasPrefix(current[0], value+sep))
	if !climb {
		return []string{value}
	}
	i := strings.LastIndex(value, sep)
	if i == -1 {
		return []string{}
	}
	return []string{value[:i]}
}

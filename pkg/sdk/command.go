package refine

import (
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	sessionuc "github.com/kailas-cloud/refine/internal/usecase/session"
)

// Command is one search state operation. Build it with the functions below.
type Command struct {
	cmd sessionuc.Command
}

// Op returns the operation name.
func (c Command) Op() string { return c.cmd.Op }

// SetQuery replaces the query and goes back to the first page.
func SetQuery(q string) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpSetQuery, Value: &q}}
}

// SetPage moves to page p (0-based).
func SetPage(p int) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpSetPage, Page: &p}}
}

// SetHitsPerPage changes the page size.
func SetHitsPerPage(n int) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpSetHitsPerPage, HitsPerPage: &n}}
}

// SetTypoTolerance sets typoTolerance ("true", "false", "min" or "strict").
func SetTypoTolerance(t string) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpSetTypoTolerance, Value: &t}}
}

// SetParams replaces every property named in p.
func SetParams(p Params) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpSetQueryParameters, Patch: toPatch(p)}}
}

// AddNumeric sets the numeric refinement attr op value.
func AddNumeric(attr, op string, value float64) Command {
	return Command{sessionuc.Command{
		Op: sessionuc.OpAddNumericRefinement, Attribute: attr, Operator: op, Number: &value,
	}}
}

// RemoveNumeric drops the numeric refinement of attr for op.
func RemoveNumeric(attr, op string) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpRemoveNumericRefinement, Attribute: attr, Operator: op}}
}

// AddFacet selects value on a conjunctive facet.
func AddFacet(attr, value string) Command { return facet(sessionuc.OpAddFacetRefinement, attr, value) }

// RemoveFacet unselects value on a conjunctive facet.
func RemoveFacet(attr, value string) Command {
	return facet(sessionuc.OpRemoveFacetRefinement, attr, value)
}

// ToggleFacet selects or unselects value on a conjunctive facet.
func ToggleFacet(attr, value string) Command {
	return facet(sessionuc.OpToggleFacetRefinement, attr, value)
}

// AddExclude excludes value on a conjunctive facet.
func AddExclude(attr, value string) Command { return facet(sessionuc.OpAddExcludeRefinement, attr, value) }

// RemoveExclude drops the exclusion of value.
func RemoveExclude(attr, value string) Command {
	return facet(sessionuc.OpRemoveExcludeRefinement, attr, value)
}

// ToggleExclude excludes or re-includes value.
func ToggleExclude(attr, value string) Command {
	return facet(sessionuc.OpToggleExcludeFacetRefinement, attr, value)
}

// AddDisjunctive selects value on a disjunctive facet.
func AddDisjunctive(attr, value string) Command {
	return facet(sessionuc.OpAddDisjunctiveFacetRefinement, attr, value)
}

// RemoveDisjunctive unselects value on a disjunctive facet.
func RemoveDisjunctive(attr, value string) Command {
	return facet(sessionuc.OpRemoveDisjunctiveFacetRefinement, attr, value)
}

// ToggleDisjunctive selects or unselects value on a disjunctive facet.
func ToggleDisjunctive(attr, value string) Command {
	return facet(sessionuc.OpToggleDisjunctiveFacetRefinement, attr, value)
}

// ToggleHierarchical refines a hierarchical facet on path, or climbs back up.
func ToggleHierarchical(name, path string) Command {
	return facet(sessionuc.OpToggleHierarchicalFacetRefinement, name, path)
}

// AddTag adds a managed tag refinement.
func AddTag(tag string) Command { return tagCmd(sessionuc.OpAddTagRefinement, tag) }

// RemoveTag drops a managed tag refinement.
func RemoveTag(tag string) Command { return tagCmd(sessionuc.OpRemoveTagRefinement, tag) }

// ToggleTag adds or drops a managed tag refinement.
func ToggleTag(tag string) Command { return tagCmd(sessionuc.OpToggleTagRefinement, tag) }

// ClearRefinements clears refinements of attr ("" for every attribute),
// optionally only of the given kinds (numeric, conjunctiveFacet, exclude,
// disjunctiveFacet, hierarchicalFacet).
func ClearRefinements(attr string, kinds ...string) Command {
	return Command{sessionuc.Command{Op: sessionuc.OpClearRefinements, Attribute: attr, Kinds: kinds}}
}

// ClearTags drops every tag refinement and the raw tag filter.
func ClearTags() Command {
	return Command{sessionuc.Command{Op: sessionuc.OpClearTags}}
}

func facet(op, attr, value string) Command {
	return Command{sessionuc.Command{Op: op, Attribute: attr, Value: &value}}
}

func tagCmd(op, tag string) Command {
	return Command{sessionuc.Command{Op: op, Value: &tag}}
}

func toPatch(p Params) searchstate.Patch {
	if p == nil {
		return nil
	}
	out := make(searchstate.Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

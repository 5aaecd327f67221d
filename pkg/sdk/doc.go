// Package refine provides an embedded Go client for refine search sessions
// stored in Valkey or Redis.
//
// A session holds an immutable search state (query, page, facet declarations
// and refinements). Every change is one operation applied under optimistic
// locking; the state projects to the parameters a search API expects.
//
//	client, _ := refine.New(ctx,
//	    refine.WithValkey("localhost:6379", ""),
//	    refine.WithProfile("shop", refine.Params{
//	        "facets":            []string{"color"},
//	        "disjunctiveFacets": []string{"brand"},
//	    }),
//	)
//	sess, _ := client.Sessions().Create(ctx, "shop", nil)
//	sess, _ = client.Sessions().Apply(ctx, sess.ID, sess.Revision,
//	    refine.ToggleFacet("color", "red"))
//	qp, _ := client.Sessions().QueryParams(ctx, sess.ID)
package refine

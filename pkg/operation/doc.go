/*
Package operation implements the publish engine: upload decisions, lanes,
garbage collection and the deploy run that ties them together.

	+-------------+
	|   Deploy    |
	| (Run Order) |
	+------+------+
	       |
	+------+------+------+
	|             |      |
	+-----+----+ +--+---+ +--+---+
	| Publisher| |Sweep | |State |
	| (lanes)  | | (GC) | | Save |
	+----------+ +------+ +------+

🎯 Purpose:
- Decides for every local file whether it is unchanged, new or stale
- Uploads new objects under content-derived names over a fixed lane pool
- Deletes remote objects that stayed stale for the whole grace period

🔄 Flow:
1. Load .hoist-cache and .hoist-delete, then list the remote subdirectory
2. Scan the local tree and load the preserve list
3. Resolve every remote name before any reference is rewritten
4. Publish: rewrite, transform, compress, decide, upload
5. Sweep stale objects (only with deletion enabled)
6. Save both state objects and print the summary

⚡ Key Responsibilities:
- The upload decision is the only writer of the seen cache
- One failed object never aborts its lane or the run
- Every network call carries its own timeout

🔍 Example:

	op, err := operation.New(operation.Options{
		Provider: p,
		Root:     "./public",
		Delete:   true,
	})
	report, err := op.Deploy(ctx)
*/
package operation

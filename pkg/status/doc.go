/*
Package status counts upload outcomes and reports run progress for hoist.

	            +-------------+
	            |   Tracker   |
	            |  (counts)   |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	| Observers |           | Progress|
	| (metrics) |           | (UI/UX) |
	+-----------+           +---------+

🎯 Purpose:
- Classifies every upload decision as NOOP, SUCCESS or ERROR
- Keeps the run counters (uploaded, present, failed, derived)
- Drives the progress callback with (completed, total)

🔄 Flow:
1. The scheduler creates a Tracker with the number of files
2. Transforms that emit derived artifacts Grow the total
3. Every decision is passed to Track exactly once
4. The orchestrator reads Counts for the run summary

⚡ Key Responsibilities:
- Counters never decrease during a run
- Callbacks are serialized under the tracker lock
- Formatting of per-object debug lines
*/
package status

// Package gather adds peripheral context to document chunks.
//
// Given a flat list of chunk records from one or more documents, the stage
// rebuilds each document's order and, for every chunk, renders a text block with
// the chunk itself wrapped in markers and a bounded window of its neighbors
// before and after it.
//
// # Basic Usage
//
//	stage, err := gather.NewStage(map[string]any{
//	    "content_key": "text",
//	    "doc_id_key":  "doc_id",
//	    "order_key":   "seq",
//	    "peripheral_chunks": map[string]any{
//	        "previous": map[string]any{
//	            "head": map[string]any{"count": 1},
//	            "tail": map[string]any{"count": 1, "content_key": "summary"},
//	        },
//	        "next": map[string]any{
//	            "head": map[string]any{"count": 2},
//	        },
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err) // *gather.ConfigError
//	}
//
//	out, cost, err := stage.Execute(ctx, records)
//	// out[i]["text_formatted"] holds the enriched block; cost is always 0
//
// # Windows
//
// Each direction is scanned nearest-first. A neighbor at position i of n is
// placed in:
//   - head when i < head.count
//   - tail when i >= n - tail.count (the far end of the document)
//   - middle when a middle section is configured
//   - skipped otherwise
//
// Skipped runs collapse into one "[... N characters skipped ...]" line. Sections
// may name a content_key override; such lines are labeled "(Summary)".
//
// # Output Layout
//
//	--- Previous Context ---
//	[Chunk 1] ...
//	[... 120 characters skipped ...]
//	[Chunk 4] ...
//	--- End Previous Context ---
//
//	--- Begin Main Chunk ---
//	<chunk text>
//	--- End Main Chunk ---
//
//	--- Next Context ---
//	[Chunk 6] ...
//	--- End Next Context ---
//
// # Concurrency
//
// Execute is synchronous. Document groups share nothing, so ExecuteParallel
// fans groups out over an errgroup and reassembles them in the same order
// Execute produces.
package gather

// Package types provides shared type definitions for the gather MCP server.
//
// # Records
//
// A Record is one chunk of a document. Its shape is open: the fields holding the
// text, the document identity and the position inside the document are named by
// configuration, so every access goes through a typed accessor:
//
//	rec := types.Record{"text": "Once upon a time", "doc": "d1", "seq": 1}
//
//	text, err := rec.String("text")
//	if errors.Is(err, types.ErrFieldMissing) {
//	    // key absent
//	}
//	if errors.Is(err, types.ErrFieldType) {
//	    // present, but not a string
//	}
//
// Records are never mutated in place by processing stages; Clone returns the
// shallow copy that a stage decorates with derived fields.
//
// # Ordering
//
// Order values arrive from JSON (float64 or json.Number), YAML (int) or Go
// callers (any numeric kind). CompareOrder normalizes them:
//
//	types.CompareOrder(2, 10.0)          // -1
//	types.CompareOrder("b", "a")         // 1
//	types.CompareOrder("1", 1)           // ErrIncomparable
//
// FormatValue renders an order value the way it appears in a chunk label, so
// the JSON number 3 prints as "3" rather than "3.0".
package types

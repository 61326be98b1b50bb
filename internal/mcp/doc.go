// Package mcp implements the Model Context Protocol (MCP) server for gather-mcp.
//
// The MCP server exposes the gather stage to MCP clients:
//   - validate_gather_config: Check an operation config without running it
//   - gather_context: Run the stage over inline records or a stored dataset
//   - store_chunks: Store chunk records in a named dataset
//   - list_datasets: List stored datasets
//   - delete_dataset: Remove a dataset and its records
//   - get_status: Store statistics and recent runs
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries the protocol, so all logging goes to stderr.
//
// # Tool: gather_context
//
//	Request:
//	{
//	  "config": {
//	    "content_key": "text",
//	    "doc_id_key": "doc_id",
//	    "order_key": "seq",
//	    "peripheral_chunks": {
//	      "previous": {"head": {"count": 1}, "tail": {"count": 2}},
//	      "next": {"head": {"count": 1}}
//	    }
//	  },
//	  "records": [{"doc_id": "a", "seq": 1, "text": "..."}]
//	}
//
//	Response:
//	{
//	  "records": [{"doc_id": "a", "seq": 1, "text": "...", "text_formatted": "..."}],
//	  "record_count": 1,
//	  "group_count": 1,
//	  "cost": 0
//	}
//
// Pass "dataset" instead of "records" to read a stored dataset, and
// "output_dataset" to store the results. Only one stored run executes at a time.
//
// # Error Handling
//
// Tool failures are returned as MCPError values with JSON-RPC codes:
//   - -32602: Invalid parameters
//   - -32603: Internal error
//   - -32001: Dataset not found
//   - -32002: Run already in progress
//   - -32003: Invalid gather config (data names the offending key)
//   - -32004: Record data error (missing field, wrong type, incomparable order)
package mcp

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// configProperty describes the config argument shared by the gather tools
var configProperty = map[string]interface{}{
	"type": []string{"object", "string"},
	"description": "Gather operation config: an object, or YAML/JSON text. " +
		"Requires content_key, doc_id_key, order_key and peripheral_chunks " +
		"({previous, next} windows with head/middle/tail sections)",
}

var operationProperty = map[string]interface{}{
	"type":        "string",
	"description": "Operation name to pick when config is a pipeline with an operations list",
}

var recordsProperty = map[string]interface{}{
	"type":        "array",
	"description": "Chunk records (JSON objects)",
	"items": map[string]interface{}{
		"type": "object",
	},
}

var datasetProperty = map[string]interface{}{
	"type":        "string",
	"description": "Stored dataset name",
}

// validateGatherConfigTool returns the tool definition for validate_gather_config
func validateGatherConfigTool() mcp.Tool {
	return mcp.Tool{
		Name:        "validate_gather_config",
		Description: "Check a gather operation config without processing any records",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config":    configProperty,
				"operation": operationProperty,
			},
			Required: []string{"config"},
		},
	}
}

// gatherContextTool returns the tool definition for gather_context
func gatherContextTool() mcp.Tool {
	return mcp.Tool{
		Name: "gather_context",
		Description: "Add surrounding document context to every chunk. Each output record gains " +
			"<content_key>_formatted holding previous context, the chunk itself and next context",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config":    configProperty,
				"operation": operationProperty,
				"records":   recordsProperty,
				"dataset": map[string]interface{}{
					"type":        "string",
					"description": "Stored dataset to read instead of inline records",
				},
				"output_dataset": map[string]interface{}{
					"type":        "string",
					"description": "Dataset to create or replace with the results (requires dataset)",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Document groups formatted concurrently (default: server setting)",
					"minimum":     1,
				},
				"include_records": map[string]interface{}{
					"type":        "boolean",
					"description": "If false, return only counts",
					"default":     true,
				},
			},
			Required: []string{"config"},
		},
	}
}

// storeChunksTool returns the tool definition for store_chunks
func storeChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "store_chunks",
		Description: "Store chunk records in a named dataset, creating it if needed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dataset": datasetProperty,
				"records": recordsProperty,
				"replace": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, replace existing records instead of appending",
					"default":     false,
				},
			},
			Required: []string{"dataset", "records"},
		},
	}
}

// listDatasetsTool returns the tool definition for list_datasets
func listDatasetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_datasets",
		Description: "List stored datasets with their record counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// deleteDatasetTool returns the tool definition for delete_dataset
func deleteDatasetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_dataset",
		Description: "Delete a stored dataset and its records",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dataset": datasetProperty,
			},
			Required: []string{"dataset"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report store statistics and recent gather runs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dataset": map[string]interface{}{
					"type":        "string",
					"description": "Only list runs over this input dataset",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of recent runs to return",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

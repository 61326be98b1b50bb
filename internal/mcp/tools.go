package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gather-mcp/internal/config"
	"github.com/dshills/gather-mcp/internal/gather"
	"github.com/dshills/gather-mcp/internal/runner"
	"github.com/dshills/gather-mcp/internal/storage"
	"github.com/dshills/gather-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeDatasetNotFound = -32001 // Named dataset does not exist
	ErrorCodeRunInProgress   = -32002 // Another stored-dataset run is already running
	ErrorCodeInvalidConfig   = -32003 // Gather config failed validation
	ErrorCodeDataError       = -32004 // A record is missing a field or has an unusable value
)

// handleValidateGatherConfig handles the validate_gather_config tool invocation
func (s *Server) handleValidateGatherConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, err := configArg(args)
	if err != nil {
		return nil, err
	}

	cfg, err := gather.ParseConfig(raw)
	if err != nil {
		return nil, s.toolError("validate_gather_config", err)
	}

	response := map[string]interface{}{
		"valid":           true,
		"formatted_key":   cfg.FormattedKey(),
		"skip_accounting": cfg.SkipAccounting.String(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGatherContext handles the gather_context tool invocation
func (s *Server) handleGatherContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, err := configArg(args)
	if err != nil {
		return nil, err
	}

	dataset := getStringDefault(args, "dataset", "")
	outputDataset := getStringDefault(args, "output_dataset", "")
	_, hasRecords := args["records"]
	if hasRecords == (dataset != "") {
		return nil, newMCPError(ErrorCodeInvalidParams, "exactly one of records or dataset is required", map[string]interface{}{
			"param":  "records",
			"reason": "provide inline records or a stored dataset name, not both",
		})
	}
	if outputDataset != "" && dataset == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "output_dataset requires dataset", map[string]interface{}{
			"param":  "output_dataset",
			"reason": "only stored runs can write an output dataset",
		})
	}

	workers := getIntDefault(args, "workers", 0)
	includeRecords := getBoolDefault(args, "include_records", true)

	var stats *runner.Statistics
	if hasRecords {
		records, err := recordsArg(args, "records")
		if err != nil {
			return nil, err
		}
		stats, err = s.runner.Gather(ctx, records, raw, workers)
		if err != nil {
			return nil, s.toolError("gather_context", err)
		}
	} else {
		stats, err = s.runner.Run(ctx, runner.Request{
			Dataset:       dataset,
			OutputDataset: outputDataset,
			Config:        raw,
			Workers:       workers,
		})
		if err != nil {
			return nil, s.toolError("gather_context", err)
		}
	}

	response := map[string]interface{}{
		"record_count": stats.Records,
		"group_count":  stats.Groups,
		"cost":         stats.Cost,
		"duration_ms":  stats.Duration.Milliseconds(),
	}
	if includeRecords {
		response["records"] = stats.Output
	}
	if outputDataset != "" {
		response["output_dataset"] = outputDataset
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStoreChunks handles the store_chunks tool invocation
func (s *Server) handleStoreChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, err := datasetArg(args)
	if err != nil {
		return nil, err
	}
	records, err := recordsArg(args, "records")
	if err != nil {
		return nil, err
	}
	replace := getBoolDefault(args, "replace", false)

	ds, err := s.storeRecords(ctx, name, records, replace)
	if err != nil {
		return nil, s.toolError("store_chunks", err)
	}

	response := map[string]interface{}{
		"dataset": ds.Name,
		"stored":  len(records),
		"total":   ds.RecordCount,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// storeRecords writes records to the named dataset in one transaction
func (s *Server) storeRecords(ctx context.Context, name string, records []types.Record, replace bool) (*storage.Dataset, error) {
	tx, err := s.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ds, err := tx.GetDataset(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		ds = &storage.Dataset{Name: name}
		err = tx.CreateDataset(ctx, ds)
	}
	if err != nil {
		return nil, err
	}

	if replace {
		err = tx.ReplaceRecords(ctx, ds.ID, records)
	} else {
		_, err = tx.AppendRecords(ctx, ds.ID, records)
	}
	if err != nil {
		return nil, err
	}

	// Re-read for the refreshed count
	if ds, err = tx.GetDataset(ctx, name); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return ds, nil
}

// handleListDatasets handles the list_datasets tool invocation
func (s *Server) handleListDatasets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.storage.ListDatasets(ctx)
	if err != nil {
		return nil, s.toolError("list_datasets", err)
	}

	datasets := make([]map[string]interface{}, 0, len(list))
	for _, ds := range list {
		datasets = append(datasets, map[string]interface{}{
			"name":         ds.Name,
			"record_count": ds.RecordCount,
			"updated_at":   ds.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	response := map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteDataset handles the delete_dataset tool invocation
func (s *Server) handleDeleteDataset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, err := datasetArg(args)
	if err != nil {
		return nil, err
	}

	if err := s.storage.DeleteDataset(ctx, name); err != nil {
		return nil, s.toolError("delete_dataset", err)
	}

	response := map[string]interface{}{
		"deleted": true,
		"dataset": name,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param":  "limit",
			"reason": fmt.Sprintf("got %d", limit),
		})
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, s.toolError("get_status", err)
	}
	runs, err := s.storage.ListRuns(ctx, getStringDefault(args, "dataset", ""), limit)
	if err != nil {
		return nil, s.toolError("get_status", err)
	}

	recent := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		recent = append(recent, map[string]interface{}{
			"input_dataset":  run.InputDataset,
			"output_dataset": run.OutputDataset,
			"record_count":   run.RecordCount,
			"group_count":    run.GroupCount,
			"duration_ms":    run.Duration.Milliseconds(),
			"created_at":     run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"datasets_count": status.DatasetCount,
			"records_count":  status.RecordCount,
			"runs_count":     status.RunCount,
		},
		"schema_version": status.SchemaVersion,
		"driver":         status.Driver,
		"recent_runs":    recent,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toolError logs a failed tool call and maps err to an MCP error
func (s *Server) toolError(tool string, err error) error {
	mapped := mapError(err)
	s.log.Warn("tool failed", "tool", tool, "code", mapped.Code, "err", err)
	return mapped
}

// mapError translates domain errors into MCP error codes
func mapError(err error) *MCPError {
	var cfgErr *gather.ConfigError
	if errors.As(err, &cfgErr) {
		return &MCPError{
			Code:    ErrorCodeInvalidConfig,
			Message: "invalid gather config",
			Data: map[string]interface{}{
				"key":    cfgErr.Key,
				"reason": cfgErr.Reason,
			},
		}
	}

	switch {
	case errors.Is(err, gather.ErrInvalidConfig):
		return &MCPError{Code: ErrorCodeInvalidConfig, Message: "invalid gather config", Data: errorData(err)}
	case errors.Is(err, storage.ErrNotFound):
		return &MCPError{Code: ErrorCodeDatasetNotFound, Message: "dataset not found", Data: errorData(err)}
	case errors.Is(err, runner.ErrRunInProgress):
		return &MCPError{Code: ErrorCodeRunInProgress, Message: "a gather run is already in progress", Data: nil}
	case isDataError(err):
		return &MCPError{Code: ErrorCodeDataError, Message: "record data error", Data: errorData(err)}
	default:
		return &MCPError{Code: ErrorCodeInternalError, Message: "internal error", Data: errorData(err)}
	}
}

func isDataError(err error) bool {
	var dataErr *gather.DataError
	return errors.As(err, &dataErr) ||
		errors.Is(err, types.ErrFieldMissing) ||
		errors.Is(err, types.ErrFieldType) ||
		errors.Is(err, types.ErrIncomparable)
}

func errorData(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// configArg extracts the gather config as an object or YAML/JSON text
func configArg(args map[string]interface{}) (map[string]any, error) {
	operation := getStringDefault(args, "operation", "")
	switch v := args["config"].(type) {
	case map[string]interface{}:
		if _, ok := v["operations"]; ok {
			return selectInline(v, operation)
		}
		return v, nil
	case string:
		if v == "" {
			break
		}
		raw, err := config.ParseOperation(v, operation)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid config text", map[string]interface{}{
				"param":  "config",
				"reason": err.Error(),
			})
		}
		return raw, nil
	}
	return nil, newMCPError(ErrorCodeInvalidParams, "config parameter is required", map[string]interface{}{
		"param":  "config",
		"reason": "missing, empty, or not an object",
	})
}

// selectInline picks an operation out of an inline pipeline object
func selectInline(pipeline map[string]interface{}, operation string) (map[string]any, error) {
	text, err := json.Marshal(pipeline)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid config", errorData(err))
	}
	raw, err := config.ParseOperation(string(text), operation)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid config", map[string]interface{}{
			"param":  "operation",
			"reason": err.Error(),
		})
	}
	return raw, nil
}

// datasetArg extracts the required dataset name
func datasetArg(args map[string]interface{}) (string, error) {
	name, ok := args["dataset"].(string)
	if !ok || name == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "dataset parameter is required", map[string]interface{}{
			"param":  "dataset",
			"reason": "missing or empty",
		})
	}
	return name, nil
}

// recordsArg converts a JSON array of objects into records
func recordsArg(args map[string]interface{}, key string) ([]types.Record, error) {
	list, ok := args[key].([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of objects", map[string]interface{}{
			"param":  key,
			"reason": fmt.Sprintf("got %T", args[key]),
		})
	}

	records := make([]types.Record, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an array of objects", map[string]interface{}{
				"param":  key,
				"reason": fmt.Sprintf("element %d is %T", i, item),
			})
		}
		records[i] = types.Record(obj)
	}
	return records, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

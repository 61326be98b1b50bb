package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/gather-mcp/internal/gather"
	"github.com/dshills/gather-mcp/internal/logger"
	"github.com/dshills/gather-mcp/internal/runner"
	"github.com/dshills/gather-mcp/internal/storage"
	"github.com/dshills/gather-mcp/pkg/types"
)

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// ToolsTestSuite exercises every tool handler against a fresh database
type ToolsTestSuite struct {
	suite.Suite
	server *Server
	ctx    context.Context
}

func TestToolsSuite(t *testing.T) {
	suite.Run(t, new(ToolsTestSuite))
}

func (s *ToolsTestSuite) SetupTest() {
	s.ctx = context.Background()
	server, err := NewServer(s.T().TempDir(), WithLogger(logger.Discard()), WithWorkers(2))
	s.Require().NoError(err)
	s.server = server
}

func (s *ToolsTestSuite) TearDownTest() {
	_ = s.server.Close()
}

func (s *ToolsTestSuite) call(handler toolHandler, name string, args map[string]interface{}) (map[string]interface{}, error) {
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := handler(s.ctx, request)
	if err != nil {
		return nil, err
	}
	s.Require().NotNil(result)
	s.Require().Len(result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	s.Require().True(ok, "expected text content, got %T", result.Content[0])

	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(text.Text), &out))
	return out, nil
}

func (s *ToolsTestSuite) requireCode(err error, code int) *MCPError {
	s.Require().Error(err)
	var mcpErr *MCPError
	s.Require().True(errors.As(err, &mcpErr), "expected MCPError, got %T: %v", err, err)
	s.Equal(code, mcpErr.Code, mcpErr.Message)
	return mcpErr
}

func gatherConfig() map[string]interface{} {
	return map[string]interface{}{
		"content_key": "text",
		"doc_id_key":  "doc",
		"order_key":   "seq",
		"peripheral_chunks": map[string]interface{}{
			"previous": map[string]interface{}{"head": map[string]interface{}{"count": float64(1)}},
			"next":     map[string]interface{}{"head": map[string]interface{}{"count": float64(1)}},
		},
	}
}

// chunkArgs mimics JSON-decoded tool arguments
func chunkArgs() []interface{} {
	return []interface{}{
		map[string]interface{}{"doc": "a", "seq": float64(2), "text": "second"},
		map[string]interface{}{"doc": "a", "seq": float64(1), "text": "first"},
		map[string]interface{}{"doc": "b", "seq": float64(1), "text": "lonely"},
	}
}

func (s *ToolsTestSuite) storeChunks(name string) {
	_, err := s.call(s.server.handleStoreChunks, "store_chunks", map[string]interface{}{
		"dataset": name,
		"records": chunkArgs(),
	})
	s.Require().NoError(err)
}

func (s *ToolsTestSuite) TestValidateGatherConfig() {
	out, err := s.call(s.server.handleValidateGatherConfig, "validate_gather_config", map[string]interface{}{
		"config": gatherConfig(),
	})
	s.Require().NoError(err)
	s.Equal(true, out["valid"])
	s.Equal("text_formatted", out["formatted_key"])
	s.Equal("remaining", out["skip_accounting"])
}

func (s *ToolsTestSuite) TestValidateGatherConfig_Invalid() {
	cfg := gatherConfig()
	cfg["peripheral_chunks"] = map[string]interface{}{
		"previous": map[string]interface{}{"head": map[string]interface{}{}},
	}

	_, err := s.call(s.server.handleValidateGatherConfig, "validate_gather_config", map[string]interface{}{
		"config": cfg,
	})
	mcpErr := s.requireCode(err, ErrorCodeInvalidConfig)
	data, ok := mcpErr.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal("peripheral_chunks.previous.head.count", data["key"])
}

func (s *ToolsTestSuite) TestValidateGatherConfig_TextPipeline() {
	text := `
operations:
  - name: gather_ctx
    type: gather
    content_key: text
    doc_id_key: doc
    order_key: seq
    peripheral_chunks:
      next:
        tail:
          count: 2
`
	out, err := s.call(s.server.handleValidateGatherConfig, "validate_gather_config", map[string]interface{}{
		"config":    text,
		"operation": "gather_ctx",
	})
	s.Require().NoError(err)
	s.Equal(true, out["valid"])
}

func (s *ToolsTestSuite) TestValidateGatherConfig_MissingConfig() {
	_, err := s.call(s.server.handleValidateGatherConfig, "validate_gather_config", map[string]interface{}{})
	s.requireCode(err, ErrorCodeInvalidParams)
}

func (s *ToolsTestSuite) TestGatherContext_InlineRecords() {
	out, err := s.call(s.server.handleGatherContext, "gather_context", map[string]interface{}{
		"config":  gatherConfig(),
		"records": chunkArgs(),
	})
	s.Require().NoError(err)

	s.Equal(float64(3), out["record_count"])
	s.Equal(float64(2), out["group_count"])
	s.Equal(float64(0), out["cost"])

	records, ok := out["records"].([]interface{})
	s.Require().True(ok)
	s.Require().Len(records, 3)

	first := records[0].(map[string]interface{})
	s.Equal("first", first["text"])
	s.Equal("--- Previous Context ---\n--- End Previous Context ---\n\n"+
		"--- Begin Main Chunk ---\nfirst\n--- End Main Chunk ---\n\n"+
		"--- Next Context ---\n[Chunk 2] second\n--- End Next Context ---",
		first["text_formatted"])

	lonely := records[2].(map[string]interface{})
	s.Equal("--- Previous Context ---\n--- End Previous Context ---\n\n"+
		"--- Begin Main Chunk ---\nlonely\n--- End Main Chunk ---\n\n"+
		"--- Next Context ---\n--- End Next Context ---",
		lonely["text_formatted"])
}

func (s *ToolsTestSuite) TestGatherContext_CountsOnly() {
	out, err := s.call(s.server.handleGatherContext, "gather_context", map[string]interface{}{
		"config":          gatherConfig(),
		"records":         chunkArgs(),
		"include_records": false,
	})
	s.Require().NoError(err)
	s.NotContains(out, "records")
	s.Equal(float64(3), out["record_count"])
}

func (s *ToolsTestSuite) TestGatherContext_StoredDataset() {
	s.storeChunks("chunks")

	out, err := s.call(s.server.handleGatherContext, "gather_context", map[string]interface{}{
		"config":          gatherConfig(),
		"dataset":         "chunks",
		"output_dataset":  "chunks_ctx",
		"include_records": false,
	})
	s.Require().NoError(err)
	s.Equal("chunks_ctx", out["output_dataset"])

	ds, err := s.server.storage.GetDataset(s.ctx, "chunks_ctx")
	s.Require().NoError(err)
	s.Equal(3, ds.RecordCount)

	status, err := s.call(s.server.handleGetStatus, "get_status", map[string]interface{}{"dataset": "chunks"})
	s.Require().NoError(err)
	runs := status["recent_runs"].([]interface{})
	s.Require().Len(runs, 1)
	s.Equal("chunks_ctx", runs[0].(map[string]interface{})["output_dataset"])
}

func (s *ToolsTestSuite) TestGatherContext_ArgumentErrors() {
	cases := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"neither records nor dataset", map[string]interface{}{"config": gatherConfig()}, ErrorCodeInvalidParams},
		{"both records and dataset", map[string]interface{}{"config": gatherConfig(), "records": chunkArgs(), "dataset": "x"}, ErrorCodeInvalidParams},
		{"output without dataset", map[string]interface{}{"config": gatherConfig(), "records": chunkArgs(), "output_dataset": "x"}, ErrorCodeInvalidParams},
		{"records not objects", map[string]interface{}{"config": gatherConfig(), "records": []interface{}{"a"}}, ErrorCodeInvalidParams},
		{"unknown dataset", map[string]interface{}{"config": gatherConfig(), "dataset": "missing"}, ErrorCodeDatasetNotFound},
		{"invalid config", map[string]interface{}{"config": map[string]interface{}{"content_key": "text"}, "records": chunkArgs()}, ErrorCodeInvalidConfig},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.call(s.server.handleGatherContext, "gather_context", tc.args)
			s.requireCode(err, tc.code)
		})
	}
}

func (s *ToolsTestSuite) TestGatherContext_DataError() {
	records := chunkArgs()
	delete(records[1].(map[string]interface{}), "text")

	_, err := s.call(s.server.handleGatherContext, "gather_context", map[string]interface{}{
		"config":  gatherConfig(),
		"records": records,
	})
	s.requireCode(err, ErrorCodeDataError)
}

func (s *ToolsTestSuite) TestStoreChunks_AppendAndReplace() {
	s.storeChunks("chunks")

	out, err := s.call(s.server.handleStoreChunks, "store_chunks", map[string]interface{}{
		"dataset": "chunks",
		"records": chunkArgs()[:1],
	})
	s.Require().NoError(err)
	s.Equal(float64(1), out["stored"])
	s.Equal(float64(4), out["total"])

	out, err = s.call(s.server.handleStoreChunks, "store_chunks", map[string]interface{}{
		"dataset": "chunks",
		"records": chunkArgs()[:2],
		"replace": true,
	})
	s.Require().NoError(err)
	s.Equal(float64(2), out["total"])
}

func (s *ToolsTestSuite) TestStoreChunks_MissingDataset() {
	_, err := s.call(s.server.handleStoreChunks, "store_chunks", map[string]interface{}{
		"records": chunkArgs(),
	})
	s.requireCode(err, ErrorCodeInvalidParams)
}

func (s *ToolsTestSuite) TestListAndDeleteDatasets() {
	s.storeChunks("one")
	s.storeChunks("two")

	out, err := s.call(s.server.handleListDatasets, "list_datasets", map[string]interface{}{})
	s.Require().NoError(err)
	s.Equal(float64(2), out["count"])
	datasets := out["datasets"].([]interface{})
	s.Equal("one", datasets[0].(map[string]interface{})["name"])
	s.Equal(float64(3), datasets[0].(map[string]interface{})["record_count"])

	out, err = s.call(s.server.handleDeleteDataset, "delete_dataset", map[string]interface{}{"dataset": "one"})
	s.Require().NoError(err)
	s.Equal(true, out["deleted"])

	_, err = s.call(s.server.handleDeleteDataset, "delete_dataset", map[string]interface{}{"dataset": "one"})
	s.requireCode(err, ErrorCodeDatasetNotFound)

	out, err = s.call(s.server.handleListDatasets, "list_datasets", nil)
	s.Require().NoError(err)
	s.Equal(float64(1), out["count"])
}

func (s *ToolsTestSuite) TestGetStatus() {
	s.storeChunks("chunks")

	out, err := s.call(s.server.handleGetStatus, "get_status", nil)
	s.Require().NoError(err)

	stats := out["statistics"].(map[string]interface{})
	s.Equal(float64(1), stats["datasets_count"])
	s.Equal(float64(3), stats["records_count"])
	s.Equal(storage.CurrentSchemaVersion, out["schema_version"])
	s.Equal(storage.DriverName, out["driver"])

	_, err = s.call(s.server.handleGetStatus, "get_status", map[string]interface{}{"limit": float64(0)})
	s.requireCode(err, ErrorCodeInvalidParams)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"config error", &gather.ConfigError{Key: "order_key", Reason: "missing required key"}, ErrorCodeInvalidConfig},
		{"not found", fmt.Errorf("load: %w", storage.ErrNotFound), ErrorCodeDatasetNotFound},
		{"run in progress", runner.ErrRunInProgress, ErrorCodeRunInProgress},
		{"data error", &gather.DataError{DocID: "a", Index: 1, Err: types.ErrIncomparable}, ErrorCodeDataError},
		{"field error", &types.FieldError{Key: "text", Kind: types.FieldMissing}, ErrorCodeDataError},
		{"other", errors.New("disk full"), ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, mapError(tt.err).Code)
		})
	}
}

func TestMCPError_Error(t *testing.T) {
	err := newMCPError(ErrorCodeInvalidParams, "bad", nil)
	assert.Equal(t, "MCP error -32602: bad", err.Error())
}

func TestGetIntDefault(t *testing.T) {
	args := map[string]interface{}{"f": float64(4), "i": 5, "s": "6"}
	assert.Equal(t, 4, getIntDefault(args, "f", 0))
	assert.Equal(t, 5, getIntDefault(args, "i", 0))
	assert.Equal(t, 7, getIntDefault(args, "s", 7))
	assert.Equal(t, 8, getIntDefault(nil, "missing", 8))
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gather-mcp/internal/gather"
)

const pipelineYAML = `
datasets:
  chunks:
    type: file
    path: chunks.json
operations:
  - name: split_doc
    type: split
  - name: gather_context
    type: gather
    content_key: text
    doc_id_key: split_doc_id
    order_key: split_doc_chunk_num
    peripheral_chunks:
      previous:
        head:
          count: 1
        middle:
          content_key: summary
      next:
        head:
          count: 2
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOperation_Pipeline(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", pipelineYAML)

	t.Run("only gather operation", func(t *testing.T) {
		op, err := LoadOperation(path, "")
		require.NoError(t, err)
		assert.Equal(t, "gather_context", op["name"])

		cfg, err := gather.ParseConfig(op)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Peripheral.Previous.HeadCount())
		assert.Equal(t, "summary", cfg.Peripheral.Previous.Middle.ContentKey)
		assert.Equal(t, 2, cfg.Peripheral.Next.HeadCount())
	})

	t.Run("by name", func(t *testing.T) {
		op, err := LoadOperation(path, "split_doc")
		require.NoError(t, err)
		assert.Equal(t, "split", op["type"])
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := LoadOperation(path, "nope")
		assert.ErrorIs(t, err, ErrOperationNotFound)
	})
}

func TestLoadOperation_Ambiguous(t *testing.T) {
	path := writeFile(t, "p.yml", `
operations:
  - {name: a, type: gather}
  - {name: b, type: gather}
`)
	_, err := LoadOperation(path, "")
	assert.ErrorIs(t, err, ErrAmbiguousOperation)

	op, err := LoadOperation(path, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", op["name"])
}

func TestLoadOperation_SingleJSON(t *testing.T) {
	path := writeFile(t, "op.json", `{
		"content_key": "text",
		"doc_id_key": "doc",
		"order_key": "seq",
		"peripheral_chunks": {"next": {"tail": {"count": 2}}}
	}`)

	op, err := LoadOperation(path, "")
	require.NoError(t, err)

	cfg, err := gather.ParseConfig(op)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Peripheral.Next.TailCount())
}

func TestLoadOperation_Errors(t *testing.T) {
	_, err := LoadOperation(writeFile(t, "op.toml", "x = 1"), "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadOperation(writeFile(t, "op.yaml", "- 1\n- 2\n"), "")
	assert.Error(t, err)

	_, err = LoadOperation(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestLoadRecords(t *testing.T) {
	t.Run("json keeps numbers exact", func(t *testing.T) {
		path := writeFile(t, "in.json", `[{"doc": "a", "seq": 9007199254740993, "text": "x"}]`)
		recs, err := LoadRecords(path)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, json.Number("9007199254740993"), recs[0]["seq"])
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, "in.yaml", "- {doc: a, seq: 2, text: hi}\n- {doc: a, seq: 1, text: yo}\n")
		recs, err := LoadRecords(path)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, 2, recs[0]["seq"])
	})

	t.Run("null element rejected", func(t *testing.T) {
		_, err := LoadRecords(writeFile(t, "bad.json", `[{"a": 1}, null]`))
		assert.Error(t, err)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GATHER_DB_PATH", "/tmp/gather-test")
	t.Setenv("GATHER_LOG_LEVEL", "debug")
	t.Setenv("GATHER_LOG_JSON", "true")
	t.Setenv("GATHER_WORKERS", "3")

	s := FromEnv()
	assert.Equal(t, "/tmp/gather-test", s.DBPath)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.LogJSON)
	assert.Equal(t, 3, s.Workers)
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("GATHER_DB_PATH", "")
	t.Setenv("GATHER_LOG_LEVEL", "")
	t.Setenv("GATHER_LOG_JSON", "")
	t.Setenv("GATHER_WORKERS", "zero")

	s := FromEnv()
	assert.Equal(t, DefaultDBPath, s.DBPath)
	assert.Equal(t, "info", s.LogLevel)
	assert.False(t, s.LogJSON)
	assert.Positive(t, s.Workers)
}

func TestExpandHome(t *testing.T) {
	p, err := ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", p)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	p, err = ExpandHome("~/.gather-mcp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".gather-mcp"), p)
}

func TestParseOperation(t *testing.T) {
	t.Run("json text", func(t *testing.T) {
		op, err := ParseOperation(`{"content_key": "text", "doc_id_key": "doc"}`, "")
		require.NoError(t, err)
		assert.Equal(t, "text", op["content_key"])
	})

	t.Run("yaml pipeline", func(t *testing.T) {
		text := `
operations:
  - name: split
    type: split
  - name: ctx
    type: gather
    content_key: body
`
		op, err := ParseOperation(text, "")
		require.NoError(t, err)
		assert.Equal(t, "body", op["content_key"])
	})

	t.Run("not a mapping", func(t *testing.T) {
		_, err := ParseOperation("- a\n- b\n", "")
		assert.Error(t, err)
	})
}

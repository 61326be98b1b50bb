package storage

import (
	"context"
	"time"

	"github.com/dshills/gather-mcp/pkg/types"
)

// Storage defines the interface for persisting chunk datasets
type Storage interface {
	// Dataset operations
	CreateDataset(ctx context.Context, dataset *Dataset) error
	GetDataset(ctx context.Context, name string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]*Dataset, error)
	DeleteDataset(ctx context.Context, name string) error

	// Record operations
	AppendRecords(ctx context.Context, datasetID int64, records []types.Record) (int, error)
	ReplaceRecords(ctx context.Context, datasetID int64, records []types.Record) error
	ListRecords(ctx context.Context, datasetID int64) ([]types.Record, error)

	// Run operations
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, inputDataset string, limit int) ([]*Run, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Dataset is a named, ordered collection of chunk records
type Dataset struct {
	ID          int64
	Name        string
	RecordCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Run records one stage execution over a stored dataset
type Run struct {
	ID            int64
	InputDataset  string
	OutputDataset string // Empty when the output was not stored
	RecordCount   int
	GroupCount    int
	Cost          float64
	Duration      time.Duration
	CreatedAt     time.Time
}

// Status summarizes the store
type Status struct {
	DatasetCount  int
	RecordCount   int
	RunCount      int
	SchemaVersion string
	Driver        string
}

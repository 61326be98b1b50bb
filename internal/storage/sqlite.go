package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/gather-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Dataset operations

func (s *SQLiteStorage) createDatasetWithQuerier(ctx context.Context, q querier, dataset *Dataset) error {
	if dataset.Name == "" {
		return errors.New("dataset name is required")
	}
	query := `
		INSERT INTO datasets (name, record_count, created_at, updated_at)
		VALUES (?, 0, ?, ?)
	`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query, dataset.Name, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("dataset %s: %w", dataset.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	dataset.ID = id
	dataset.RecordCount = 0
	dataset.CreatedAt = now
	dataset.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateDataset(ctx context.Context, dataset *Dataset) error {
	return s.createDatasetWithQuerier(ctx, s.querier(), dataset)
}

func (s *SQLiteStorage) getDatasetWithQuerier(ctx context.Context, q querier, name string) (*Dataset, error) {
	query := `
		SELECT id, name, record_count, created_at, updated_at
		FROM datasets
		WHERE name = ?
	`
	var d Dataset
	err := q.QueryRowContext(ctx, query, name).Scan(
		&d.ID, &d.Name, &d.RecordCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStorage) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	return s.getDatasetWithQuerier(ctx, s.querier(), name)
}

func (s *SQLiteStorage) listDatasetsWithQuerier(ctx context.Context, q querier) ([]*Dataset, error) {
	query := `
		SELECT id, name, record_count, created_at, updated_at
		FROM datasets
		ORDER BY name
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*Dataset, 0)
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.ID, &d.Name, &d.RecordCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		datasets = append(datasets, &d)
	}
	return datasets, rows.Err()
}

func (s *SQLiteStorage) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	return s.listDatasetsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) deleteDatasetWithQuerier(ctx context.Context, q querier, name string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM datasets WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteDataset(ctx context.Context, name string) error {
	return s.deleteDatasetWithQuerier(ctx, s.querier(), name)
}

// Record operations

// appendRecordsWithQuerier stores records after the dataset's current last
// sequence number, preserving their slice order
func (s *SQLiteStorage) appendRecordsWithQuerier(ctx context.Context, q querier, datasetID int64, records []types.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var next int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM records WHERE dataset_id = ?", datasetID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to read record sequence: %w", err)
	}

	insert := "INSERT INTO records (dataset_id, seq, data) VALUES (?, ?, ?)"
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return i, fmt.Errorf("failed to encode record %d: %w", i, err)
		}
		if _, err := q.ExecContext(ctx, insert, datasetID, next+int64(i), string(data)); err != nil {
			return i, fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := s.refreshCountWithQuerier(ctx, q, datasetID); err != nil {
		return len(records), err
	}
	return len(records), nil
}

func (s *SQLiteStorage) AppendRecords(ctx context.Context, datasetID int64, records []types.Record) (int, error) {
	return s.appendRecordsWithQuerier(ctx, s.querier(), datasetID, records)
}

func (s *SQLiteStorage) replaceRecordsWithQuerier(ctx context.Context, q querier, datasetID int64, records []types.Record) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM records WHERE dataset_id = ?", datasetID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	if len(records) == 0 {
		return s.refreshCountWithQuerier(ctx, q, datasetID)
	}
	_, err := s.appendRecordsWithQuerier(ctx, q, datasetID, records)
	return err
}

// ReplaceRecords swaps a dataset's records. Outside a transaction a failure can
// leave the dataset partially written; callers wanting atomicity use BeginTx.
func (s *SQLiteStorage) ReplaceRecords(ctx context.Context, datasetID int64, records []types.Record) error {
	return s.replaceRecordsWithQuerier(ctx, s.querier(), datasetID, records)
}

func (s *SQLiteStorage) listRecordsWithQuerier(ctx context.Context, q querier, datasetID int64) ([]types.Record, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT seq, data FROM records WHERE dataset_id = ? ORDER BY seq", datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]types.Record, 0)
	for rows.Next() {
		var seq int64
		var data string
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", seq, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) ListRecords(ctx context.Context, datasetID int64) ([]types.Record, error) {
	return s.listRecordsWithQuerier(ctx, s.querier(), datasetID)
}

func (s *SQLiteStorage) refreshCountWithQuerier(ctx context.Context, q querier, datasetID int64) error {
	query := `
		UPDATE datasets
		SET record_count = (SELECT COUNT(*) FROM records WHERE dataset_id = ?),
		    updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query, datasetID, time.Now().UTC(), datasetID)
	if err != nil {
		return fmt.Errorf("failed to update record count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Run operations

func (s *SQLiteStorage) recordRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	query := `
		INSERT INTO runs (input_dataset, output_dataset, record_count, group_count, cost, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var output sql.NullString
	if run.OutputDataset != "" {
		output = sql.NullString{String: run.OutputDataset, Valid: true}
	}
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query,
		run.InputDataset, output, run.RecordCount, run.GroupCount,
		run.Cost, run.Duration.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	run.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) RecordRun(ctx context.Context, run *Run) error {
	return s.recordRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, inputDataset string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, input_dataset, output_dataset, record_count, group_count, cost, duration_ms, created_at
		FROM runs
		WHERE (? = '' OR input_dataset = ?)
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, inputDataset, inputDataset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		var r Run
		var output sql.NullString
		var durationMS sql.NullInt64
		if err := rows.Scan(&r.ID, &r.InputDataset, &output, &r.RecordCount, &r.GroupCount,
			&r.Cost, &durationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.OutputDataset = output.String
		r.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, inputDataset string, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), inputDataset, limit)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{Driver: DriverName}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM datasets").Scan(&status.DatasetCount); err != nil {
		return nil, fmt.Errorf("failed to count datasets: %w", err)
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&status.RecordCount); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	defer rows.Close()

	latest := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if v, err := semver.NewVersion(raw); err == nil && v.GreaterThan(latest) {
			latest = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	status.SchemaVersion = latest.String()

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&status.RunCount); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// decodeRecord parses a stored record, keeping numbers as json.Number
func decodeRecord(data string) (types.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var rec types.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// isUniqueViolation matches the constraint error text of both SQLite drivers
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Transaction methods

func (t *sqliteTx) CreateDataset(ctx context.Context, dataset *Dataset) error {
	return t.storage.createDatasetWithQuerier(ctx, t.querier(), dataset)
}

func (t *sqliteTx) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	return t.storage.getDatasetWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	return t.storage.listDatasetsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteDataset(ctx context.Context, name string) error {
	return t.storage.deleteDatasetWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) AppendRecords(ctx context.Context, datasetID int64, records []types.Record) (int, error) {
	return t.storage.appendRecordsWithQuerier(ctx, t.querier(), datasetID, records)
}

func (t *sqliteTx) ReplaceRecords(ctx context.Context, datasetID int64, records []types.Record) error {
	return t.storage.replaceRecordsWithQuerier(ctx, t.querier(), datasetID, records)
}

func (t *sqliteTx) ListRecords(ctx context.Context, datasetID int64) ([]types.Record, error) {
	return t.storage.listRecordsWithQuerier(ctx, t.querier(), datasetID)
}

func (t *sqliteTx) RecordRun(ctx context.Context, run *Run) error {
	return t.storage.recordRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) ListRuns(ctx context.Context, inputDataset string, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), inputDataset, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

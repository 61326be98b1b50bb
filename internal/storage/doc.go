// Package storage provides SQLite-based persistence for chunk datasets.
//
// The storage layer manages:
//   - Datasets: named, ordered collections of chunk records
//   - Records: one JSON object per chunk, kept in insertion order
//   - Runs: a history of gather executions over stored datasets
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semantic versions)
//   - datasets: name, record count, timestamps
//   - records: dataset_id, seq, data (JSON)
//   - runs: input/output dataset, counts, duration
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("/home/me/.gather-mcp/gather.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	ds := &storage.Dataset{Name: "contract-chunks"}
//	if err := db.CreateDataset(ctx, ds); err != nil {
//	    return err
//	}
//	_, err = db.AppendRecords(ctx, ds.ID, records)
//
// Records come back from ListRecords in the order they were appended. Numbers
// are decoded as json.Number, so integer order keys survive a round trip exactly.
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.ReplaceRecords(ctx, out.ID, enriched); err != nil {
//	    return err
//	}
//	if err := tx.RecordRun(ctx, run); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3. DriverName and
// BuildMode report which one is compiled in.
package storage

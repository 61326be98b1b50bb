// Package runner executes the gather stage over stored chunk datasets.
//
// A run loads a dataset's records in insertion order, formats every document
// group (in parallel when more than one worker is configured) and optionally
// writes the enriched records to an output dataset. The output replacement and
// the run history entry commit in a single transaction, so a failed run leaves
// the previous output untouched.
//
// # Basic Usage
//
//	r := runner.New(store, runner.WithWorkers(4))
//
//	stats, err := r.Run(ctx, runner.Request{
//	    Dataset:       "chunks",
//	    OutputDataset: "chunks_gathered",
//	    Config:        operationConfig,
//	})
//
// Only one stored run is active per Runner; a concurrent call fails fast with
// ErrRunInProgress. Gather runs over in-memory records and takes no lock.
package runner

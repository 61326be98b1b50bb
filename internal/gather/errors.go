package gather

import "fmt"

// DataError locates a record-level failure. Index is the record's position in the
// input (during grouping) or in its sorted group (during formatting); -1 when the
// failure is not tied to a single record.
type DataError struct {
	DocID any
	Index int
	Err   error
}

func (e *DataError) Error() string {
	if e.DocID == nil {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	if e.Index < 0 {
		return fmt.Sprintf("document %v: %v", e.DocID, e.Err)
	}
	return fmt.Sprintf("document %v, chunk %d: %v", e.DocID, e.Index, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

package gather

import (
	"fmt"
	"sort"

	"github.com/dshills/gather-mcp/pkg/types"
)

// Group is every chunk of one document, sorted by order key
type Group struct {
	DocID  any
	Chunks []types.Record
}

// GroupByDocument partitions records by document id and sorts each partition by
// order key. Groups come back in the order their first member appeared; ties on
// the order key keep their input order.
func GroupByDocument(records []types.Record, docIDKey, orderKey string) ([]Group, error) {
	groups := make([]Group, 0)
	index := make(map[string]int)

	for i, rec := range records {
		docID, err := rec.Field(docIDKey)
		if err != nil {
			return nil, &DataError{Index: i, Err: err}
		}
		if _, err := rec.Field(orderKey); err != nil {
			return nil, &DataError{DocID: docID, Index: i, Err: err}
		}
		key, err := types.DocumentKey(docID)
		if err != nil {
			return nil, &DataError{DocID: docID, Index: i, Err: err}
		}

		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, Group{DocID: docID})
		}
		groups[gi].Chunks = append(groups[gi].Chunks, rec)
	}

	for gi := range groups {
		if err := sortByOrder(groups[gi].Chunks, orderKey); err != nil {
			return nil, &DataError{DocID: groups[gi].DocID, Index: -1, Err: err}
		}
	}

	return groups, nil
}

// sortByOrder stable-sorts chunks ascending by orderKey. The first comparison
// failure is reported after sorting finishes.
func sortByOrder(chunks []types.Record, orderKey string) error {
	var cmpErr error
	sort.SliceStable(chunks, func(i, j int) bool {
		if cmpErr != nil {
			return false
		}
		c, err := types.CompareOrder(chunks[i][orderKey], chunks[j][orderKey])
		if err != nil {
			cmpErr = fmt.Errorf("order key %q: %w", orderKey, err)
			return false
		}
		return c < 0
	})
	return cmpErr
}

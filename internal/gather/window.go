package gather

import (
	"fmt"

	"github.com/dshills/gather-mcp/pkg/types"
)

// Bucket is the display bucket a neighbor is classified into
type Bucket int

const (
	BucketHead Bucket = iota
	BucketMiddle
	BucketTail
	BucketSkipped
)

func (b Bucket) String() string {
	switch b {
	case BucketHead:
		return SectionHead
	case BucketMiddle:
		return SectionMiddle
	case BucketTail:
		return SectionTail
	default:
		return "skipped"
	}
}

// Classify places the neighbor at index i (nearest-first) of total neighbors.
// Head is tested before tail, so overlapping ranges resolve to head.
func Classify(i, total int, w Window) Bucket {
	switch {
	case i < w.HeadCount():
		return BucketHead
	case i >= total-w.TailCount():
		return BucketTail
	case w.Middle != nil:
		return BucketMiddle
	default:
		return BucketSkipped
	}
}

func (w Window) section(b Bucket) *Section {
	switch b {
	case BucketHead:
		return w.Head
	case BucketMiddle:
		return w.Middle
	case BucketTail:
		return w.Tail
	}
	return nil
}

// SkipPlaceholder is the line that stands in for a run of skipped neighbors
func SkipPlaceholder(chars int) string {
	return fmt.Sprintf("[... %d characters skipped ...]", chars)
}

// RenderPeripheral classifies neighbors against w and renders them as context
// lines. With reverse set the list is scanned nearest-first from its end (the
// previous direction); the returned lines are always in document reading order.
func RenderPeripheral(neighbors []types.Record, w Window, contentKey, orderKey string, reverse bool, accounting SkipAccounting) ([]string, error) {
	scan := neighbors
	if reverse {
		scan = make([]types.Record, len(neighbors))
		for i, rec := range neighbors {
			scan[len(neighbors)-1-i] = rec
		}
	}

	total := len(scan)
	lines := make([]string, 0, total)
	inSkip := false
	skipped := 0

	// suffix[i] is the summed content length of scan[i:], built on first skip
	var suffix []int

	for i, chunk := range scan {
		bucket := Classify(i, total, w)

		if bucket == BucketSkipped {
			n, err := skipLength(scan, i, contentKey, accounting, &suffix)
			if err != nil {
				return nil, err
			}
			skipped += n
			inSkip = true
			continue
		}

		if inSkip {
			lines = append(lines, SkipPlaceholder(skipped))
			inSkip = false
			skipped = 0
		}

		line, err := renderLine(chunk, w.section(bucket), contentKey, orderKey)
		if err != nil {
			return nil, fmt.Errorf("%s neighbor %d: %w", bucket, i, err)
		}
		lines = append(lines, line)
	}

	if inSkip {
		lines = append(lines, SkipPlaceholder(skipped))
	}

	if reverse {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}
	return lines, nil
}

// skipLength returns the characters charged for skipping scan[i]
func skipLength(scan []types.Record, i int, contentKey string, accounting SkipAccounting, suffix *[]int) (int, error) {
	if accounting == SkipExact {
		n, err := scan[i].TextLength(contentKey)
		if err != nil {
			return 0, fmt.Errorf("skipped neighbor %d: %w", i, err)
		}
		return n, nil
	}

	// Later skips always sit past the first one, so entries below i stay unused.
	if *suffix == nil {
		sums := make([]int, len(scan)+1)
		for j := len(scan) - 1; j >= i; j-- {
			n, err := scan[j].TextLength(contentKey)
			if err != nil {
				return 0, fmt.Errorf("skipped neighbor %d: %w", j, err)
			}
			sums[j] = sums[j+1] + n
		}
		*suffix = sums
	}
	return (*suffix)[i], nil
}

// renderLine formats one visible neighbor, honoring the section's content override
func renderLine(chunk types.Record, sec *Section, contentKey, orderKey string) (string, error) {
	key := contentKey
	if sec != nil && sec.ContentKey != "" {
		key = sec.ContentKey
	}

	order, err := chunk.Field(orderKey)
	if err != nil {
		return "", err
	}
	content, err := chunk.String(key)
	if err != nil {
		return "", err
	}

	suffix := ""
	if key != contentKey {
		suffix = " (Summary)"
	}
	return fmt.Sprintf("[Chunk %s%s] %s", types.FormatValue(order), suffix, content), nil
}

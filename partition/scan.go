// Package partition implements C6 (locating the partition directories that
// already exist on disk and deriving how many the table should have) and
// C7 (lazily mapping one partition's columns on first visit).
package partition

import (
	"context"
	"math"

	"github.com/colstore/tsreader/calendar"
	"github.com/colstore/tsreader/vfs"
)

// FindMin scans root's immediate children and returns the earliest instant
// any directory/symlink entry parses to under scheme. Unparseable names are
// silently skipped — per the reader's contract they may be internal
// artifacts unrelated to partitioning. math.MaxInt64 means no partition
// directory was found.
func FindMin(ctx context.Context, fs vfs.FS, root string, scheme calendar.Scheme) (int64, error) {
	entries, err := fs.ReadDir(ctx, root)
	if err != nil {
		return 0, err
	}
	min := int64(math.MaxInt64)
	for _, e := range entries {
		if e.Kind != vfs.KindDir && e.Kind != vfs.KindSymlink {
			continue
		}
		t, err := scheme.Parse(e.Name)
		if err != nil {
			continue // NumericParseError: not a partition directory, ignore
		}
		if t < min {
			min = t
		}
	}
	return min, nil
}

// Count derives the expected partition count from (min, maxTimestamp) per
// invariant 1: partitions form a contiguous run from min to floor(maxTimestamp).
func Count(scheme calendar.Scheme, min int64, maxTimestamp int64) (int, error) {
	if scheme == calendar.None {
		return 1, nil
	}
	if min == math.MaxInt64 {
		return 0, nil
	}
	floor, err := scheme.Floor(maxTimestamp)
	if err != nil {
		return 0, err
	}
	delta := scheme.Between(min, floor)
	return int(delta) + 1, nil
}

package partition

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/colstore/tsreader/calendar"
	"github.com/colstore/tsreader/meta"
	"github.com/colstore/tsreader/mmregion"
	"github.com/colstore/tsreader/vfs"
)

const archiveFileName = "_archive"

// CorruptArchive is returned when a sealed partition's row-count file is
// absent or too short to hold the 8-byte count the reader's contract
// requires.
type CorruptArchive struct {
	Path   string
	Reason string
}

func (e *CorruptArchive) Error() string {
	return fmt.Sprintf("partition: corrupt archive %s: %s", e.Path, e.Reason)
}

// Set owns the lazily-mapped column files of every partition a table has.
// Columns live in one flat vector at base(p)+2c (data) and base(p)+2c+1
// (index, nil for fixed-width columns), the same flattening
// getColumnBase/getColumnCapacity use in the source reader so that growing
// the partition count never has to relocate already-open columns below the
// grown index.
type Set struct {
	fs     vfs.FS
	root   string
	scheme calendar.Scheme
	table  *meta.Table
	min    int64 // earliest partition's start instant; meaningless for None

	bits     uint // columnCountBits: ceil(log2(columnCount*2))
	pageSize int  // mmap window rounding; 0 means "ask fs.PageSize() each time"

	sizes   []int64 // per partition row count, -1 if not yet opened
	columns []*mmregion.Region
	tops    [][]int64 // tops[p] is nil until partition p is opened
}

// New constructs a column set for a table with the given already-known
// earliest partition instant (from FindMin) and initial capacity. pageSize
// overrides the mmap window rounding fs.PageSize() would otherwise supply;
// pass 0 to use the filesystem's native page size.
func New(fs vfs.FS, root string, scheme calendar.Scheme, table *meta.Table, min int64, count int, pageSize int) *Set {
	s := &Set{
		fs:       fs,
		root:     root,
		scheme:   scheme,
		table:    table,
		min:      min,
		bits:     columnCountBits(table.ColumnCount()),
		pageSize: pageSize,
	}
	s.Grow(count)
	return s
}

func (s *Set) mmapPageSize() int {
	if s.pageSize > 0 {
		return s.pageSize
	}
	return s.fs.PageSize()
}

// columnCountBits mirrors the source's bit-width choice: enough bits to hold
// two slots (data + index) per column without overlap.
func columnCountBits(columnCount int) uint {
	need := columnCount * 2
	if need <= 1 {
		return 1
	}
	return uint(bits.Len(uint(need - 1)))
}

func (s *Set) base(p int) int { return p << s.bits }

// Grow extends the column set to cover partition indices [0, count), used
// both at construction and whenever a reload discovers the table now has
// more partitions than last observed.
func (s *Set) Grow(count int) {
	need := s.base(count)
	if len(s.columns) < need {
		grown := make([]*mmregion.Region, need)
		copy(grown, s.columns)
		s.columns = grown
	}
	for len(s.sizes) < count {
		s.sizes = append(s.sizes, -1)
	}
	for len(s.tops) < count {
		s.tops = append(s.tops, nil)
	}
}

// Count returns the number of partitions currently tracked.
func (s *Set) Count() int { return len(s.sizes) }

// Size returns partition p's last-known row count, or -1 if never opened.
func (s *Set) Size(p int) int64 { return s.sizes[p] }

// Top returns column c's row-top within partition p: the local row index
// before which the column has no data (it was added after the partition was
// created). Zero means the column has data from row 0.
func (s *Set) Top(p, c int) int64 {
	if s.tops[p] == nil {
		return 0
	}
	return s.tops[p][c]
}

// PartitionName renders partition p's directory name.
func (s *Set) PartitionName(p int) string {
	if s.scheme == calendar.None {
		return calendar.DefaultPartitionName
	}
	instant := s.scheme.Add(s.min, p)
	return s.scheme.Format(instant)
}

func (s *Set) partitionPath(p int) string {
	return s.root + "/" + s.PartitionName(p)
}

// Column returns the data and (possibly nil) index region for column c of
// partition p, opening the partition on first access.
func (s *Set) Column(ctx context.Context, p, c int, isLast bool, transientRowCount int64) (data, index *mmregion.Region, err error) {
	if s.sizes[p] < 0 {
		if err := s.open(ctx, p, isLast, transientRowCount); err != nil {
			return nil, nil, err
		}
	}
	base := s.base(p)
	return s.columns[base+c*2], s.columns[base+c*2+1], nil
}

// open maps every column of partition p for the first time. Per spec §4.7,
// an absent partition directory yields a zero-row partition with nothing
// mapped, and a column whose data file is missing (added after this
// partition was created) leaves that column's slot empty rather than
// failing the whole partition.
func (s *Set) open(ctx context.Context, p int, isLast bool, transientRowCount int64) error {
	dir := s.partitionPath(p)
	if !s.fs.Exists(ctx, dir) {
		s.tops[p] = make([]int64, s.table.ColumnCount())
		s.sizes[p] = 0
		return nil
	}

	base := s.base(p)
	tops := make([]int64, s.table.ColumnCount())

	for c := 0; c < s.table.ColumnCount(); c++ {
		col := s.table.Columns[c]
		dataPath := dir + "/" + col.Name + ".d"
		data, err := mmregion.Of(ctx, s.fs, dataPath, s.mmapPageSize())
		switch {
		case err == nil:
			s.columns[base+c*2] = data
		case errors.Is(err, vfs.ErrNotExist):
			// column added after this partition was created; leave nil.
		default:
			return fmt.Errorf("partition: open %s: %w", dataPath, err)
		}

		if col.Type.IsVarLen() && data != nil {
			indexPath := dir + "/" + col.Name + ".i"
			idx, err := mmregion.Of(ctx, s.fs, indexPath, s.mmapPageSize())
			switch {
			case err == nil:
				s.columns[base+c*2+1] = idx
			case errors.Is(err, vfs.ErrNotExist):
				_ = data.Close()
				s.columns[base+c*2] = nil
			default:
				_ = data.Close()
				return fmt.Errorf("partition: open %s: %w", indexPath, err)
			}
		}

		topPath := dir + "/" + col.Name + ".top"
		top, ok, err := readInt64File(ctx, s.fs, topPath)
		if err != nil {
			return fmt.Errorf("partition: read %s: %w", topPath, err)
		}
		if ok {
			tops[c] = top
		}
	}
	s.tops[p] = tops

	if isLast {
		s.sizes[p] = transientRowCount
		return nil
	}
	archivePath := dir + "/" + archiveFileName
	size, ok, err := readInt64File(ctx, s.fs, archivePath)
	if err != nil {
		return &CorruptArchive{Path: archivePath, Reason: err.Error()}
	}
	if !ok {
		return &CorruptArchive{Path: archivePath, Reason: "missing for a closed partition"}
	}
	s.sizes[p] = size
	return nil
}

// Reload re-maps every already-open column of partition p to its current
// on-disk length and updates its cached row count. Called when the
// transaction view reports the live partition's transientRowCount changed,
// or when a closed partition's archive count is re-read after a commit that
// sealed it.
func (s *Set) Reload(ctx context.Context, p int, newSize int64) error {
	base := s.base(p)
	if s.sizes[p] < 0 {
		return nil // never opened, nothing to remap
	}
	for c := 0; c < s.table.ColumnCount(); c++ {
		for _, idx := range [2]int{base + c*2, base + c*2 + 1} {
			if idx < len(s.columns) && s.columns[idx] != nil {
				if err := s.columns[idx].TrackFileSize(); err != nil {
					return err
				}
			}
		}
	}
	s.sizes[p] = newSize
	return nil
}

// Seal re-reads partition p's now-published _archive file and, if p was
// already opened, remaps its mapped columns to their final on-disk length
// and adopts the archived row count. Called on the partition that just
// stopped being the live (last) one, so rows appended to it between the
// previous reload and its sealing are neither lost nor left unmapped. A
// partition that was never opened is left alone; its next Column call will
// open it fresh and read the archive itself.
func (s *Set) Seal(ctx context.Context, p int) error {
	if s.sizes[p] < 0 {
		return nil
	}
	archivePath := s.partitionPath(p) + "/" + archiveFileName
	size, ok, err := readInt64File(ctx, s.fs, archivePath)
	if err != nil {
		return &CorruptArchive{Path: archivePath, Reason: err.Error()}
	}
	if !ok {
		return &CorruptArchive{Path: archivePath, Reason: "missing for a closed partition"}
	}
	return s.Reload(ctx, p, size)
}

// Close releases every mapped column across every partition.
func (s *Set) Close() error {
	var first error
	for _, r := range s.columns {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func readInt64File(ctx context.Context, fs vfs.FS, path string) (int64, bool, error) {
	if !fs.Exists(ctx, path) {
		return 0, false, nil
	}
	f, err := fs.OpenRead(ctx, path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()
	var buf [8]byte
	n, err := f.ReadAt(buf[:], 0)
	if n < 8 {
		if err != nil {
			return 0, false, err
		}
		return 0, false, fmt.Errorf("partition: %s shorter than 8 bytes", path)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), true, nil
}

// Package tstable is the root of the reader: it wires the transaction view
// (txview), the partition directory (partition) and metadata (meta) into a
// single Reader that hands out flyweight Records addressed by a packed row
// id, mirroring TableReader/TableRecord in the design this was distilled
// from.
package tstable

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/colstore/tsreader/calendar"
	"github.com/colstore/tsreader/meta"
	"github.com/colstore/tsreader/partition"
	"github.com/colstore/tsreader/txview"
	"github.com/colstore/tsreader/vfs"
)

const (
	metaFileName = "_meta"
	txnFileName  = "_txn"
	todoFileName = "_todo"
)

// rowIDPartitionBits is the width given to the partition index half of a
// packed row id; the remaining low bits address a row within that
// partition. 32/32 gives each half the same range as a Java int, matching
// the source's (partitionIndex << 32) | rowIndex packing.
const rowIDPartitionBits = 32

// PackRowID combines a partition index and a local row index into the
// opaque id Cursor and Reader.RecordAt exchange.
func PackRowID(partitionIndex, localRowIndex int) int64 {
	return int64(partitionIndex)<<rowIDPartitionBits | int64(uint32(localRowIndex))
}

// UnpackRowID is PackRowID's inverse.
func UnpackRowID(rowID int64) (partitionIndex, localRowIndex int) {
	return int(rowID >> rowIDPartitionBits), int(int32(uint32(rowID)))
}

// Reader is a single table opened for reading. It is not safe for
// concurrent use by multiple goroutines without external synchronization.
// Records obtained from one Reader may be read concurrently only for
// partitions that are already open: a Record accessor opens its partition
// on first access, which updates the Reader's state the same way Reload
// and Close do.
type Reader struct {
	fs   vfs.FS
	root string

	Meta *meta.Table
	tx   *txview.View
	set  *partition.Set

	pageSize int
	logger   *log.Logger

	min       int64 // earliest partition's start instant
	snapshot  txview.Snapshot
	lastIndex int // index of the currently-open (live) partition
}

// Open reads _meta, opens the transaction file, and scans the partition
// directory to derive the table's current shape, using default Options.
func Open(ctx context.Context, fs vfs.FS, root string) (*Reader, error) {
	return OpenWithOptions(ctx, fs, root, Options{})
}

// OpenWithOptions is Open with explicit reader-tuning knobs; see Options.
func OpenWithOptions(ctx context.Context, fs vfs.FS, root string, opts Options) (*Reader, error) {
	if fs.Exists(ctx, root+"/"+todoFileName) {
		return nil, &PendingRecovery{Root: root}
	}

	table, err := meta.Load(ctx, fs, root+"/"+metaFileName)
	if err != nil {
		return nil, err
	}
	if opts.Calendar != nil {
		table.Partitioning = *opts.Calendar
	}

	if !fs.Exists(ctx, root+"/"+txnFileName) {
		return nil, &MissingFile{Path: root + "/" + txnFileName}
	}
	tx, err := txview.Open(ctx, fs, root+"/"+txnFileName)
	if err != nil {
		return nil, err
	}
	if opts.MaxRetries > 0 {
		tx.SetMaxRetries(opts.MaxRetries)
	}

	r := &Reader{fs: fs, root: root, Meta: table, tx: tx, pageSize: opts.PageSize, logger: opts.logger()}
	if _, err := r.Reload(ctx); err != nil {
		_ = tx.Close()
		return nil, err
	}
	r.logger.Printf("tstable: opened %s partitions=%d rows=%d", root, r.PartitionCount(), r.Size())
	return r, nil
}

// Metadata returns the table's immutable schema and partitioning scheme.
func (r *Reader) Metadata() *meta.Table { return r.Meta }

// Close releases every mapped file the reader holds.
func (r *Reader) Close() error {
	var first error
	if r.set != nil {
		if err := r.set.Close(); err != nil {
			first = err
		}
	}
	if err := r.tx.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Reload re-reads the transaction file and, if it changed, re-derives the
// partition count and refreshes the live partition's mapped size. It
// returns whether anything changed since the last Reload/Open.
func (r *Reader) Reload(ctx context.Context) (bool, error) {
	snap, changed, err := r.tx.Read(ctx)
	if err != nil {
		return false, err
	}
	if !changed && r.set != nil {
		return false, nil
	}

	if r.set == nil {
		min, err := r.scanMin(ctx)
		if err != nil {
			return false, err
		}
		r.min = min
		count, err := partition.Count(r.Meta.Partitioning, min, snap.MaxTimestamp)
		if err != nil {
			return false, err
		}
		r.set = partition.New(r.fs, r.root, r.Meta.Partitioning, r.Meta, min, count, r.pageSize)
		r.lastIndex = count - 1
		r.snapshot = snap
		return true, nil
	}

	if r.Meta.Partitioning != calendar.None && r.min == math.MaxInt64 {
		// Table had no partition directory yet the last time we scanned
		// (e.g. never committed); the writer may have created the first
		// one since, so rescan rather than stay stuck at "none found".
		min, err := r.scanMin(ctx)
		if err != nil {
			return false, err
		}
		r.min = min
	}

	count, err := partition.Count(r.Meta.Partitioning, r.min, snap.MaxTimestamp)
	if err != nil {
		return false, err
	}
	if count > r.set.Count() {
		r.set.Grow(count)
	}
	newLast := count - 1
	switch {
	case newLast >= 0 && newLast == r.lastIndex:
		if err := r.set.Reload(ctx, r.lastIndex, snap.TransientRowCount); err != nil {
			return false, err
		}
	case newLast > r.lastIndex:
		// The old last partition just stopped being live; re-open it
		// against its now-published archive so appends made to it since
		// the previous reload are counted and mapped, per spec §4.8's
		// "open the previously-last partition fresh with its archived
		// size" and invariant 2.
		if r.lastIndex >= 0 {
			if err := r.set.Seal(ctx, r.lastIndex); err != nil {
				return false, err
			}
		}
	}
	r.lastIndex = newLast
	r.snapshot = snap
	r.logger.Printf("tstable: reload %s txn=%d rows=%d partitions=%d", r.root, snap.Txn, snap.Size(), r.PartitionCount())
	return true, nil
}

func (r *Reader) scanMin(ctx context.Context) (int64, error) {
	if r.Meta.Partitioning == calendar.None {
		return 0, nil
	}
	return partition.FindMin(ctx, r.fs, r.root, r.Meta.Partitioning)
}

// Size returns the table's current total row count.
func (r *Reader) Size() int64 { return r.snapshot.Size() }

// PartitionCount returns the current number of partitions.
func (r *Reader) PartitionCount() int { return r.lastIndex + 1 }

// PartitionSize returns partition p's row count, opening it if necessary.
func (r *Reader) PartitionSize(ctx context.Context, p int) (int64, error) {
	if err := r.ensureOpen(ctx, p); err != nil {
		return 0, err
	}
	return r.set.Size(p), nil
}

func (r *Reader) ensureOpen(ctx context.Context, p int) error {
	if r.set.Size(p) >= 0 {
		return nil
	}
	_, _, err := r.set.Column(ctx, p, 0, p == r.lastIndex, r.snapshot.TransientRowCount)
	if err != nil {
		return err
	}
	r.logger.Printf("tstable: opened partition %d (%s) of %s, rows=%d", p, r.set.PartitionName(p), r.root, r.set.Size(p))
	return nil
}

// ColumnTop returns column c's row-top within partition p (invariant 4/7 of
// the reader's contract), and true if the partition has been opened. The
// second return is false, with a zero value, if p has never been visited.
func (r *Reader) ColumnTop(p, c int) (int64, bool) {
	if r.set == nil || p < 0 || p >= r.set.Count() || r.set.Size(p) < 0 {
		return 0, false
	}
	return r.set.Top(p, c), true
}

// NewRecord returns a detached flyweight record, independent of any
// Cursor's current position. RecordAt repositions it without disturbing a
// cursor obtained from NewCursor.
func (r *Reader) NewRecord() *Record {
	return &Record{reader: r, p: -1, local: -1}
}

// RecordAt repositions rec to address rowID and returns it for chaining.
func (r *Reader) RecordAt(rec *Record, rowID int64) *Record {
	rec.p, rec.local = UnpackRowID(rowID)
	return rec
}

// NewCursor returns a cursor positioned before the first row.
func (r *Reader) NewCursor() *Cursor {
	c := &Cursor{reader: r}
	c.ToTop()
	return c
}

// GetRecord returns a flyweight Record addressed by rowID. The returned
// Record is only valid until the next Reload.
func (r *Reader) GetRecord(rowID int64) *Record {
	p, local := UnpackRowID(rowID)
	return &Record{reader: r, p: p, local: local}
}

func (r *Reader) columnRegions(ctx context.Context, p, c int) (data, index *partitionColumn, err error) {
	d, i, err := r.set.Column(ctx, p, c, p == r.lastIndex, r.snapshot.TransientRowCount)
	if err != nil {
		return nil, nil, fmt.Errorf("tstable: column %s partition %d: %w", r.Meta.ColumnName(c), p, err)
	}
	top := r.set.Top(p, c)
	return &partitionColumn{region: d, top: top}, &partitionColumn{region: i, top: top}, nil
}

// Package txview implements the sequence-lock reader for the transaction
// file (C5): a writer publishes transientRowCount/fixedRowCount/maxTimestamp
// and then bumps txn; a reader takes a consistent snapshot by re-checking
// txn before and after the payload read. Go has no standalone fence
// intrinsic, so the load-fence/store-fence protocol of the source design is
// expressed with sync/atomic loads on the mapped words — the same
// substitution the rest of the pack makes when a mutex isn't available
// because the other side of the handshake is a separate OS process
// (vectordb/mem's writer lease uses a real mutex between goroutines in one
// process; here the writer is outside the process entirely, so atomics on
// the mapped memory are the only primitive that reaches it).
package txview

import (
	"context"
	"fmt"
	"time"

	"github.com/colstore/tsreader/mmregion"
	"github.com/colstore/tsreader/vfs"
)

// Byte offsets of the four little-endian uint64 fields inside the
// transaction file. These are part of the writer contract (spec §6) and
// must match whatever external writer produced the table; they are not
// something this reader gets to choose.
const (
	OffsetTxn           = 0
	OffsetTransientRows  = 8
	OffsetFixedRows      = 16
	OffsetMaxTimestamp   = 24
	FileSize             = 32
)

// Snapshot is a coherent read of the transaction file at one txn number.
type Snapshot struct {
	Txn               uint64
	TransientRowCount int64
	FixedRowCount     int64
	MaxTimestamp      int64
}

// Size is the table's total row count under this snapshot.
func (s Snapshot) Size() int64 { return s.FixedRowCount + s.TransientRowCount }

// region is the narrow slice of mmregion.Region's surface the seqlock
// handshake needs: atomic word loads plus lifecycle. Keeping it an
// interface rather than a concrete *mmregion.Region lets tests substitute
// a fake writer that tears its txn value between two reads within one
// Read call, which a real mapped file can't be made to do deterministically.
type region interface {
	LoadUint64Atomic(offset int64) uint64
	LoadInt64Atomic(offset int64) int64
	Len() int64
	Close() error
	TrackFileSize() error
}

// View owns the mapped transaction file and the last snapshot observed.
type View struct {
	region   region
	last     Snapshot
	haveLast bool

	// maxRetries bounds retries against an adversarial/torn writer before
	// giving up a single Read call's busy-loop in favor of the caller
	// retrying; 0 means no bound (block until coherent, as the spec
	// requires — a real writer always finishes the handshake quickly).
	maxRetries int
	park       func()
}

// Open memory-maps the transaction file at path.
func Open(ctx context.Context, fs vfs.FS, path string) (*View, error) {
	mapped, err := mmregion.Of(ctx, fs, path, fs.PageSize())
	if err != nil {
		return nil, err
	}
	if mapped.Len() < FileSize {
		_ = mapped.Close()
		return nil, fmt.Errorf("txview: %s is %d bytes, want at least %d", path, mapped.Len(), FileSize)
	}
	return &View{region: mapped, park: parkNanos}, nil
}

func parkNanos() { time.Sleep(time.Nanosecond) }

// Close releases the mapped transaction file.
func (v *View) Close() error { return v.region.Close() }

// Read implements the §4.5 loop: read txn, load-fence, read the payload,
// load-fence, re-read txn. It returns (snapshot, changed, err); changed is
// false when txn is unchanged from the last successful Read, in which case
// snapshot is the cached last value.
func (v *View) Read(ctx context.Context) (Snapshot, bool, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return v.last, false, err
		}
		txn1 := v.loadU64(OffsetTxn)
		if v.haveLast && txn1 == v.last.Txn {
			return v.last, false, nil
		}

		transient := v.loadI64(OffsetTransientRows)
		fixed := v.loadI64(OffsetFixedRows)
		maxTs := v.loadI64(OffsetMaxTimestamp)

		txn2 := v.loadU64(OffsetTxn)
		if txn2 == txn1 {
			snap := Snapshot{Txn: txn1, TransientRowCount: transient, FixedRowCount: fixed, MaxTimestamp: maxTs}
			v.last = snap
			v.haveLast = true
			return snap, true, nil
		}

		attempts++
		if v.maxRetries > 0 && attempts >= v.maxRetries {
			return v.last, false, fmt.Errorf("txview: torn read did not converge after %d attempts", attempts)
		}
		v.park()
	}
}

// SetMaxRetries bounds how many torn-read retries Read will attempt before
// reporting an error instead of parking forever. Zero (the default) means
// unbounded, matching the source's LockSupport.parkNanos(1) loop, which
// never gives up because a well-behaved writer always finishes the
// handshake. Tests exercising an adversarial/never-settling writer should
// set a bound.
func (v *View) SetMaxRetries(n int) { v.maxRetries = n }

func (v *View) loadU64(offset int64) uint64 {
	return v.region.LoadUint64Atomic(offset)
}

func (v *View) loadI64(offset int64) int64 {
	return v.region.LoadInt64Atomic(offset)
}

// Last returns the most recently committed snapshot without re-reading the
// file (zero value, false if Read has never been called).
func (v *View) Last() (Snapshot, bool) { return v.last, v.haveLast }

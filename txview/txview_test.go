package txview

import (
	"context"
	"encoding/binary"
	"os"
	"testing"

	"github.com/colstore/tsreader/vfs"
)

func writeSnapshotFile(m *vfs.Mem, path string, txn uint64, transient, fixed, maxTs int64) {
	buf := make([]byte, FileSize)
	binary.LittleEndian.PutUint64(buf[OffsetTxn:], txn)
	binary.LittleEndian.PutUint64(buf[OffsetTransientRows:], uint64(transient))
	binary.LittleEndian.PutUint64(buf[OffsetFixedRows:], uint64(fixed))
	binary.LittleEndian.PutUint64(buf[OffsetMaxTimestamp:], uint64(maxTs))
	m.PutFile(path, buf)
}

func TestView_ReadInitialSnapshot(t *testing.T) {
	m := vfs.NewMem()
	writeSnapshotFile(m, "/t/_txn", 1, 10, 90, 1700000000000000)

	v, err := Open(context.Background(), m, "/t/_txn")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	snap, changed, err := v.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed=true on first read")
	}
	if snap.Txn != 1 || snap.TransientRowCount != 10 || snap.FixedRowCount != 90 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Size() != 100 {
		t.Fatalf("Size() = %d, want 100", snap.Size())
	}
}

func TestView_ReadUnchangedIsCheap(t *testing.T) {
	m := vfs.NewMem()
	writeSnapshotFile(m, "/t/_txn", 5, 1, 1, 0)

	v, err := Open(context.Background(), m, "/t/_txn")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	first, _, err := v.Read(context.Background())
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, changed, err := v.Read(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if changed {
		t.Fatalf("expected changed=false when txn is unchanged")
	}
	if second != first {
		t.Fatalf("expected cached snapshot to equal first read, got %+v vs %+v", second, first)
	}
}

func TestOpen_RejectsShortFile(t *testing.T) {
	m := vfs.NewMem()
	m.PutFile("/t/_txn", make([]byte, 16))

	if _, err := Open(context.Background(), m, "/t/_txn"); err == nil {
		t.Fatalf("expected error opening a transaction file shorter than FileSize")
	}
}

// tornRegion is an adversarial fake writer: its txn word changes between
// the two reads Read takes within a single attempt, forcing the loop at
// txview.go to detect the mismatch and retry before it can converge. A
// real mapped file can't be made to do this deterministically (nothing
// mutates it between two atomic loads in the same goroutine), which is
// why View.region is an interface rather than a concrete *mmregion.Region.
type tornRegion struct {
	txnReads int
}

func (f *tornRegion) LoadUint64Atomic(offset int64) uint64 {
	if offset != OffsetTxn {
		panic("tornRegion: unexpected offset")
	}
	f.txnReads++
	switch f.txnReads {
	case 1:
		return 1 // first attempt's pre-payload txn
	case 2:
		return 2 // writer bumped txn again mid-read: torn, must retry
	default:
		return 3 // second attempt: stable before and after the payload read
	}
}

func (f *tornRegion) LoadInt64Atomic(offset int64) int64 {
	switch offset {
	case OffsetTransientRows:
		return 7
	case OffsetFixedRows:
		return 2
	case OffsetMaxTimestamp:
		return 99
	default:
		panic("tornRegion: unexpected offset")
	}
}

func (f *tornRegion) Len() int64          { return FileSize }
func (f *tornRegion) Close() error        { return nil }
func (f *tornRegion) TrackFileSize() error { return nil }

func TestView_TornReadRetriesUntilConverged(t *testing.T) {
	fake := &tornRegion{}
	parks := 0
	v := &View{region: fake, park: func() { parks++ }}

	snap, changed, err := v.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed=true once the torn read converges")
	}
	if snap.Txn != 3 {
		t.Fatalf("Txn = %d, want 3 (the post-retry, converged value)", snap.Txn)
	}
	if snap.TransientRowCount != 7 || snap.FixedRowCount != 2 || snap.MaxTimestamp != 99 {
		t.Fatalf("unexpected converged snapshot: %+v", snap)
	}
	if fake.txnReads != 4 {
		t.Fatalf("txn word read %d times, want 4 (two full attempts)", fake.txnReads)
	}
	if parks != 1 {
		t.Fatalf("park called %d times, want exactly 1 (one retry)", parks)
	}
}

func TestView_TornReadNeverConvergesHitsMaxRetries(t *testing.T) {
	fake := &alwaysTornRegion{}
	v := &View{region: fake, park: func() {}}
	v.SetMaxRetries(3)

	_, _, err := v.Read(context.Background())
	if err == nil {
		t.Fatalf("expected an error once maxRetries is exhausted against a writer that never settles")
	}
}

// alwaysTornRegion bumps its txn word on every load, so Read can never see
// the same value before and after the payload read.
type alwaysTornRegion struct {
	n uint64
}

func (f *alwaysTornRegion) LoadUint64Atomic(offset int64) uint64 {
	f.n++
	return f.n
}
func (f *alwaysTornRegion) LoadInt64Atomic(offset int64) int64 { return 0 }
func (f *alwaysTornRegion) Len() int64                         { return FileSize }
func (f *alwaysTornRegion) Close() error                       { return nil }
func (f *alwaysTornRegion) TrackFileSize() error               { return nil }

func TestView_ReadAcrossWriterCommit(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/_txn"
	write := func(txn, transient, fixed, maxTs int64) {
		buf := make([]byte, FileSize)
		binary.LittleEndian.PutUint64(buf[OffsetTxn:], uint64(txn))
		binary.LittleEndian.PutUint64(buf[OffsetTransientRows:], uint64(transient))
		binary.LittleEndian.PutUint64(buf[OffsetFixedRows:], uint64(fixed))
		binary.LittleEndian.PutUint64(buf[OffsetMaxTimestamp:], uint64(maxTs))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			t.Fatalf("write txn file: %v", err)
		}
	}
	write(1, 5, 0, 100)

	local := vfs.NewLocal()
	v, err := Open(context.Background(), local, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	snap, _, err := v.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.TransientRowCount != 5 {
		t.Fatalf("TransientRowCount = %d, want 5", snap.TransientRowCount)
	}

	write(2, 8, 0, 200)
	if err := v.region.TrackFileSize(); err != nil {
		t.Fatalf("track file size: %v", err)
	}
	snap2, changed, err := v.Read(context.Background())
	if err != nil {
		t.Fatalf("read after commit: %v", err)
	}
	if !changed || snap2.Txn != 2 || snap2.TransientRowCount != 8 {
		t.Fatalf("unexpected snapshot after commit: changed=%v snap=%+v", changed, snap2)
	}
}

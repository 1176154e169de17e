package mmregion

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/colstore/tsreader/vfs"
)

func TestRegion_TypedGettersOverMem(t *testing.T) {
	buf := make([]byte, 64)
	buf[0] = 1                                      // bool true
	binary.LittleEndian.PutUint16(buf[2:], 0xFFFE)  // -2 as int16
	binary.LittleEndian.PutUint32(buf[4:], 123)      // int32
	binary.LittleEndian.PutUint64(buf[8:], 456)       // int64

	m := vfs.NewMem()
	m.PutFile("/t/col.d", buf)

	r, err := Of(context.Background(), m, "/t/col.d", m.PageSize())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if !r.GetBool(0) {
		t.Fatalf("expected true at offset 0")
	}
	if got := r.GetShort(2); got != -2 {
		t.Fatalf("GetShort = %d, want -2", got)
	}
	if got := r.GetInt(4); got != 123 {
		t.Fatalf("GetInt = %d, want 123", got)
	}
	if got := r.GetLong(8); got != 456 {
		t.Fatalf("GetLong = %d, want 456", got)
	}
}

func TestRegion_StrAndBinFlyweights(t *testing.T) {
	var buf []byte
	strOff := len(buf)
	chars := utf16.Encode([]rune("hi"))
	buf = append(buf, le32(int32(len(chars)))...)
	for _, c := range chars {
		buf = append(buf, byte(c), byte(c>>8))
	}
	binOff := len(buf)
	buf = append(buf, le32(3)...)
	buf = append(buf, []byte{0xAA, 0xBB, 0xCC}...)
	nullStrOff := len(buf)
	buf = append(buf, le32(-1)...)

	m := vfs.NewMem()
	m.PutFile("/t/s.d", buf)
	r, err := Of(context.Background(), m, "/t/s.d", m.PageSize())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	s := r.GetStr(int64(strOff))
	if s.IsNull() || s.String() != "hi" {
		t.Fatalf("GetStr = %q null=%v, want %q", s.String(), s.IsNull(), "hi")
	}

	b := r.GetBin(int64(binOff))
	if b.IsNull() || string(b.Bytes()) != "\xAA\xBB\xCC" {
		t.Fatalf("GetBin = %x null=%v", b.Bytes(), b.IsNull())
	}

	ns := r.GetStr(int64(nullStrOff))
	if !ns.IsNull() {
		t.Fatalf("expected null string")
	}
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func TestRegion_TrackFileSizeGrowsMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col.d")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	local := vfs.NewLocal()
	r, err := Of(context.Background(), local, path, local.PageSize())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("reopen for append: %v", err)
	}
	if _, err := f.Write([]byte{5, 6, 7, 8}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	if err := r.TrackFileSize(); err != nil {
		t.Fatalf("track file size: %v", err)
	}
	if r.Len() != 8 {
		t.Fatalf("Len() after growth = %d, want 8", r.Len())
	}
	if r.GetByte(7) != 8 {
		t.Fatalf("GetByte(7) = %d, want 8", r.GetByte(7))
	}
}

func TestRegion_AtomicLoadsMatchPlainReads(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:], 0xDEADBEEF)
	binary.LittleEndian.PutUint64(buf[8:], 0xFFFFFFFFFFFFFFFF) // -1 as int64

	m := vfs.NewMem()
	m.PutFile("/t/txn", buf)
	r, err := Of(context.Background(), m, "/t/txn", m.PageSize())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if got := r.LoadUint64Atomic(0); got != 0xDEADBEEF {
		t.Fatalf("LoadUint64Atomic = %x, want %x", got, 0xDEADBEEF)
	}
	if got := r.LoadInt64Atomic(8); got != -1 {
		t.Fatalf("LoadInt64Atomic = %d, want -1", got)
	}
}

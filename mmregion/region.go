// Package mmregion implements the growable memory-mapped byte window (C2
// in the design) that every column data/index file and the transaction
// file are read through. It follows the split vectordb/storage/mmapstore
// established: a real mmap when the backing file exposes a native
// descriptor, a buffered-read fallback otherwise (there, read-only mmap
// failure falls back to ReadAt; here, vfs.Mem simply never offers an fd).
package mmregion

import (
	"context"
	"fmt"
	"unicode/utf16"

	"github.com/colstore/tsreader/vfs"
)

// Region is a byte window over a file that can grow. It never shrinks an
// existing mapping and owns the backing file handle until Close.
type Region struct {
	fs       vfs.FS
	path     string
	file     vfs.File
	pageSize int

	data   []byte // current view, either mmap-backed or a buffered copy
	mapped bool   // true when data is a real OS mapping that must be munmap'd
	length int64  // logical length of the file the last time we observed it
}

// Of opens path through fs and maps an initial window covering its current
// length, rounded up to whole pages.
func Of(ctx context.Context, fs vfs.FS, path string, pageSize int) (*Region, error) {
	f, err := fs.OpenRead(ctx, path)
	if err != nil {
		return nil, err
	}
	r := &Region{fs: fs, path: path, file: f, pageSize: pageSize}
	if err := r.remap(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// TrackFileSize remaps the region to cover the file's current on-disk
// length. Called after a writer append is observed via the transaction
// view; it is a no-op if the file has not grown.
func (r *Region) TrackFileSize() error {
	return r.remap()
}

func (r *Region) remap() error {
	newLen, err := r.currentLength()
	if err != nil {
		return err
	}
	if newLen <= r.length && r.data != nil {
		return nil
	}
	mapLen := roundUpToPage(newLen, r.pageSize)
	if fder, ok := r.file.(vfs.Fder); ok && mapLen > 0 {
		data, err := mmapWindow(fder.Fd(), mapLen)
		if err == nil {
			r.unmapLocked()
			r.data = data
			r.mapped = true
			r.length = newLen
			return nil
		}
		// fall through to buffered read on mmap failure
	}
	buf := make([]byte, newLen)
	if newLen > 0 {
		if _, err := readFull(r.file, buf, 0); err != nil {
			return fmt.Errorf("mmregion: buffered read %s: %w", r.path, err)
		}
	}
	r.unmapLocked()
	r.data = buf
	r.mapped = false
	r.length = newLen
	return nil
}

func (r *Region) unmapLocked() {
	if r.mapped && r.data != nil {
		_ = munmapWindow(r.data)
	}
	r.data = nil
	r.mapped = false
}

func (r *Region) currentLength() (int64, error) {
	if st, ok := r.file.(vfs.Stater); ok {
		info, err := st.Stat()
		if err != nil {
			return 0, fmt.Errorf("mmregion: stat %s: %w", r.path, err)
		}
		return info.Size(), nil
	}
	// No Stat available (vfs.Mem): probe by reading until short/EOF.
	const chunk = 64 * 1024
	var total int64
	buf := make([]byte, chunk)
	for {
		n, err := r.file.ReadAt(buf, total)
		total += int64(n)
		if n == 0 || err != nil {
			break
		}
	}
	return total, nil
}

func readFull(f vfs.File, buf []byte, off int64) (int, error) {
	var read int
	for read < len(buf) {
		n, err := f.ReadAt(buf[read:], off+int64(read))
		read += n
		if n == 0 || err != nil {
			if read == len(buf) {
				return read, nil
			}
			if err != nil {
				return read, err
			}
			break
		}
	}
	return read, nil
}

func roundUpToPage(length int64, pageSize int) int64 {
	if pageSize <= 0 {
		return length
	}
	p := int64(pageSize)
	if length%p == 0 {
		return length
	}
	return (length/p + 1) * p
}

// Close releases the mapping and the underlying file handle.
func (r *Region) Close() error {
	r.unmapLocked()
	return r.file.Close()
}

// Len reports the region's current logical length in bytes.
func (r *Region) Len() int64 { return r.length }

func (r *Region) GetByte(offset int64) byte { return r.data[offset] }

func (r *Region) GetBool(offset int64) bool { return r.data[offset] != 0 }

func (r *Region) GetShort(offset int64) int16 {
	return int16(leUint16(r.data[offset : offset+2]))
}

func (r *Region) GetInt(offset int64) int32 {
	return int32(leUint32(r.data[offset : offset+4]))
}

func (r *Region) GetLong(offset int64) int64 {
	return int64(leUint64(r.data[offset : offset+8]))
}

func (r *Region) GetFloat(offset int64) float32 {
	return float32FromBits(leUint32(r.data[offset : offset+4]))
}

func (r *Region) GetDouble(offset int64) float64 {
	return float64FromBits(leUint64(r.data[offset : offset+8]))
}

// GetBin returns a zero-copy flyweight over a [int32 len][len bytes]
// payload at offset. len == -1 means null.
func (r *Region) GetBin(offset int64) Binary {
	return Binary{region: r, offset: offset}
}

// GetStr returns a zero-copy flyweight over a
// [int32 charCount][charCount*2 bytes UTF-16] payload at offset.
// charCount == -1 means null.
func (r *Region) GetStr(offset int64) Str {
	return Str{region: r, offset: offset}
}

// GetStr2 returns an independent flyweight at the same offset so a caller
// can hold two concurrent string views into one column (e.g. comparing two
// rows of the same column in a predicate).
func (r *Region) GetStr2(offset int64) Str {
	return Str{region: r, offset: offset}
}

// Binary is a flyweight view over a BINARY column's variable-length
// payload. It is valid only until the region it points into is remapped
// or closed.
type Binary struct {
	region *Region
	offset int64
}

func (b Binary) IsNull() bool { return b.region.GetInt(b.offset) == -1 }

func (b Binary) Len() int64 {
	n := b.region.GetInt(b.offset)
	if n < 0 {
		return 0
	}
	return int64(n)
}

// Bytes returns the payload as a slice sharing the region's backing array.
func (b Binary) Bytes() []byte {
	if b.IsNull() {
		return nil
	}
	start := b.offset + 4
	return b.region.data[start : start+b.Len()]
}

// Str is a flyweight view over a STRING column's variable-length payload.
type Str struct {
	region *Region
	offset int64
}

func (s Str) IsNull() bool { return s.region.GetInt(s.offset) == -1 }

// CharCount returns the number of UTF-16 code units in the payload, or -1 if null.
func (s Str) CharCount() int32 { return s.region.GetInt(s.offset) }

// String decodes the payload. Each call allocates; callers on a hot path
// should prefer CharCount/IsNull when only the length is needed.
func (s Str) String() string {
	n := s.CharCount()
	if n < 0 {
		return ""
	}
	start := s.offset + 4
	units := make([]uint16, n)
	for i := int32(0); i < n; i++ {
		units[i] = leUint16(s.region.data[start+int64(i)*2 : start+int64(i)*2+2])
	}
	return string(utf16.Decode(units))
}

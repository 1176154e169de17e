// Package meta loads the table metadata blob (C4): column count, names,
// types, the designated timestamp column, and the partitioning scheme. The
// on-disk shape is writer-defined per the reader's contract; this package
// picks a concrete, pack-grounded shape — bintly for the structured body
// (the same codec vectordb.Document uses for its own binary form) plus a
// trailing HighwayHash-64 checksum (the same primitive indexer/cache.Hash
// uses) so a truncated or hand-edited file is caught as CorruptMetadata
// instead of silently misread.
package meta

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"
	"github.com/viant/bintly"

	"github.com/colstore/tsreader/calendar"
	"github.com/colstore/tsreader/vfs"
)

// ColumnType is the stable on-disk type tag of a column.
type ColumnType int

const (
	Boolean ColumnType = iota
	Byte
	Short
	Int
	Float
	Long
	Double
	Date
	Timestamp
	Symbol
	String
	Binary
)

// Size returns the fixed on-disk width in bytes of T, or 0 for the
// variable-length types (String, Binary). Symbol is 4 bytes: its dictionary
// id is fixed-width on disk even though dereferencing it is out of scope.
func (t ColumnType) Size() int {
	switch t {
	case Boolean, Byte:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Long, Double, Date, Timestamp:
		return 8
	case Symbol:
		return 4
	default:
		return 0 // String, Binary
	}
}

// IsVarLen reports whether the column has a companion .i index file.
func (t ColumnType) IsVarLen() bool {
	return t == String || t == Binary
}

func (t ColumnType) String() string {
	names := [...]string{"BOOLEAN", "BYTE", "SHORT", "INT", "FLOAT", "LONG", "DOUBLE", "DATE", "TIMESTAMP", "SYMBOL", "STRING", "BINARY"}
	if int(t) < 0 || int(t) >= len(names) {
		return "UNKNOWN"
	}
	return names[t]
}

// Column describes one column of the table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is the immutable, parsed contents of a table's _meta file.
type Table struct {
	Columns             []Column
	Partitioning        calendar.Scheme
	TimestampColumnIndex int // -1 if the table has no designated timestamp
	nameIndex           map[string]int
}

// CorruptMetadata is returned when _meta fails its checksum or declares an
// out-of-range column count.
type CorruptMetadata struct {
	Path   string
	Reason string
}

func (e *CorruptMetadata) Error() string {
	return fmt.Sprintf("meta: corrupt metadata %s: %s", e.Path, e.Reason)
}

const maxColumnCount = 1 << 16

var checksumKey = []byte("tsreader-meta-checksum-key-32byt")

// Load reads and validates the metadata file at path.
func Load(ctx context.Context, fs vfs.FS, path string) (*Table, error) {
	f, err := fs.OpenRead(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := readAll(f)
	if err != nil {
		return nil, fmt.Errorf("meta: read %s: %w", path, err)
	}
	if len(raw) < 8 {
		return nil, &CorruptMetadata{Path: path, Reason: "file shorter than checksum trailer"}
	}
	body, trailer := raw[:len(raw)-8], raw[len(raw)-8:]
	want := binary.LittleEndian.Uint64(trailer)
	got, err := checksum(body)
	if err != nil {
		return nil, fmt.Errorf("meta: checksum %s: %w", path, err)
	}
	if got != want {
		return nil, &CorruptMetadata{Path: path, Reason: "checksum mismatch"}
	}

	readers := bintly.NewReaders()
	reader := readers.Get()
	defer readers.Put(reader)
	if err := reader.FromBytes(body); err != nil {
		return nil, &CorruptMetadata{Path: path, Reason: err.Error()}
	}

	t := &Table{}
	if err := t.DecodeBinary(reader); err != nil {
		return nil, &CorruptMetadata{Path: path, Reason: err.Error()}
	}
	if len(t.Columns) == 0 || len(t.Columns) > maxColumnCount {
		return nil, &CorruptMetadata{Path: path, Reason: fmt.Sprintf("column count %d out of range", len(t.Columns))}
	}
	t.buildIndex()
	return t, nil
}

func readAll(f vfs.File) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	var off int64
	for {
		n, err := f.ReadAt(buf, off)
		if n > 0 {
			out = append(out, buf[:n]...)
			off += int64(n)
		}
		if n == 0 || err != nil {
			return out, nil
		}
	}
}

// EncodeBinary writes the metadata body (without the checksum trailer),
// mirroring vectordb.Document.EncodeBinary's shape: an explicit count
// followed by that many (name, type) pairs.
func (t *Table) EncodeBinary(stream *bintly.Writer) error {
	stream.Int(len(t.Columns))
	for _, c := range t.Columns {
		stream.String(c.Name)
		stream.Int(int(c.Type))
	}
	stream.Int(int(t.Partitioning))
	stream.Int(t.TimestampColumnIndex)
	return nil
}

// DecodeBinary is EncodeBinary's inverse.
func (t *Table) DecodeBinary(stream *bintly.Reader) error {
	var n int
	stream.Int(&n)
	if n < 0 || n > maxColumnCount {
		return fmt.Errorf("meta: column count %d out of range", n)
	}
	t.Columns = make([]Column, n)
	for i := 0; i < n; i++ {
		var name string
		var typ int
		stream.String(&name)
		stream.Int(&typ)
		t.Columns[i] = Column{Name: name, Type: ColumnType(typ)}
	}
	var scheme, tsIdx int
	stream.Int(&scheme)
	stream.Int(&tsIdx)
	t.Partitioning = calendar.Scheme(scheme)
	t.TimestampColumnIndex = tsIdx
	return nil
}

// Encode serializes the metadata to the on-disk byte layout Load expects,
// body + HighwayHash-64 trailer. Used by test fixtures and by any writer
// wanting to produce a table this reader can open.
func (t *Table) Encode() ([]byte, error) {
	writers := bintly.NewWriters()
	w := writers.Get()
	defer writers.Put(w)
	if err := t.EncodeBinary(w); err != nil {
		return nil, err
	}
	body := w.Bytes()
	sum, err := checksum(body)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(body)+8)
	copy(out, body)
	binary.LittleEndian.PutUint64(out[len(body):], sum)
	return out, nil
}

// checksum computes the HighwayHash-64 of data the same way
// indexer/cache.Hash does: New64(key), Write, Sum64.
func checksum(data []byte) (uint64, error) {
	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		return 0, err
	}
	if _, err := h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func (t *Table) buildIndex() {
	t.nameIndex = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.nameIndex[lower(c.Name)] = i
	}
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.Columns) }

// ColumnName returns the name of column i.
func (t *Table) ColumnName(i int) string { return t.Columns[i].Name }

// ColumnType returns the type of column i.
func (t *Table) ColumnType(i int) ColumnType { return t.Columns[i].Type }

// ColumnIndex performs a case-insensitive lookup, returning -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	if t.nameIndex == nil {
		t.buildIndex()
	}
	if i, ok := t.nameIndex[lower(name)]; ok {
		return i
	}
	return -1
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

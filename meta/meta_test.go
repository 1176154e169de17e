package meta

import (
	"context"
	"testing"

	"github.com/colstore/tsreader/calendar"
	"github.com/colstore/tsreader/vfs"
)

func sampleTable() *Table {
	return &Table{
		Columns: []Column{
			{Name: "ts", Type: Timestamp},
			{Name: "price", Type: Double},
			{Name: "symbol", Type: Symbol},
			{Name: "note", Type: String},
		},
		Partitioning:         calendar.Day,
		TimestampColumnIndex: 0,
	}
}

func TestTable_EncodeLoadRoundTrip(t *testing.T) {
	table := sampleTable()
	raw, err := table.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	m := vfs.NewMem()
	m.PutFile("/t/_meta", raw)

	loaded, err := Load(context.Background(), m, "/t/_meta")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ColumnCount() != 4 {
		t.Fatalf("ColumnCount = %d, want 4", loaded.ColumnCount())
	}
	if loaded.ColumnName(1) != "price" || loaded.ColumnType(1) != Double {
		t.Fatalf("column 1 = %s %s, want price DOUBLE", loaded.ColumnName(1), loaded.ColumnType(1))
	}
	if loaded.Partitioning != calendar.Day {
		t.Fatalf("Partitioning = %v, want Day", loaded.Partitioning)
	}
	if loaded.TimestampColumnIndex != 0 {
		t.Fatalf("TimestampColumnIndex = %d, want 0", loaded.TimestampColumnIndex)
	}
	if got := loaded.ColumnIndex("PRICE"); got != 1 {
		t.Fatalf("case-insensitive ColumnIndex(PRICE) = %d, want 1", got)
	}
	if got := loaded.ColumnIndex("missing"); got != -1 {
		t.Fatalf("ColumnIndex(missing) = %d, want -1", got)
	}
}

func TestLoad_RejectsCorruptChecksum(t *testing.T) {
	table := sampleTable()
	raw, err := table.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[0] ^= 0xFF // flip a body byte without touching the trailer

	m := vfs.NewMem()
	m.PutFile("/t/_meta", raw)

	_, err = Load(context.Background(), m, "/t/_meta")
	if err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
	var corrupt *CorruptMetadata
	if !asCorruptMetadata(err, &corrupt) {
		t.Fatalf("expected *CorruptMetadata, got %T: %v", err, err)
	}
}

func asCorruptMetadata(err error, target **CorruptMetadata) bool {
	if cm, ok := err.(*CorruptMetadata); ok {
		*target = cm
		return true
	}
	return false
}

func TestLoad_RejectsTruncatedFile(t *testing.T) {
	m := vfs.NewMem()
	m.PutFile("/t/_meta", []byte{1, 2, 3})

	if _, err := Load(context.Background(), m, "/t/_meta"); err == nil {
		t.Fatalf("expected error loading a file shorter than the checksum trailer")
	}
}

func TestColumnType_SizeAndVarLen(t *testing.T) {
	cases := []struct {
		typ      ColumnType
		size     int
		isVarLen bool
	}{
		{Boolean, 1, false},
		{Int, 4, false},
		{Double, 8, false},
		{String, 0, true},
		{Binary, 0, true},
	}
	for _, c := range cases {
		if got := c.typ.Size(); got != c.size {
			t.Fatalf("%s.Size() = %d, want %d", c.typ, got, c.size)
		}
		if got := c.typ.IsVarLen(); got != c.isVarLen {
			t.Fatalf("%s.IsVarLen() = %v, want %v", c.typ, got, c.isVarLen)
		}
	}
}

package vfs

import (
	"context"
	"testing"
)

func TestMem_ExistsAndOpenRead(t *testing.T) {
	m := NewMem()
	m.PutFile("/t/_meta", []byte("hello"))

	ctx := context.Background()
	if !m.Exists(ctx, "/t/_meta") {
		t.Fatalf("expected /t/_meta to exist")
	}
	if m.Exists(ctx, "/t/_missing") {
		t.Fatalf("did not expect /t/_missing to exist")
	}

	f, err := m.OpenRead(ctx, "/t/_meta")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 0)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("readat: n=%d err=%v buf=%q", n, err, buf)
	}
}

func TestMem_OpenReadMissing(t *testing.T) {
	m := NewMem()
	if _, err := m.OpenRead(context.Background(), "/nope"); err == nil {
		t.Fatalf("expected error opening missing file")
	}
}

func TestMem_ReadDir(t *testing.T) {
	m := NewMem()
	m.PutFile("/t/2024-01-01/price.d", []byte{1})
	m.PutFile("/t/2024-01-02/price.d", []byte{2})
	m.PutFile("/t/_meta", []byte{3})

	entries, err := m.ReadDir(context.Background(), "/t")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	kinds := map[string]Kind{}
	for _, e := range entries {
		names = append(names, e.Name)
		kinds[e.Name] = e.Kind
	}
	want := []string{"2024-01-01", "2024-01-02", "_meta"}
	if len(names) != len(want) {
		t.Fatalf("got names %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
	if kinds["2024-01-01"] != KindDir {
		t.Fatalf("expected 2024-01-01 to be a directory")
	}
	if kinds["_meta"] != KindFile {
		t.Fatalf("expected _meta to be a file")
	}
}

func TestMem_ReadDirMissing(t *testing.T) {
	m := NewMem()
	entries, err := m.ReadDir(context.Background(), "/nope")
	if err != nil {
		t.Fatalf("readdir missing: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries, got %v", entries)
	}
}

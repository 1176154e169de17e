//go:build windows

package mmregion

import "fmt"

// mmap is disabled on Windows; Region.remap falls back to buffered reads,
// mirroring vectordb/storage/mmapstore/mmap_windows.go.
func mmapWindow(fd uintptr, length int64) ([]byte, error) {
	return nil, fmt.Errorf("mmregion: mmap unsupported on windows")
}

func munmapWindow(data []byte) error { return nil }

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package mmregion

import "golang.org/x/sys/unix"

// mmapWindow maps length bytes of fd read-only, the same call shape
// vectordb/storage/mmapstore/mmap_unix.go uses for its segment files.
func mmapWindow(fd uintptr, length int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	return unix.Mmap(int(fd), 0, int(length), unix.PROT_READ, unix.MAP_SHARED)
}

func munmapWindow(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

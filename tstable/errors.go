package tstable

import "fmt"

// PendingRecovery is returned by Open when the table root carries a _todo
// marker: an earlier writer session did not finish and left the table in a
// state this reader will not guess how to interpret. Recovery itself is a
// writer concern and out of scope here (spec Non-goals exclude writing); the
// reader's job is only to refuse rather than return partial/torn data.
type PendingRecovery struct {
	Root string
}

func (e *PendingRecovery) Error() string {
	return fmt.Sprintf("tstable: %s has a pending _todo marker, needs writer-side recovery before reading", e.Root)
}

// MissingFile is returned when a file the reader's contract requires is
// absent, as distinct from an I/O error encountered while reading one that
// was found.
type MissingFile struct {
	Path string
}

func (e *MissingFile) Error() string {
	return fmt.Sprintf("tstable: required file missing: %s", e.Path)
}

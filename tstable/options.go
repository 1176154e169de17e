package tstable

import (
	"log"

	"github.com/colstore/tsreader/calendar"
)

// Options are the reader-tuning knobs a deployment can set without
// recompiling, loaded from YAML by package config and passed to
// OpenWithOptions. The zero value is a fully usable Reader.
type Options struct {
	// PageSize overrides the OS page size used to round mmap windows.
	// Zero means "ask the filesystem".
	PageSize int
	// MaxRetries bounds the transaction seqlock's torn-read retry loop.
	// Zero means unbounded, matching a real writer that always finishes
	// its commit handshake quickly.
	MaxRetries int
	// Calendar overrides the partitioning scheme recorded in the table's
	// own metadata. Meant for tests that need to open a fixture under a
	// scheme other than the one baked into its _meta file; production
	// callers should leave this nil and let the table describe itself.
	Calendar *calendar.Scheme
	// Logger receives construction/reload/partition-open events. Nil
	// defaults to log.Default(); logging never happens on the per-row
	// accessor path.
	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

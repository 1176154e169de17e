package tstable

import "math"

// Null sentinels returned by typed accessors when a row predates a column's
// top (invariant 4) or the stored value is itself the designated null
// marker. Fixed-width types have no out-of-band null bit on disk; the value
// space is narrowed by one slot instead, the same convention the source
// reader's column types use.
const (
	NullInt       = math.MinInt32
	NullLong      = math.MinInt64
	NullShort     = math.MinInt16
	NullDate      = math.MinInt64
	NullTimestamp = math.MinInt64
	NullSymbol    = -1
)

var (
	NullFloat  = float32(math.NaN())
	NullDouble = math.NaN()
)

// Package calendar implements the pure calendar arithmetic C3 needs to
// floor a timestamp to a partition boundary, advance it by N units, count
// whole units between two timestamps, and format/parse a partition
// directory name. No repository in the retrieved pack imports a
// date-arithmetic library — every direct use of time in the corpus goes
// through the standard time package — so this is built on time.Time,
// converting at the boundary since table timestamps are microsecond epochs.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Scheme is the partitioning granularity of a table, bound once at reader
// construction and dispatched through method calls rather than per-row
// branches.
type Scheme int

const (
	None Scheme = iota
	Year
	Month
	Day
)

// DefaultPartitionName is the sole partition directory for a non-partitioned table.
const DefaultPartitionName = "default"

// NumericParseError reports a partition directory name that does not match
// the scheme's format. Per the reader's contract it is always swallowed
// while scanning a table root (unparseable entries are assumed to be
// unrelated filesystem artifacts), but the type exists so callers can tell
// it apart from a genuine I/O failure.
type NumericParseError struct {
	Name   string
	Scheme Scheme
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("calendar: %q does not match %s partition format", e.Name, e.Scheme)
}

func (s Scheme) String() string {
	switch s {
	case Year:
		return "YEAR"
	case Month:
		return "MONTH"
	case Day:
		return "DAY"
	default:
		return "NONE"
	}
}

// ParseScheme accepts a partitioning scheme's name, case-insensitively, for
// config files that name it as a string rather than carrying the table's own
// _meta. An empty string is None.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToUpper(name) {
	case "", "NONE":
		return None, nil
	case "YEAR":
		return Year, nil
	case "MONTH":
		return Month, nil
	case "DAY":
		return Day, nil
	default:
		return None, fmt.Errorf("calendar: unknown partitioning scheme %q", name)
	}
}

// microsToTime / timeToMicros convert at the boundary; the table's wire
// format is microsecond epoch, everything internal to this package is
// time.Time so AddDate/Date do the calendar-aware heavy lifting.
func microsToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func timeToMicros(t time.Time) int64 {
	return t.UnixMicro()
}

// Floor returns the greatest instant <= t aligned to the scheme's boundary.
// It is a caller error to floor a non-partitioned scheme (there is no
// boundary to align to); the source reader this was modeled on throws for
// exactly this case ("Cannot get partition floor for non-partitioned table").
func (s Scheme) Floor(us int64) (int64, error) {
	if s == None {
		return 0, fmt.Errorf("calendar: cannot floor a non-partitioned table")
	}
	t := microsToTime(us)
	var floored time.Time
	switch s {
	case Year:
		floored = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case Month:
		floored = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Day:
		floored = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return timeToMicros(floored), nil
}

// Add advances base by n units of the scheme (n may be negative). It is
// meaningful only for partitioned schemes; called with None it returns base
// unchanged.
func (s Scheme) Add(base int64, n int) int64 {
	if s == None {
		return base
	}
	t := microsToTime(base)
	switch s {
	case Year:
		return timeToMicros(t.AddDate(n, 0, 0))
	case Month:
		return timeToMicros(t.AddDate(0, n, 0))
	case Day:
		return timeToMicros(t.AddDate(0, 0, n))
	}
	return base
}

// Between counts complete scheme-units from floor(a) to floor(b). The
// caller guarantees a <= b. For a non-partitioned scheme it is always 0
// (partition count is fixed at 1).
func (s Scheme) Between(a, b int64) int64 {
	if s == None {
		return 0
	}
	ta, tb := microsToTime(a), microsToTime(b)
	switch s {
	case Year:
		return int64(tb.Year() - ta.Year())
	case Month:
		return int64((tb.Year()-ta.Year())*12 + int(tb.Month()) - int(ta.Month()))
	case Day:
		return daysBetween(ta, tb)
	}
	return 0
}

func dayFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int64 {
	return int64(dayFloor(b).Sub(dayFloor(a)).Hours() / 24)
}

const (
	yearLayout  = "2006"
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// Format renders the partition-start instant as a directory name.
func (s Scheme) Format(us int64) string {
	if s == None {
		return DefaultPartitionName
	}
	t := microsToTime(us)
	switch s {
	case Year:
		return t.Format(yearLayout)
	case Month:
		return t.Format(monthLayout)
	case Day:
		return t.Format(dayLayout)
	}
	return DefaultPartitionName
}

// Parse recovers the partition-start instant from a directory name. A
// name that doesn't match the scheme's layout yields *NumericParseError,
// which callers scanning a directory tree are expected to swallow.
func (s Scheme) Parse(name string) (int64, error) {
	if s == None {
		if name == DefaultPartitionName {
			return 0, nil
		}
		return 0, &NumericParseError{Name: name, Scheme: s}
	}
	layout := map[Scheme]string{Year: yearLayout, Month: monthLayout, Day: dayLayout}[s]
	t, err := time.ParseInLocation(layout, name, time.UTC)
	if err != nil {
		return 0, &NumericParseError{Name: name, Scheme: s}
	}
	return timeToMicros(t), nil
}

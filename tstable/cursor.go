package tstable

import "context"

// Cursor walks a table's rows in partition order, oldest partition first,
// matching the source reader's forward RecordCursor. It holds no data of
// its own beyond the current position; Next and RecordAt return a flyweight
// Record addressing the row under the cursor.
type Cursor struct {
	reader *Reader
	p      int
	local  int
	size   int64 // cached size of partition p, -1 before first positioning
	atEnd  bool
}

// ToTop resets the cursor to before the first row of the first partition.
func (c *Cursor) ToTop() {
	c.p = 0
	c.local = -1
	c.size = -1
	c.atEnd = c.reader.PartitionCount() == 0
}

// HasNext reports whether a call to Next would succeed.
func (c *Cursor) HasNext(ctx context.Context) (bool, error) {
	if c.atEnd {
		return false, nil
	}
	if c.size < 0 {
		sz, err := c.reader.PartitionSize(ctx, c.p)
		if err != nil {
			return false, err
		}
		c.size = sz
	}
	if int64(c.local+1) < c.size {
		return true, nil
	}
	// advance to the next non-empty partition
	for p := c.p + 1; p < c.reader.PartitionCount(); p++ {
		sz, err := c.reader.PartitionSize(ctx, p)
		if err != nil {
			return false, err
		}
		if sz > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Next advances the cursor and returns the record now under it. Calling
// Next past the last row returns (nil, nil); callers should check HasNext
// first or treat a nil Record as end-of-table.
func (c *Cursor) Next(ctx context.Context) (*Record, error) {
	if c.atEnd {
		return nil, nil
	}
	if c.size < 0 {
		sz, err := c.reader.PartitionSize(ctx, c.p)
		if err != nil {
			return nil, err
		}
		c.size = sz
	}
	for int64(c.local+1) >= c.size {
		c.p++
		c.local = -1
		c.size = -1
		if c.p >= c.reader.PartitionCount() {
			c.atEnd = true
			return nil, nil
		}
		sz, err := c.reader.PartitionSize(ctx, c.p)
		if err != nil {
			return nil, err
		}
		c.size = sz
	}
	c.local++
	return &Record{reader: c.reader, p: c.p, local: c.local}, nil
}

// RecordAt seeks directly to rowID without scanning intervening rows.
func (c *Cursor) RecordAt(rowID int64) *Record {
	p, local := UnpackRowID(rowID)
	c.p, c.local, c.size, c.atEnd = p, local, -1, false
	return &Record{reader: c.reader, p: p, local: local}
}

package tstable

import (
	"context"
	"fmt"

	"github.com/colstore/tsreader/meta"
	"github.com/colstore/tsreader/mmregion"
)

// partitionColumn pairs a mapped region with the column's top within the
// partition it belongs to, so every accessor applies invariant 4
// (rows before top read as null) the same way.
type partitionColumn struct {
	region *mmregion.Region
	top    int64
}

// offset returns the byte offset of local within this column's data file
// and true, or (0, false) if local predates the column's top.
func (c *partitionColumn) offset(local int, size int) (int64, bool) {
	if c.region == nil || int64(local) < c.top {
		return 0, false
	}
	return (int64(local) - c.top) * int64(size), true
}

// Record is a flyweight addressing one row of one partition. It holds no
// column data itself; every accessor dereferences the reader's mapped
// regions at call time, so a Record is cheap to create and reuse but
// invalid the instant the reader it came from is reloaded or closed.
type Record struct {
	reader *Reader
	p      int
	local  int
}

// RowID returns the packed id this record was created from.
func (r *Record) RowID() int64 { return PackRowID(r.p, r.local) }

func (r *Record) checkType(col int, want meta.ColumnType) error {
	got := r.reader.Meta.ColumnType(col)
	if got != want {
		return fmt.Errorf("tstable: column %s is %s, not %s", r.reader.Meta.ColumnName(col), got, want)
	}
	return nil
}

func (r *Record) fixedWidth(ctx context.Context, col int, want meta.ColumnType) (data *partitionColumn, off int64, ok bool, err error) {
	if err := r.checkType(col, want); err != nil {
		return nil, 0, false, err
	}
	data, _, err = r.reader.columnRegions(ctx, r.p, col)
	if err != nil {
		return nil, 0, false, err
	}
	off, ok = data.offset(r.local, want.Size())
	return data, off, ok, nil
}

func (r *Record) GetBool(ctx context.Context, col int) (bool, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Boolean)
	if err != nil || !ok {
		return false, err
	}
	return data.region.GetBool(off), nil
}

func (r *Record) GetByte(ctx context.Context, col int) (byte, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Byte)
	if err != nil || !ok {
		return 0, err
	}
	return data.region.GetByte(off), nil
}

func (r *Record) GetShort(ctx context.Context, col int) (int16, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Short)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullShort, nil
	}
	return data.region.GetShort(off), nil
}

func (r *Record) GetInt(ctx context.Context, col int) (int32, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Int)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullInt, nil
	}
	return data.region.GetInt(off), nil
}

func (r *Record) GetLong(ctx context.Context, col int) (int64, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Long)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullLong, nil
	}
	return data.region.GetLong(off), nil
}

func (r *Record) GetFloat(ctx context.Context, col int) (float32, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Float)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullFloat, nil
	}
	return data.region.GetFloat(off), nil
}

func (r *Record) GetDouble(ctx context.Context, col int) (float64, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Double)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullDouble, nil
	}
	return data.region.GetDouble(off), nil
}

func (r *Record) GetDate(ctx context.Context, col int) (int64, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Date)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullDate, nil
	}
	return data.region.GetLong(off), nil
}

func (r *Record) GetTimestamp(ctx context.Context, col int) (int64, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Timestamp)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullTimestamp, nil
	}
	return data.region.GetLong(off), nil
}

// GetSymbol returns the column's raw dictionary id. Resolving the id to its
// string value would require reading the symbol table (.o/.v files in the
// source design), which is out of scope here; callers that need the string
// must carry their own dictionary.
func (r *Record) GetSymbol(ctx context.Context, col int) (int32, error) {
	data, off, ok, err := r.fixedWidth(ctx, col, meta.Symbol)
	if err != nil {
		return 0, err
	}
	if !ok {
		return NullSymbol, nil
	}
	return data.region.GetInt(off), nil
}

func (r *Record) varLen(ctx context.Context, col int, want meta.ColumnType) (data *mmregion.Region, dataOffset int64, ok bool, err error) {
	if err := r.checkType(col, want); err != nil {
		return nil, 0, false, err
	}
	d, i, err := r.reader.columnRegions(ctx, r.p, col)
	if err != nil {
		return nil, 0, false, err
	}
	idxOff, ok := i.offset(r.local, 8)
	if !ok {
		return nil, 0, false, nil
	}
	return d.region, i.region.GetLong(idxOff), true, nil
}

func (r *Record) GetStr(ctx context.Context, col int) (string, error) {
	region, off, ok, err := r.varLen(ctx, col, meta.String)
	if err != nil || !ok {
		return "", err
	}
	return region.GetStr(off).String(), nil
}

func (r *Record) GetBin(ctx context.Context, col int) ([]byte, error) {
	region, off, ok, err := r.varLen(ctx, col, meta.Binary)
	if err != nil || !ok {
		return nil, err
	}
	return region.GetBin(off).Bytes(), nil
}

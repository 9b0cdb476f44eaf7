package livestatus

import (
	"strconv"
	"time"
)

// Row is one object of a table: a host, a service, a log entry, ... Columns
// know how to read the concrete type behind it.
type Row interface{}

// ColumnType is the value type of a column.
type ColumnType int

const (
	ColumnInt ColumnType = iota
	ColumnDouble
	ColumnString
	ColumnTime
	ColumnList
	ColumnDict
	ColumnBlob
	ColumnNull
)

var columnTypeNames = [...]string{"int", "float", "string", "time", "list", "dict", "blob", "null"}

func (t ColumnType) String() string { return columnTypeNames[t] }

// Offsets navigates from a table row to the object a column reads, e.g. from
// a service to its host. A hop returning nil short-circuits the chain and the
// column yields its default value.
type Offsets struct {
	hops []func(Row) Row
}

// Add returns o extended by hop. o is left unchanged.
func (o Offsets) Add(hop func(Row) Row) Offsets {
	hops := make([]func(Row) Row, len(o.hops), len(o.hops)+1)
	copy(hops, o.hops)
	return Offsets{hops: append(hops, hop)}
}

// Apply follows every hop starting at r.
func (o Offsets) Apply(r Row) Row {
	for _, hop := range o.hops {
		if r == nil {
			return nil
		}
		r = hop(r)
	}
	return r
}

// Hop adapts a typed navigation function to Offsets.
func Hop[T, U any](f func(*T) *U) func(Row) Row {
	return func(r Row) Row {
		t, ok := r.(*T)
		if !ok || t == nil {
			return nil
		}
		if u := f(t); u != nil {
			return u
		}
		return nil
	}
}

// Column reads one typed attribute of a row.
type Column struct {
	name        string
	description string
	kind        ColumnType
	offsets     Offsets

	intFn    func(Row) int64
	doubleFn func(Row) float64
	stringFn func(Row) string
	timeFn   func(Row) time.Time
	listFn   func(Row) []string
	idsFn    func(Row) []int64
	dictFn   func(Row) map[string]string
	blobFn   func(Row) []byte
}

func (c *Column) Name() string        { return c.name }
func (c *Column) Description() string { return c.description }
func (c *Column) Type() ColumnType    { return c.kind }

// target asserts the concrete row type and rejects typed nils.
func target[T any](r Row) (*T, bool) {
	t, ok := r.(*T)
	return t, ok && t != nil
}

func IntColumn[T any](name, desc string, off Offsets, fn func(*T) int64) *Column {
	return &Column{name: name, description: desc, kind: ColumnInt, offsets: off,
		intFn: func(r Row) int64 {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return 0
		}}
}

// BoolColumn is an int column holding 0 or 1.
func BoolColumn[T any](name, desc string, off Offsets, fn func(*T) bool) *Column {
	return IntColumn(name, desc, off, func(t *T) int64 { return boolToInt(fn(t)) })
}

func DoubleColumn[T any](name, desc string, off Offsets, fn func(*T) float64) *Column {
	return &Column{name: name, description: desc, kind: ColumnDouble, offsets: off,
		doubleFn: func(r Row) float64 {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return 0
		}}
}

func StringColumn[T any](name, desc string, off Offsets, fn func(*T) string) *Column {
	return &Column{name: name, description: desc, kind: ColumnString, offsets: off,
		stringFn: func(r Row) string {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return ""
		}}
}

func TimeColumn[T any](name, desc string, off Offsets, fn func(*T) time.Time) *Column {
	return &Column{name: name, description: desc, kind: ColumnTime, offsets: off,
		timeFn: func(r Row) time.Time {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return time.Time{}
		}}
}

func ListColumn[T any](name, desc string, off Offsets, fn func(*T) []string) *Column {
	return &Column{name: name, description: desc, kind: ColumnList, offsets: off,
		listFn: func(r Row) []string {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return nil
		}}
}

// IntListColumn is a list column of numbers. Filters see the decimal
// strings, renderers the numbers.
func IntListColumn[T any](name, desc string, off Offsets, fn func(*T) []int64) *Column {
	return &Column{name: name, description: desc, kind: ColumnList, offsets: off,
		idsFn: func(r Row) []int64 {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return nil
		}}
}

func DictColumn[T any](name, desc string, off Offsets, fn func(*T) map[string]string) *Column {
	return &Column{name: name, description: desc, kind: ColumnDict, offsets: off,
		dictFn: func(r Row) map[string]string {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return nil
		}}
}

func BlobColumn[T any](name, desc string, off Offsets, fn func(*T) []byte) *Column {
	return &Column{name: name, description: desc, kind: ColumnBlob, offsets: off,
		blobFn: func(r Row) []byte {
			if t, ok := target[T](r); ok {
				return fn(t)
			}
			return nil
		}}
}

// nullColumn stands in for a column name the table does not know.
func nullColumn(name string) *Column {
	return &Column{name: name, description: "non-existing column", kind: ColumnNull}
}

func (c *Column) IntValue(r Row) int64 {
	if c.intFn == nil {
		return 0
	}
	return c.intFn(c.offsets.Apply(r))
}

func (c *Column) DoubleValue(r Row) float64 {
	if c.doubleFn == nil {
		return 0
	}
	return c.doubleFn(c.offsets.Apply(r))
}

func (c *Column) StringValue(r Row) string {
	if c.stringFn == nil {
		return ""
	}
	return c.stringFn(c.offsets.Apply(r))
}

func (c *Column) TimeValue(r Row) time.Time {
	if c.timeFn == nil {
		return time.Time{}
	}
	return c.timeFn(c.offsets.Apply(r))
}

func (c *Column) ListValue(r Row) []string {
	switch {
	case c.listFn != nil:
		return c.listFn(c.offsets.Apply(r))
	case c.idsFn != nil:
		ids := c.idsFn(c.offsets.Apply(r))
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = strconv.FormatInt(id, 10)
		}
		return out
	}
	return nil
}

func (c *Column) DictValue(r Row) map[string]string {
	if c.dictFn == nil {
		return nil
	}
	return c.dictFn(c.offsets.Apply(r))
}

func (c *Column) BlobValue(r Row) []byte {
	if c.blobFn == nil {
		return nil
	}
	return c.blobFn(c.offsets.Apply(r))
}

// unixTime is the value time columns are compared and rendered with. The
// zero time is 0 regardless of the timezone offset.
func unixTime(t time.Time, tz time.Duration) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix() + int64(tz/time.Second)
}

// Value returns the cell for rendering: int64, float64, string, []string,
// []int64, map[string]string, []byte or nil. Times are unix seconds shifted by tz.
func (c *Column) Value(r Row, tz time.Duration) interface{} {
	switch c.kind {
	case ColumnInt:
		return c.IntValue(r)
	case ColumnDouble:
		return c.DoubleValue(r)
	case ColumnString:
		return c.StringValue(r)
	case ColumnTime:
		return unixTime(c.TimeValue(r), tz)
	case ColumnList:
		if c.idsFn != nil {
			return c.idsFn(c.offsets.Apply(r))
		}
		return c.ListValue(r)
	case ColumnDict:
		return c.DictValue(r)
	case ColumnBlob:
		return c.BlobValue(r)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

package livestatus

import (
	"fmt"
	"strings"

	"github.com/oceanplexian/livestatus/internal/api"
)

// Table is a named row source with its columns.
type Table struct {
	name    string
	prefix  string // optional column name prefix, "host_" for hosts
	columns []*Column
	byName  map[string]*Column

	// rows enumerates the rows of q until fn returns false.
	rows func(q *Query, fn func(Row) bool)
	// authorized filters rows by user, nil means every row is visible.
	authorized func(r Row, user api.User) bool
	// get resolves a WaitObject header value, nil if unsupported.
	get func(key string) Row
	// defaultRow is the wait object used without WaitObject header.
	defaultRow func() Row
}

func newTable(name, prefix string) *Table {
	return &Table{name: name, prefix: prefix, byName: make(map[string]*Column)}
}

func (t *Table) Name() string       { return t.name }
func (t *Table) Columns() []*Column { return t.columns }

// Add registers columns in output order. Names must be unique.
func (t *Table) Add(cols ...*Column) {
	for _, c := range cols {
		if _, dup := t.byName[c.Name()]; dup {
			panic(fmt.Sprintf("duplicate column %s in table %s", c.Name(), t.name))
		}
		t.byName[c.Name()] = c
		t.columns = append(t.columns, c)
	}
}

// Column looks name up, also without the table's prefix.
func (t *Table) Column(name string) *Column {
	if c, ok := t.byName[name]; ok {
		return c
	}
	if t.prefix != "" && strings.HasPrefix(name, t.prefix) {
		return t.byName[strings.TrimPrefix(name, t.prefix)]
	}
	return nil
}

func (t *Table) isAuthorized(r Row, user api.User) bool {
	return t.authorized == nil || t.authorized(r, user)
}

func (t *Table) findObject(key string) Row {
	if t.get == nil {
		return nil
	}
	return t.get(key)
}

func (t *Table) defaultObject() Row {
	if t.defaultRow == nil {
		return nil
	}
	return t.defaultRow()
}

// eachRow adapts a typed slice to the rows callback.
func eachRow[T any](items []*T, fn func(Row) bool) {
	for _, it := range items {
		if !fn(it) {
			return
		}
	}
}

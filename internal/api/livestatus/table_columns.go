package livestatus

// columnRow is one row of the columns table.
type columnRow struct {
	table  string
	column *Column
}

func columnsTable(tables func() []*Table) *Table {
	t := newTable("columns", "column_")
	off := Offsets{}
	t.Add(
		StringColumn("table", "The name of the table", off, func(c *columnRow) string { return c.table }),
		StringColumn("name", "The name of the column within the table", off, func(c *columnRow) string { return c.column.Name() }),
		StringColumn("description", "A description of the column", off, func(c *columnRow) string { return c.column.Description() }),
		StringColumn("type", "The data type of the column (int, float, string, list)", off, func(c *columnRow) string { return c.column.Type().String() }),
	)
	t.rows = func(_ *Query, fn func(Row) bool) {
		for _, tbl := range tables() {
			for _, c := range tbl.Columns() {
				if !fn(&columnRow{table: tbl.Name(), column: c}) {
					return
				}
			}
		}
	}
	return t
}

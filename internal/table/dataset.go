package table

import (
	"fmt"
	"sort"
)

// Dataset is an ordered set of equal-length columns with unique names.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New assembles a dataset, enforcing equal column lengths and unique names.
func New(columns ...*Column) (*Dataset, error) {
	d := &Dataset{
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, ok := d.index[c.Name()]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name())
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrShape, c.Name(), c.Len(), d.rows)
		}
		d.index[c.Name()] = len(d.columns)
		d.columns = append(d.columns, c)
	}
	return d, nil
}

// MustNew is like New but panics on an invalid shape. It is meant for
// column sets whose shape is fixed by construction.
func MustNew(columns ...*Column) *Dataset {
	d, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dataset) NumRows() int    { return d.rows }
func (d *Dataset) NumColumns() int { return len(d.columns) }

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name()
	}
	return names
}

// Columns returns the columns in order.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// Has reports whether a column with the given name exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the named column or a *SchemaError.
func (d *Dataset) Column(name string) (*Column, error) {
	return d.Resolve(name)
}

// Resolve returns the first column found among the candidate names, tried in
// the given order. It fails with a *SchemaError only if none is present.
func (d *Dataset) Resolve(candidates ...string) (*Column, error) {
	for _, name := range candidates {
		if i, ok := d.index[name]; ok {
			return d.columns[i], nil
		}
	}
	return nil, &SchemaError{Missing: append([]string(nil), candidates...), Available: d.ColumnNames()}
}

// Select returns a dataset holding only the named columns, in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Take returns the given rows, in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	cols := make([]*Column, len(d.columns))
	for i, c := range d.columns {
		cols[i] = c.take(rows)
	}
	return &Dataset{columns: cols, index: d.index, rows: len(rows)}
}

// Filter keeps the rows for which keep returns true, preserving order.
func (d *Dataset) Filter(keep func(r Row) bool) *Dataset {
	rows := make([]int, 0, d.rows)
	for i := 0; i < d.rows; i++ {
		if keep(Row{d: d, i: i}) {
			rows = append(rows, i)
		}
	}
	return d.Take(rows)
}

// SortBy stably sorts rows ascending by the given key columns. Missing values
// sort last within each key.
func (d *Dataset) SortBy(keys ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(keys))
	for _, k := range keys {
		c, err := d.Column(k)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	order := make([]int, d.rows)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := order[x], order[y]
		for _, c := range cols {
			if c.less(a, b) {
				return true
			}
			if c.less(b, a) {
				return false
			}
		}
		return false
	})
	return d.Take(order), nil
}

// Rename returns a dataset in which column from is called to.
func (d *Dataset) Rename(from, to string) (*Dataset, error) {
	i, ok := d.index[from]
	if !ok {
		return nil, &SchemaError{Missing: []string{from}, Available: d.ColumnNames()}
	}
	cols := d.Columns()
	cols[i] = cols[i].renamed(to)
	return New(cols...)
}

// WithColumn returns a dataset with c appended, or replacing the column of the
// same name.
func (d *Dataset) WithColumn(c *Column) (*Dataset, error) {
	cols := d.Columns()
	if i, ok := d.index[c.Name()]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return New(cols...)
}

// Partitions splits the row indices into runs of consecutive rows sharing the
// same value in key. Callers sort by key first to obtain one run per group.
func (d *Dataset) Partitions(key string) ([][]int, error) {
	c, err := d.Column(key)
	if err != nil {
		return nil, err
	}
	var parts [][]int
	for i := 0; i < d.rows; i++ {
		if i == 0 || !c.equalAt(i-1, i) {
			parts = append(parts, nil)
		}
		parts[len(parts)-1] = append(parts[len(parts)-1], i)
	}
	return parts, nil
}

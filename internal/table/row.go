package table

// Row is a read-only view of one dataset row, handed to Filter predicates.
type Row struct {
	d *Dataset
	i int
}

func (r Row) Index() int { return r.i }

// IsNull reports whether the named column is missing at this row. Absent
// columns count as missing.
func (r Row) IsNull(name string) bool {
	j, ok := r.d.index[name]
	return !ok || r.d.columns[j].IsNull(r.i)
}

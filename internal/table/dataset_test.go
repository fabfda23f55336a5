package table

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sample(t *testing.T) *Dataset {
	t.Helper()
	d, err := New(
		NewStringColumn("location", []string{"B", "A", "B", "A"}, nil),
		NewDateColumn("date", []time.Time{day("2021-01-02"), day("2021-01-02"), day("2021-01-01"), day("2021-01-01")}, nil),
		NewFloatColumn("new_cases", []float64{4, 3, math.NaN(), 1}),
	)
	require.NoError(t, err)
	return d
}

func TestNew(t *testing.T) {
	t.Run("rejects unequal lengths", func(t *testing.T) {
		_, err := New(
			NewStringColumn("a", []string{"x", "y"}, nil),
			NewFloatColumn("b", []float64{1}),
		)
		assert.ErrorIs(t, err, ErrShape)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := New(
			NewFloatColumn("a", []float64{1}),
			NewFloatColumn("a", []float64{2}),
		)
		assert.ErrorIs(t, err, ErrDuplicateColumn)
	})

	t.Run("empty dataset", func(t *testing.T) {
		d, err := New()
		require.NoError(t, err)
		assert.Equal(t, 0, d.NumRows())
		assert.Equal(t, 0, d.NumColumns())
	})
}

func TestResolve(t *testing.T) {
	d := sample(t)

	c, err := d.Resolve("country", "location")
	require.NoError(t, err)
	assert.Equal(t, "location", c.Name())

	_, err = d.Resolve("country", "region")
	require.Error(t, err)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"country", "region"}, se.Missing)
	assert.Equal(t, []string{"location", "date", "new_cases"}, se.Available)
	assert.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "available: location, date, new_cases")
}

func TestSortBy(t *testing.T) {
	d := sample(t)

	sorted, err := d.SortBy("location", "date")
	require.NoError(t, err)

	loc, _ := sorted.Column("location")
	dates, _ := sorted.Column("date")
	var got []string
	for i := 0; i < sorted.NumRows(); i++ {
		got = append(got, loc.Str(i)+" "+dates.Format(i))
	}
	assert.Equal(t, []string{"A 2021-01-01", "A 2021-01-02", "B 2021-01-01", "B 2021-01-02"}, got)

	// the receiver is untouched
	orig, _ := d.Column("location")
	assert.Equal(t, "B", orig.Str(0))

	_, err = d.SortBy("missing")
	assert.ErrorIs(t, err, ErrSchema)
}

func TestSortBy_NullsLast(t *testing.T) {
	d := sample(t)
	sorted, err := d.SortBy("new_cases")
	require.NoError(t, err)
	c, _ := sorted.Column("new_cases")
	assert.Equal(t, 1.0, c.Float(0))
	assert.True(t, c.IsNull(3))
}

func TestFilterSelectRename(t *testing.T) {
	d := sample(t)

	loc, err := d.Column("location")
	require.NoError(t, err)
	onlyA := d.Filter(func(r Row) bool { return loc.Str(r.Index()) == "A" })
	assert.Equal(t, 2, onlyA.NumRows())

	noNulls := d.Filter(func(r Row) bool { return !r.IsNull("new_cases") })
	assert.Equal(t, 3, noNulls.NumRows())

	sel, err := d.Select("new_cases", "location")
	require.NoError(t, err)
	assert.Equal(t, []string{"new_cases", "location"}, sel.ColumnNames())

	_, err = d.Select("location", "location")
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	renamed, err := d.Rename("location", "entity")
	require.NoError(t, err)
	assert.True(t, renamed.Has("entity"))
	assert.False(t, renamed.Has("location"))
	assert.True(t, d.Has("location"))

	_, err = d.Rename("location", "date")
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestWithColumn(t *testing.T) {
	d := sample(t)

	out, err := d.WithColumn(NewFloatColumn("new_cases", []float64{0, 0, 0, 0}))
	require.NoError(t, err)
	c, _ := out.Column("new_cases")
	assert.Equal(t, 0.0, c.Float(2))
	assert.Equal(t, 3, out.NumColumns())

	_, err = d.WithColumn(NewFloatColumn("x", []float64{1}))
	assert.ErrorIs(t, err, ErrShape)
}

func TestPartitions(t *testing.T) {
	d := sample(t)
	sorted, err := d.SortBy("location", "date")
	require.NoError(t, err)

	parts, err := sorted.Partitions("location")
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, parts)
}

func TestFilter_AbsentColumnIsNull(t *testing.T) {
	d := sample(t)
	kept := d.Filter(func(r Row) bool { return !r.IsNull("nope") })
	assert.Equal(t, 0, kept.NumRows())
	assert.Equal(t, d.ColumnNames(), kept.ColumnNames())
}

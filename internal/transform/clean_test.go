package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgrid/internal/table"
)

func TestCleanAndScope(t *testing.T) {
	rows := []rawRow{
		{"Peru", "2021-01-02", "5", "1", "100"},
		{"Ecuador", "2021-01-02T03:00:00Z", "3", "2", "50"},
		{"Ecuador", "2021-01-01", "1", "1", "50"},
		{"Ecuador", "2021-01-02", "99", "9", "50"}, // duplicate, first one wins
		{"Ecuador", "2021-01-03", "n/a", "1", "50"},
		{"Ecuador", "2021-01-04", "4", "", "50"},
		{"Ecuador", "not a date", "4", "1", "50"},
		{"Chile", "2021-01-01", "7", "1", "80"},
		{"Peru", "2021-01-01", "6", "1", ""},
	}
	clean, err := CleanAndScope(rawDataset(t, "location", rows), []string{"Ecuador", "Peru"})
	require.NoError(t, err)

	assert.Equal(t, []string{"entity", "date", "new_cases", "people_vaccinated", "population"}, clean.ColumnNames())
	assert.Equal(t, []string{"Ecuador", "Ecuador", "Peru", "Peru"}, texts(t, clean, "entity"))
	assert.Equal(t, []string{"2021-01-01", "2021-01-02", "2021-01-01", "2021-01-02"}, texts(t, clean, "date"))
	assert.Equal(t, []float64{1, 3, 6, 5}, floats(t, clean, "new_cases"))

	pop, _ := clean.Column("population")
	assert.True(t, pop.IsNull(2), "population may stay missing")
}

func TestCleanAndScope_Invariants(t *testing.T) {
	rows := append(dailySeries("A", []float64{1, 2, 3, 4}, 10), dailySeries("A", []float64{9, 9}, 10)...)
	rows = append(rows, dailySeries("B", []float64{1, 1}, 10)...)
	clean := cleanSeries(t, rows, "A", "B")

	require.Equal(t, 6, clean.NumRows())
	for _, name := range []string{"date", "new_cases", "people_vaccinated"} {
		c, err := clean.Column(name)
		require.NoError(t, err)
		assert.Zero(t, c.NullCount(), name)
	}
	entities, dates := texts(t, clean, "entity"), texts(t, clean, "date")
	seen := map[string]bool{}
	for i := range entities {
		key := entities[i] + "|" + dates[i]
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 1, 1}, floats(t, clean, "new_cases"))
}

func TestCleanAndScope_AbsentEntity(t *testing.T) {
	clean := cleanSeries(t, dailySeries("A", []float64{1, 2}, 10), "A", "Z")
	assert.Equal(t, []string{"A", "A"}, texts(t, clean, "entity"))

	none := cleanSeries(t, dailySeries("A", []float64{1, 2}, 10), "Z")
	assert.Equal(t, 0, none.NumRows())
	assert.Equal(t, 5, none.NumColumns())
}

func TestCleanAndScope_EntityAliases(t *testing.T) {
	for _, name := range []string{"location", "country", "entity"} {
		t.Run(name, func(t *testing.T) {
			clean, err := CleanAndScope(rawDataset(t, name, dailySeries("A", []float64{1}, 10)), []string{"A"})
			require.NoError(t, err)
			assert.Equal(t, 1, clean.NumRows())
		})
	}

	t.Run("none present", func(t *testing.T) {
		_, err := CleanAndScope(rawDataset(t, "region", dailySeries("A", []float64{1}, 10)), []string{"A"})
		var se *table.SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, EntityAliases, se.Missing)
	})
}

func TestCleanAndScope_MissingColumn(t *testing.T) {
	raw := rawDataset(t, "location", dailySeries("A", []float64{1}, 10))
	raw, err := raw.Select("location", "date", "new_cases", "population")
	require.NoError(t, err)

	_, err = CleanAndScope(raw, []string{"A"})
	assert.ErrorIs(t, err, table.ErrSchema)
	assert.Contains(t, err.Error(), `"people_vaccinated"`)
}

package transform

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/assetgrid/internal/table"
)

type rawRow struct {
	entity, date, newCases, vaccinated, population string
}

// rawDataset builds a dataset shaped like a freshly read CSV: every column is
// text and empty cells are missing.
func rawDataset(t *testing.T, entityCol string, rows []rawRow) *table.Dataset {
	t.Helper()
	col := func(name string, get func(r rawRow) string) *table.Column {
		values := make([]string, len(rows))
		nulls := make([]bool, len(rows))
		for i, r := range rows {
			values[i] = get(r)
			nulls[i] = values[i] == ""
		}
		return table.NewStringColumn(name, values, nulls)
	}
	d, err := table.New(
		col(entityCol, func(r rawRow) string { return r.entity }),
		col("date", func(r rawRow) string { return r.date }),
		col("new_cases", func(r rawRow) string { return r.newCases }),
		col("people_vaccinated", func(r rawRow) string { return r.vaccinated }),
		col("population", func(r rawRow) string { return r.population }),
	)
	require.NoError(t, err)
	return d
}

// dailySeries returns one row per day for entity starting at 2021-01-01.
func dailySeries(entity string, newCases []float64, population float64) []rawRow {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]rawRow, len(newCases))
	for i, n := range newCases {
		rows[i] = rawRow{
			entity:     entity,
			date:       start.AddDate(0, 0, i).Format(table.DateLayout),
			newCases:   fmt.Sprint(n),
			vaccinated: "0",
			population: fmt.Sprint(population),
		}
	}
	return rows
}

func cleanSeries(t *testing.T, rows []rawRow, entities ...string) *table.Dataset {
	t.Helper()
	clean, err := CleanAndScope(rawDataset(t, "location", rows), entities)
	require.NoError(t, err)
	return clean
}

func floats(t *testing.T, d *table.Dataset, name string) []float64 {
	t.Helper()
	c, err := d.Column(name)
	require.NoError(t, err)
	return c.Floats()
}

func texts(t *testing.T, d *table.Dataset, name string) []string {
	t.Helper()
	c, err := d.Column(name)
	require.NoError(t, err)
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Format(i)
	}
	return out
}

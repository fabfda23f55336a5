package transform

import (
	"math"
	"strconv"
	"time"

	"github.com/vk/assetgrid/internal/table"
)

// Profile summarizes the raw extract as a two-column {metric, value} table:
// row and column counts, the new_cases range, the share of missing new_cases
// and people_vaccinated values, and the observed date range. Values are
// rendered as text; undefined extrema are empty.
func Profile(raw *table.Dataset) (*table.Dataset, error) {
	dateCol, err := raw.Column(ColDate)
	if err != nil {
		return nil, err
	}
	newCasesCol, err := raw.Column(ColNewCases)
	if err != nil {
		return nil, err
	}
	vaccinatedCol, err := raw.Column(ColPeopleVaccinated)
	if err != nil {
		return nil, err
	}
	dates := table.ParseDates(dateCol)
	newCases := table.ToFloat(newCasesCol)
	vaccinated := table.ToFloat(vaccinatedCol)

	lo, hi := floatRange(newCases)
	first, last, ok := dateRange(dates)

	metrics := []string{
		"rows", "columns",
		"new_cases_min", "new_cases_max",
		"pct_null_new_cases", "pct_null_people_vaccinated",
		"date_min", "date_max",
	}
	values := []string{
		strconv.Itoa(raw.NumRows()),
		strconv.Itoa(raw.NumColumns()),
		formatFloat(lo),
		formatFloat(hi),
		formatFloat(pctNull(newCases)),
		formatFloat(pctNull(vaccinated)),
		"",
		"",
	}
	if ok {
		values[6] = first.Format(table.DateLayout)
		values[7] = last.Format(table.DateLayout)
	}
	nulls := make([]bool, len(values))
	for i, v := range values {
		nulls[i] = v == ""
	}

	return table.New(
		table.NewStringColumn(ColMetric, metrics, nil),
		table.NewStringColumn(ColValue, values, nulls),
	)
}

func floatRange(c *table.Column) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for i := 0; i < c.Len(); i++ {
		v := c.Float(i)
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}

func dateRange(c *table.Column) (first, last time.Time, ok bool) {
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		d := c.Date(i)
		if !ok || d.Before(first) {
			first = d
		}
		if !ok || d.After(last) {
			last = d
		}
		ok = true
	}
	return first, last, ok
}

func pctNull(c *table.Column) float64 {
	if c.Len() == 0 {
		return math.NaN()
	}
	return float64(c.NullCount()) / float64(c.Len()) * 100
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

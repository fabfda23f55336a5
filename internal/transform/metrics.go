package transform

import (
	"math"

	"github.com/vk/assetgrid/internal/table"
)

// partitionByEntity sorts clean by entity and date and splits it into one
// series per entity. Rolling windows are computed within a series only.
func partitionByEntity(clean *table.Dataset, required ...string) (*table.Dataset, [][]int, error) {
	for _, name := range append([]string{ColEntity, ColDate}, required...) {
		if _, err := clean.Column(name); err != nil {
			return nil, nil, err
		}
	}
	sorted, err := clean.SortBy(ColEntity, ColDate)
	if err != nil {
		return nil, nil, err
	}
	parts, err := sorted.Partitions(ColEntity)
	if err != nil {
		return nil, nil, err
	}
	return sorted, parts, nil
}

// gather returns values at rows.
func gather(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for j, i := range rows {
		out[j] = values[i]
	}
	return out
}

// Incidence7d computes, per entity, the daily incidence per 100k people and
// its trailing mean over the last 7 rows. The window needs a single present
// value, so the start of every series is averaged over the rows seen so far.
// There is exactly one output row per input row.
func Incidence7d(clean *table.Dataset) (*table.Dataset, error) {
	sorted, parts, err := partitionByEntity(clean, ColNewCases, ColPopulation)
	if err != nil {
		return nil, err
	}
	newCases := table.ToFloat(mustColumn(sorted, ColNewCases)).Floats()
	population := table.ToFloat(mustColumn(sorted, ColPopulation)).Floats()

	incidence := make([]float64, 0, sorted.NumRows())
	for _, rows := range parts {
		daily := make([]float64, len(rows))
		for j, i := range rows {
			daily[j] = newCases[i] / population[i] * PerHundredThousand
		}
		incidence = append(incidence, rollingMean(daily, Window, 1)...)
	}

	withIncidence, err := sorted.WithColumn(table.NewFloatColumn(ColIncidence7d, incidence))
	if err != nil {
		return nil, err
	}
	return withIncidence.Select(ColDate, ColEntity, ColIncidence7d)
}

// GrowthFactor7d computes, per entity, the sum of new cases over the last 7
// rows and its ratio to the sum of the 7 rows before them. Both sums need a
// full window, so a series contributes rows from its 14th row on.
//
// A zero prior-week sum yields a missing growth factor rather than an
// infinite one; the row is still reported with its week sum.
func GrowthFactor7d(clean *table.Dataset) (*table.Dataset, error) {
	sorted, parts, err := partitionByEntity(clean, ColNewCases)
	if err != nil {
		return nil, err
	}
	newCases := table.ToFloat(mustColumn(sorted, ColNewCases)).Floats()

	var (
		keep    []int
		sums    []float64
		factors []float64
	)
	for _, rows := range parts {
		values := gather(newCases, rows)
		week := rollingSum(values, Window, Window)
		prev := rollingSum(shift(values, Window), Window, Window)
		for j := range rows {
			if math.IsNaN(week[j]) || math.IsNaN(prev[j]) {
				continue
			}
			keep = append(keep, rows[j])
			sums = append(sums, week[j])
			factors = append(factors, growthFactor(week[j], prev[j]))
		}
	}

	out := sorted.Take(keep)
	weekEnd, err := out.Rename(ColDate, ColWeekEndDate)
	if err != nil {
		return nil, err
	}
	return table.New(
		mustColumn(weekEnd, ColWeekEndDate),
		mustColumn(weekEnd, ColEntity),
		table.NewFloatColumn(ColWeekSum, sums),
		table.NewFloatColumn(ColGrowthFactor, factors),
	)
}

func growthFactor(week, prev float64) float64 {
	if prev == 0 {
		return math.NaN()
	}
	return week / prev
}

// mustColumn looks up a column whose presence was already verified.
func mustColumn(d *table.Dataset, name string) *table.Column {
	c, err := d.Column(name)
	if err != nil {
		panic(err)
	}
	return c
}

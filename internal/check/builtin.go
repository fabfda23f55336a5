package check

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vk/assetgrid/internal/table"
	"github.com/vk/assetgrid/internal/transform"
)

// Incidence bounds accepted by Incidence7dRange, in cases per 100k people.
const (
	IncidenceLower = 0
	IncidenceUpper = 2000
)

// scoped returns the rows of raw whose entity is one of entities, along with
// the name of the entity column that was resolved.
func scoped(raw *table.Dataset, entities []string) (*table.Dataset, string, error) {
	entityCol, err := raw.Resolve(transform.EntityAliases...)
	if err != nil {
		return nil, "", err
	}
	in := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		in[e] = struct{}{}
	}
	name := entityCol.Name()
	d := raw.Filter(func(r table.Row) bool {
		if r.IsNull(name) {
			return false
		}
		_, ok := in[entityCol.Format(r.Index())]
		return ok
	})
	return d, name, nil
}

// NoFutureDates fails when the latest date carrying a new_cases value, among
// the given entities, lies after the current UTC date reported by now.
func NoFutureDates(asset string, entities []string, now func() time.Time) Definition {
	return Definition{
		Name:        "no_future_dates",
		Asset:       asset,
		Description: "The latest date with data must not be in the future.",
		Evaluate: func(raw *table.Dataset) (Result, error) {
			d, _, err := scoped(raw, entities)
			if err != nil {
				return Result{}, err
			}
			dateCol, err := d.Column(transform.ColDate)
			if err != nil {
				return Result{}, err
			}
			casesCol, err := d.Column(transform.ColNewCases)
			if err != nil {
				return Result{}, err
			}
			dates := table.ParseDates(dateCol)
			cases := table.ToFloat(casesCol)
			today := table.Day(now())

			var (
				maxDate time.Time
				seen    bool
				checked int
				future  int
			)
			for i := 0; i < d.NumRows(); i++ {
				if cases.IsNull(i) {
					continue
				}
				checked++
				if dates.IsNull(i) {
					continue
				}
				day := dates.Date(i)
				if !seen || day.After(maxDate) {
					maxDate, seen = day, true
				}
				if day.After(today) {
					future++
				}
			}

			maxText := ""
			if seen {
				maxText = maxDate.Format(table.DateLayout)
			}
			return Result{
				Passed: !seen || !maxDate.After(today),
				Metadata: Metadata{
					"max_date":     Str(maxText),
					"today":        Str(today.Format(table.DateLayout)),
					"rows_checked": Int(checked),
					"future_rows":  Int(future),
				},
			}, nil
		},
	}
}

// KeyColumnsNotNull fails when the entity, date or population column is
// absent or has missing values among the given entities' rows.
func KeyColumnsNotNull(asset string, entities []string) Definition {
	return Definition{
		Name:        "key_columns_not_null",
		Asset:       asset,
		Description: "Entity, date and population have no missing values for the scoped entities.",
		Evaluate: func(raw *table.Dataset) (Result, error) {
			d, entityName, err := scoped(raw, entities)
			if err != nil {
				return Result{}, err
			}
			meta := Metadata{}
			passed := true
			var missing []string
			for _, name := range []string{entityName, transform.ColDate, transform.ColPopulation} {
				c, err := d.Column(name)
				if err != nil {
					missing = append(missing, name)
					passed = false
					continue
				}
				nulls := c.NullCount()
				meta["nulls_"+name] = Int(nulls)
				if nulls > 0 {
					passed = false
				}
			}

			globalNulls := raw.NumRows()
			if pop, err := raw.Column(transform.ColPopulation); err == nil {
				globalNulls = table.ToFloat(pop).NullCount()
			}
			meta["missing_columns"] = Str(strings.Join(missing, ","))
			if len(missing) > 0 {
				meta[MetaError] = Str(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
			}
			meta["global_population_nulls"] = Int(globalNulls)
			meta["entities"] = Str(strings.Join(entities, " & "))
			meta["subset_rows"] = Int(d.NumRows())
			return Result{Passed: passed, Metadata: meta}, nil
		},
	}
}

// UniqueEntityDate fails when an (entity, date) pair occurs more than once
// anywhere in the dataset.
func UniqueEntityDate(asset string) Definition {
	return Definition{
		Name:        "unique_entity_date",
		Asset:       asset,
		Description: "Each (entity, date) pair is unique.",
		Evaluate: func(raw *table.Dataset) (Result, error) {
			entityCol, err := raw.Resolve(transform.EntityAliases...)
			if err != nil {
				return Result{}, err
			}
			dateCol, err := raw.Column(transform.ColDate)
			if err != nil {
				return Result{}, err
			}
			type key struct {
				entity, date string
				entityNull   bool
				dateNull     bool
			}
			seen := make(map[key]struct{}, raw.NumRows())
			dupes := 0
			for i := 0; i < raw.NumRows(); i++ {
				k := key{
					entity:     entityCol.Format(i),
					date:       dateCol.Format(i),
					entityNull: entityCol.IsNull(i),
					dateNull:   dateCol.IsNull(i),
				}
				if _, ok := seen[k]; ok {
					dupes++
					continue
				}
				seen[k] = struct{}{}
			}
			return Result{Passed: dupes == 0, Metadata: Metadata{"duplicates": Int(dupes)}}, nil
		},
	}
}

// PopulationPositive fails when any present population value is zero or
// negative.
func PopulationPositive(asset string) Definition {
	return Definition{
		Name:        "population_positive",
		Asset:       asset,
		Description: "Population is strictly positive wherever present.",
		Evaluate: func(raw *table.Dataset) (Result, error) {
			c, err := raw.Column(transform.ColPopulation)
			if err != nil {
				return Result{}, err
			}
			pop := table.ToFloat(c)
			bad := 0
			for i := 0; i < pop.Len(); i++ {
				if v := pop.Float(i); !math.IsNaN(v) && v <= 0 {
					bad++
				}
			}
			return Result{Passed: bad == 0, Metadata: Metadata{"non_positive_population": Int(bad)}}, nil
		},
	}
}

// NewCasesPolicy counts negative new_cases values. They fail the check unless
// allowNegative is set, in which case the count is only reported.
func NewCasesPolicy(asset string, allowNegative bool) Definition {
	return Definition{
		Name:        "new_cases_policy",
		Asset:       asset,
		Description: "Negative new_cases values are rejected unless explicitly allowed.",
		Evaluate: func(raw *table.Dataset) (Result, error) {
			c, err := raw.Column(transform.ColNewCases)
			if err != nil {
				return Result{}, err
			}
			cases := table.ToFloat(c)
			negatives := 0
			for i := 0; i < cases.Len(); i++ {
				if cases.Float(i) < 0 {
					negatives++
				}
			}
			note := "negative values are not allowed; set ALLOW_NEGATIVE_NEW_CASES=true to accept corrections"
			if allowNegative {
				note = "negative values are allowed (ALLOW_NEGATIVE_NEW_CASES=true)"
			}
			return Result{
				Passed: allowNegative || negatives == 0,
				Metadata: Metadata{
					"negatives":      Int(negatives),
					"allow_negative": Bool(allowNegative),
					"note":           Str(note),
				},
			}, nil
		},
	}
}

// Incidence7dRange fails when any 7-day incidence lies outside
// [IncidenceLower, IncidenceUpper].
func Incidence7dRange(asset string) Definition {
	return Definition{
		Name:        "incidence_7d_range",
		Asset:       asset,
		Description: "7-day incidence lies within [0, 2000] per 100k.",
		Evaluate: func(d *table.Dataset) (Result, error) {
			c, err := d.Column(transform.ColIncidence7d)
			if err != nil {
				return Result{}, err
			}
			values := table.ToFloat(c)
			meta := Metadata{
				"lower": Int(IncidenceLower),
				"upper": Int(IncidenceUpper),
			}
			outliers := 0
			lo, hi := math.Inf(1), math.Inf(-1)
			for i := 0; i < values.Len(); i++ {
				v := values.Float(i)
				if math.IsNaN(v) {
					continue
				}
				lo, hi = math.Min(lo, v), math.Max(hi, v)
				if v < IncidenceLower || v > IncidenceUpper {
					outliers++
				}
			}
			if lo <= hi {
				meta["min"] = Float(lo)
				meta["max"] = Float(hi)
			}
			meta["out_of_range"] = Int(outliers)
			return Result{Passed: outliers == 0, Metadata: meta}, nil
		},
	}
}

package transform

import (
	"github.com/vk/assetgrid/internal/table"
)

type entityDay struct {
	entity string
	null   bool
	day    int64
}

// CleanAndScope normalizes the raw extract and restricts it to the given
// entities.
//
// Dates are reduced to timezone-free calendar dates and the numeric columns
// are coerced, with unparseable values becoming missing. Rows missing a date,
// new_cases or people_vaccinated are dropped, then the first occurrence of
// each (entity, date) pair is kept. The result holds the entity, date,
// new_cases, people_vaccinated and population columns sorted by entity and
// date. Entities absent from raw simply contribute no rows.
func CleanAndScope(raw *table.Dataset, entities []string) (*table.Dataset, error) {
	entityCol, err := raw.Resolve(EntityAliases...)
	if err != nil {
		return nil, err
	}
	cols := make(map[string]*table.Column, 4)
	for _, name := range []string{ColDate, ColNewCases, ColPeopleVaccinated, ColPopulation} {
		c, err := raw.Column(name)
		if err != nil {
			return nil, err
		}
		cols[name] = c
	}

	entity := asStrings(ColEntity, entityCol)
	dates := table.ParseDates(cols[ColDate])
	newCases := table.ToFloat(cols[ColNewCases])
	vaccinated := table.ToFloat(cols[ColPeopleVaccinated])
	population := table.ToFloat(cols[ColPopulation])

	scope := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		scope[e] = struct{}{}
	}

	seen := make(map[entityDay]struct{}, raw.NumRows())
	keep := make([]int, 0, raw.NumRows())
	for i := 0; i < raw.NumRows(); i++ {
		if dates.IsNull(i) || newCases.IsNull(i) || vaccinated.IsNull(i) {
			continue
		}
		k := entityDay{entity: entity.Str(i), null: entity.IsNull(i), day: dates.Date(i).Unix()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if k.null {
			continue
		}
		if _, ok := scope[k.entity]; !ok {
			continue
		}
		keep = append(keep, i)
	}

	clean, err := table.New(entity, dates, newCases, vaccinated, population)
	if err != nil {
		return nil, err
	}
	return clean.Take(keep).SortBy(ColEntity, ColDate)
}

// asStrings returns c renamed to name, converting non-string values to text.
func asStrings(name string, c *table.Column) *table.Column {
	n := c.Len()
	values := make([]string, n)
	nulls := make([]bool, n)
	for i := 0; i < n; i++ {
		values[i] = c.Format(i)
		nulls[i] = c.IsNull(i)
	}
	return table.NewStringColumn(name, values, nulls)
}

package transform

// Column names produced and consumed by the transforms.
const (
	ColEntity           = "entity"
	ColDate             = "date"
	ColNewCases         = "new_cases"
	ColPeopleVaccinated = "people_vaccinated"
	ColPopulation       = "population"

	ColIncidence7d  = "incidence_7d"
	ColWeekEndDate  = "week_end_date"
	ColWeekSum      = "week_sum"
	ColGrowthFactor = "growth_factor"

	ColMetric = "metric"
	ColValue  = "value"
)

// EntityAliases are the accepted names of the entity column, in priority
// order. Extracts name it "location" or "country" depending on the edition.
var EntityAliases = []string{"location", "country", ColEntity}

const (
	// Window is the number of trailing rows aggregated by the 7-day metrics.
	Window = 7
	// PerHundredThousand scales a per-capita rate to cases per 100k people.
	PerHundredThousand = 100000
)

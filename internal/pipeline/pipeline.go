// Package pipeline declares the epidemiology pipeline: it fetches the raw
// extract, profiles it, scopes it to two entities and derives the 7-day
// incidence and growth factor, with data-quality checks bound to the raw
// extract and to the incidence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/assetgrid/internal/asset"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/source"
	"github.com/vk/assetgrid/internal/table"
	"github.com/vk/assetgrid/internal/transform"
)

// Asset names, in declaration order.
const (
	AssetRaw       = "raw"
	AssetProfile   = "profile"
	AssetProcessed = "processed"
	AssetIncidence = "incidence_7d"
	AssetGrowth    = "growth_7d"
)

// Default entity pair.
const (
	DefaultEntityA = "Ecuador"
	DefaultEntityB = "Peru"
)

// ReportAssets must all materialize for the report to be exported.
var ReportAssets = []string{AssetProcessed, AssetIncidence, AssetGrowth}

// Options parameterize one pipeline declaration.
type Options struct {
	// EntityA and EntityB are the two entities the metrics are computed for.
	EntityA string
	EntityB string
	// AllowNegative makes the new_cases policy check report negative values
	// without failing.
	AllowNegative bool

	Workers     int
	NodeTimeout time.Duration
	// Now is the clock of the run and of the no-future-dates check.
	Now func() time.Time
}

// Entities returns the scoped entity set, defaulting blank names.
func (o Options) Entities() []string {
	a, b := o.EntityA, o.EntityB
	if a == "" {
		a = DefaultEntityA
	}
	if b == "" {
		b = DefaultEntityB
	}
	return []string{a, b}
}

func (o Options) now() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// Define builds the asset graph over src.
func Define(src source.DataSource, opts Options) (*asset.Definitions, error) {
	if src == nil {
		return nil, errors.New("pipeline requires a data source")
	}
	entities := opts.Entities()

	return asset.NewBuilder().
		Asset(asset.Node{
			Name:        AssetRaw,
			Description: fmt.Sprintf("Raw extract read from %s.", src.Location()),
			Compute: func(ctx context.Context, _ asset.Inputs) (*table.Dataset, error) {
				return src.Fetch(ctx)
			},
		}).
		Asset(asset.Node{
			Name:        AssetProfile,
			Description: "Row, column, null-rate and range profile of the raw extract.",
			Upstream:    []string{AssetRaw},
			Compute:     single(AssetRaw, transform.Profile),
		}).
		Asset(asset.Node{
			Name:        AssetProcessed,
			Description: fmt.Sprintf("Clean rows of %s and %s with the essential columns.", entities[0], entities[1]),
			Upstream:    []string{AssetRaw},
			Compute: single(AssetRaw, func(raw *table.Dataset) (*table.Dataset, error) {
				return transform.CleanAndScope(raw, entities)
			}),
		}).
		Asset(asset.Node{
			Name:        AssetIncidence,
			Description: "7-day incidence per 100k people.",
			Upstream:    []string{AssetProcessed},
			Compute:     single(AssetProcessed, transform.Incidence7d),
		}).
		Asset(asset.Node{
			Name:        AssetGrowth,
			Description: "Weekly growth factor, last 7 days over the 7 days before.",
			Upstream:    []string{AssetProcessed},
			Compute:     single(AssetProcessed, transform.GrowthFactor7d),
		}).
		Check(check.NoFutureDates(AssetRaw, entities, opts.now())).
		Check(check.KeyColumnsNotNull(AssetRaw, entities)).
		Check(check.UniqueEntityDate(AssetRaw)).
		Check(check.PopulationPositive(AssetRaw)).
		Check(check.NewCasesPolicy(AssetRaw, opts.AllowNegative)).
		Check(check.Incidence7dRange(AssetIncidence)).
		Build()
}

// single adapts a one-input transform to a compute function.
func single(upstream string, fn func(*table.Dataset) (*table.Dataset, error)) asset.ComputeFunc {
	return func(_ context.Context, in asset.Inputs) (*table.Dataset, error) {
		d, err := in.Get(upstream)
		if err != nil {
			return nil, err
		}
		return fn(d)
	}
}

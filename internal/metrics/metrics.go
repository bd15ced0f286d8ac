package metrics

import (
	"context"
	"fmt"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/go-semantic-release/source-resolver/internal/config"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	CounterResolutions = stats.Int64("resolutions", "Number of source resolutions", "1")
	CounterCacheHit    = stats.Int64("cache_hits", "Number of cache hits", "1")
	CounterCacheMiss   = stats.Int64("cache_misses", "Number of cache misses", "1")

	TagSource    = tag.MustNewKey("source")
	TagOperation = tag.MustNewKey("operation")
	TagResult    = tag.MustNewKey("result")
	TagCacheKey  = tag.MustNewKey("cache_key")
)

var Views = []*view.View{
	{
		Name:        "resolutions",
		Measure:     CounterResolutions,
		Description: "Number of source resolutions",
		TagKeys:     []tag.Key{TagSource, TagOperation, TagResult},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_hits",
		Measure:     CounterCacheHit,
		Description: "Number of cache hits",
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_misses",
		Measure:     CounterCacheMiss,
		Description: "Number of cache misses",
		Aggregation: view.Count(),
	},
}

// RecordResolution counts one Latest or GetURL call and its result kind.
func RecordResolution(ctx context.Context, sourceName, operation, result string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(TagSource, sourceName),
		tag.Upsert(TagOperation, operation),
		tag.Upsert(TagResult, result),
	}, CounterResolutions.M(1))
}

func NewExporter(cfg *config.ResolverConfig) (*stackdriver.Exporter, error) {
	err := view.Register(Views...)
	if err != nil {
		return nil, err
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.ProjectID,
		MetricPrefix: fmt.Sprintf("source-resolver/%s", cfg.Stage),
	})
	if err != nil {
		return nil, err
	}
	err = exporter.StartMetricsExporter()
	if err != nil {
		return nil, err
	}
	return exporter, nil
}

// Package pipeline orchestrates the guide generation run: one full pass over
// the sampling file, one over the main file, then the join and ranking.
//
// The two passes are sequential on purpose. A hotspot's checklist total must
// be final before any rate involving it is computed, and the denominator and
// numerator sides dedup on incompatible keys (checklist per locality vs
// checklist per species-locality). Keeping them as independent accumulation
// passes avoids look-ahead and keeps memory bounded by the tally maps plus
// one input chunk, never by row count.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aingebritson/ebird-hotspot-guide/internal/accumulate"
	"github.com/aingebritson/ebird-hotspot-guide/internal/ebird"
	"github.com/aingebritson/ebird-hotspot-guide/internal/observability"
	"github.com/aingebritson/ebird-hotspot-guide/internal/occurrence"
)

// ChecklistReader streams qualifying checklists in chunks.
type ChecklistReader interface {
	ReadChunk(ctx context.Context) ([]ebird.Checklist, error)
	Skipped() int64
	Filtered() int64
	Close() error
}

// ObservationReader streams qualifying observations in chunks.
type ObservationReader interface {
	ReadChunk(ctx context.Context) ([]ebird.Observation, error)
	Skipped() int64
	Filtered() int64
	Close() error
}

// Sources provides fresh traversals of the two input files. Each function
// must return an independent reader positioned at the start, so the two
// passes never share state.
type Sources struct {
	Checklists   func() (ChecklistReader, error)
	Observations func() (ObservationReader, error)
}

// RunStats is the aggregate metadata for one run, reported alongside the
// guides rather than hidden.
type RunStats struct {
	StartedAt  time.Time
	FinishedAt time.Time

	SamplingRowsSkipped     int64
	SamplingRowsFiltered    int64
	ObservationRowsSkipped  int64
	ObservationRowsFiltered int64

	HotspotsIncluded         int
	HotspotsExcludedBelowMin int
	TotalChecklists          int
	SpeciesCount             int
}

// GuideSet is everything a run produces: both ranked views plus run metadata.
type GuideSet struct {
	Species  []occurrence.SpeciesGuide
	Hotspots []occurrence.HotspotGuide
	Stats    RunStats
}

// Pipeline runs the two accumulation passes and the join.
type Pipeline struct {
	sources    Sources
	seasons    occurrence.Seasons
	thresholds occurrence.Thresholds
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline. Seasons and thresholds must already be validated;
// Run re-checks them before touching any input.
func New(sources Sources, seasons occurrence.Seasons, th occurrence.Thresholds, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		sources:    sources,
		seasons:    seasons,
		thresholds: th,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes the full pipeline. Any read failure, consistency fault, or
// invalid configuration aborts with nothing produced; there is no
// partial-results mode.
func (p *Pipeline) Run(ctx context.Context) (*GuideSet, error) {
	if err := p.seasons.Validate(); err != nil {
		return nil, err
	}
	if err := p.thresholds.Validate(); err != nil {
		return nil, err
	}

	stats := RunStats{StartedAt: clock.Now().UTC()}
	p.metrics.RunActive.Set(1)
	defer p.metrics.RunActive.Set(0)

	hotspots, err := p.runChecklistPass(ctx, &stats)
	if err != nil {
		return nil, err
	}

	detections, err := p.runDetectionPass(ctx, &stats)
	if err != nil {
		return nil, err
	}

	results, err := occurrence.Calculate(hotspots, detections, p.seasons, p.thresholds)
	if err != nil {
		return nil, err
	}

	gs := &GuideSet{
		Species:  occurrence.AssembleSpecies(results),
		Hotspots: occurrence.AssembleHotspots(results),
	}

	summary := accumulate.Summarize(hotspots, p.thresholds.MinChecklists)
	stats.HotspotsIncluded = summary.Hotspots
	stats.HotspotsExcludedBelowMin = summary.ExcludedBelowMin
	stats.TotalChecklists = summary.TotalChecklists
	stats.SpeciesCount = len(gs.Species)
	stats.FinishedAt = clock.Now().UTC()
	gs.Stats = stats

	p.logger.Info("run complete",
		"species", stats.SpeciesCount,
		"hotspots", stats.HotspotsIncluded,
		"excluded_below_minimum", stats.HotspotsExcludedBelowMin,
		"total_checklists", stats.TotalChecklists,
		"duration", stats.FinishedAt.Sub(stats.StartedAt),
	)
	return gs, nil
}

// runChecklistPass streams the sampling file into the checklist accumulator.
func (p *Pipeline) runChecklistPass(ctx context.Context, stats *RunStats) (map[string]*accumulate.HotspotTally, error) {
	start := time.Now()
	p.logger.Info("checklist pass starting")

	r, err := p.sources.Checklists()
	if err != nil {
		return nil, err
	}
	defer p.closeReader(r)

	acc := accumulate.NewChecklistAccumulator()
	var rows int64
	for {
		chunk, err := r.ReadChunk(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, c := range chunk {
			acc.Add(c)
		}
		rows += int64(len(chunk))
		p.metrics.RowsRead.WithLabelValues(observability.FileSampling).Add(float64(len(chunk)))
		p.logger.Debug("checklist chunk processed", "rows", rows)
	}

	stats.SamplingRowsSkipped = r.Skipped()
	stats.SamplingRowsFiltered = r.Filtered()
	p.metrics.RowsSkipped.WithLabelValues(observability.FileSampling).Add(float64(r.Skipped()))
	p.metrics.RowsFiltered.WithLabelValues(observability.FileSampling).Add(float64(r.Filtered()))
	p.metrics.PassDuration.WithLabelValues("checklists").Observe(time.Since(start).Seconds())

	tallies := acc.Finalize()
	for _, t := range tallies {
		p.metrics.ChecklistsCounted.Add(float64(t.Checklists))
	}

	p.logger.Info("checklist pass complete",
		"qualifying_rows", rows,
		"skipped", r.Skipped(),
		"filtered", r.Filtered(),
		"localities", len(tallies),
	)
	return tallies, nil
}

// runDetectionPass streams the main file into the detection accumulator.
func (p *Pipeline) runDetectionPass(ctx context.Context, stats *RunStats) (map[accumulate.TallyKey]*accumulate.SpeciesHotspotTally, error) {
	start := time.Now()
	p.logger.Info("detection pass starting")

	r, err := p.sources.Observations()
	if err != nil {
		return nil, err
	}
	defer p.closeReader(r)

	acc := accumulate.NewDetectionAccumulator()
	var rows int64
	for {
		chunk, err := r.ReadChunk(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, o := range chunk {
			acc.Add(o)
		}
		rows += int64(len(chunk))
		p.metrics.RowsRead.WithLabelValues(observability.FileObservations).Add(float64(len(chunk)))
		p.logger.Debug("detection chunk processed", "rows", rows)
	}

	stats.ObservationRowsSkipped = r.Skipped()
	stats.ObservationRowsFiltered = r.Filtered()
	p.metrics.RowsSkipped.WithLabelValues(observability.FileObservations).Add(float64(r.Skipped()))
	p.metrics.RowsFiltered.WithLabelValues(observability.FileObservations).Add(float64(r.Filtered()))
	p.metrics.PassDuration.WithLabelValues("detections").Observe(time.Since(start).Seconds())

	tallies := acc.Finalize()
	for _, t := range tallies {
		p.metrics.DetectionsCounted.Add(float64(t.Detections()))
	}

	p.logger.Info("detection pass complete",
		"qualifying_rows", rows,
		"skipped", r.Skipped(),
		"filtered", r.Filtered(),
		"species_locality_pairs", len(tallies),
	)
	return tallies, nil
}

type closer interface{ Close() error }

func (p *Pipeline) closeReader(c closer) {
	if err := c.Close(); err != nil {
		p.logger.Warn("reader close failed", "error", err)
	}
}

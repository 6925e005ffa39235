// Package pipeline orchestrates a run: sequential-by-checkpoint region
// processing with optional bounded parallelism, followed by the one-shot
// global reconciliation over the complete store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcwaterways/lakenet/internal/geo"
	"github.com/bcwaterways/lakenet/internal/hydro"
	"github.com/bcwaterways/lakenet/internal/merge"
	"github.com/bcwaterways/lakenet/internal/provider"
	"github.com/bcwaterways/lakenet/internal/region"
	"github.com/bcwaterways/lakenet/internal/report"
	"github.com/bcwaterways/lakenet/internal/store"
	"github.com/bcwaterways/lakenet/internal/telemetry"
)

// ErrStartBeyondResume is returned when the caller asks to start past the
// resume point, which would leave a gap in coverage.
var ErrStartBeyondResume = errors.New("start region is beyond the resume point")

// Progress describes one completed region, delivered in run order.
type Progress struct {
	RegionID  int
	Index     int // position in the run order
	Total     int
	Lakes     int
	Fragments int
	Elapsed   time.Duration
}

// Pipeline wires the provider, geometry engine, and store into a resumable
// run. Region computation may be parallelized (Workers > 1); commits are
// always applied in run order by a single committer so the checkpoint stays
// a contiguous prefix of the run.
type Pipeline struct {
	Source     provider.Source
	Engine     geo.Engine
	Store      *store.SQLiteStore
	Tolerances region.Tolerances
	Workers    int
	OnProgress func(Progress)
	Telemetry  *telemetry.Emitter
}

// regionResult is one region's computed output awaiting commit.
type regionResult struct {
	index   int
	region  hydro.Region
	rows    []hydro.LakeRow
	frags   []store.FragmentRecord
	elapsed time.Duration
}

// Run processes every remaining region and then reconciles. startRegion is
// the index of the first region to process, or negative to resume
// automatically; any value at or below the resume point resumes without
// reprocessing, while a value beyond it is rejected.
func (p *Pipeline) Run(ctx context.Context, startRegion int) (*report.Summary, error) {
	summary := &report.Summary{StartedAt: time.Now().UTC()}

	regions, err := p.Source.Regions(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list regions: %w", err)
	}
	order := make([]int, len(regions))
	for i, reg := range regions {
		order[i] = reg.ID
	}

	resume, err := p.Store.ResumePoint(ctx, order)
	if err != nil {
		return nil, err
	}
	if startRegion > resume {
		return nil, fmt.Errorf("pipeline: start index %d, resume point %d: %w", startRegion, resume, ErrStartBeyondResume)
	}

	summary.RegionsTotal = len(regions)
	summary.RegionsResumed = resume
	summary.RegionsProcessed = len(regions) - resume

	if err := p.processRegions(ctx, regions, resume); err != nil {
		return nil, err
	}
	if err := p.reconcile(ctx, summary); err != nil {
		return nil, err
	}

	summary.FinishedAt = time.Now().UTC()
	_ = p.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunDone, Data: summary})
	return summary, nil
}

// processRegions computes regions[resume:] with bounded parallelism and
// commits results strictly in run order.
func (p *Pipeline) processRegions(ctx context.Context, regions []hydro.Region, resume int) error {
	pending := regions[resume:]
	if len(pending) == 0 {
		return nil
	}
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan regionResult, workers)
	commitErr := make(chan error, 1)

	// Single committer: buffers out-of-order results and appends them in
	// run order, so a crash can only ever lose a suffix of the run.
	go func() {
		defer close(commitErr)
		buffered := make(map[int]regionResult)
		next := 0
		for res := range results {
			buffered[res.index] = res
			for {
				r, ok := buffered[next]
				if !ok {
					break
				}
				delete(buffered, next)
				if err := p.commit(ctx, r, resume, len(regions)); err != nil {
					commitErr <- err
					cancel()
					for range results {
						// Drain so workers can exit.
					}
					return
				}
				next++
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, reg := range pending {
		g.Go(func() error {
			_ = p.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRegionStart, Region: reg.ID})
			res, err := p.processRegion(gctx, reg)
			if err != nil {
				_ = p.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRegionFailed, Region: reg.ID, Data: err.Error()})
				return err
			}
			res.index = i
			select {
			case results <- res:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	workerErr := g.Wait()
	close(results)
	cerr := <-commitErr
	if cerr != nil {
		return cerr
	}
	return workerErr
}

// processRegion runs the per-region computation: retrieval, local
// components, boundary fragments, WKB encoding. Nothing is written here; a
// failure aborts the region with no partial state.
func (p *Pipeline) processRegion(ctx context.Context, reg hydro.Region) (regionResult, error) {
	started := time.Now()

	lakes, err := p.Source.QueryLakes(ctx, reg)
	if err != nil {
		return regionResult{}, fmt.Errorf("pipeline: region %d: lakes: %w", reg.ID, err)
	}
	rivers, err := p.Source.QueryRivers(ctx, reg)
	if err != nil {
		return regionResult{}, fmt.Errorf("pipeline: region %d: rivers: %w", reg.ID, err)
	}

	proc := region.NewProcessor(p.Engine, p.Tolerances)
	res, err := proc.Process(ctx, reg, lakes, rivers)
	if err != nil {
		return regionResult{}, err
	}
	frags, err := region.ExtractFragments(p.Engine, reg, res.Components, p.Tolerances.BoundaryBand)
	if err != nil {
		return regionResult{}, err
	}

	records := make([]store.FragmentRecord, 0, len(frags))
	for _, f := range frags {
		wkb, err := p.Engine.ToWKB(f.Geom)
		if err != nil {
			return regionResult{}, fmt.Errorf("pipeline: region %d: encode fragment %d: %w", reg.ID, f.LocalComponentID, err)
		}
		records = append(records, store.FragmentRecord{
			RegionID:         f.RegionID,
			LocalComponentID: f.LocalComponentID,
			WatershedGroup:   f.WatershedGroup,
			WKB:              wkb,
		})
	}

	return regionResult{
		region:  reg,
		rows:    res.Rows,
		frags:   records,
		elapsed: time.Since(started),
	}, nil
}

func (p *Pipeline) commit(ctx context.Context, res regionResult, resume, total int) error {
	if err := p.Store.Append(ctx, res.region.ID, res.rows, res.frags); err != nil {
		return err
	}
	_ = p.Telemetry.Emit(telemetry.Event{
		Kind:   telemetry.KindRegionDone,
		Region: res.region.ID,
		Data: map[string]int{
			"lakes":     len(res.rows),
			"fragments": len(res.frags),
		},
	})
	if p.OnProgress != nil {
		p.OnProgress(Progress{
			RegionID:  res.region.ID,
			Index:     resume + res.index,
			Total:     total,
			Lakes:     len(res.rows),
			Fragments: len(res.frags),
			Elapsed:   res.elapsed,
		})
	}
	return nil
}

// reconcile runs the global phase as one batch over the complete store and
// replaces the final output table.
func (p *Pipeline) reconcile(ctx context.Context, summary *report.Summary) error {
	_ = p.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindMergeStart})

	rows, err := p.Store.LakeRows(ctx)
	if err != nil {
		return err
	}
	records, err := p.Store.Fragments(ctx)
	if err != nil {
		return err
	}
	frags := make([]hydro.Fragment, 0, len(records))
	for _, rec := range records {
		g, err := p.Engine.FromWKB(rec.WKB)
		if err != nil {
			return fmt.Errorf("pipeline: decode fragment (region %d, component %d): %w", rec.RegionID, rec.LocalComponentID, err)
		}
		frags = append(frags, hydro.Fragment{
			RegionID:         rec.RegionID,
			LocalComponentID: rec.LocalComponentID,
			WatershedGroup:   rec.WatershedGroup,
			Geom:             g,
		})
	}

	networks, err := merge.Reconcile(ctx, p.Engine, rows, frags)
	if err != nil {
		return err
	}
	if err := p.Store.ReplaceNetworks(ctx, networks); err != nil {
		return err
	}

	summary.LakeRows = len(rows)
	summary.Fragments = len(frags)
	summary.GlobalComponents = merge.NewAssigner(rows).Total()
	summary.Networks = len(networks)
	_ = p.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindMergeDone, Data: map[string]int{"networks": len(networks)}})
	return nil
}

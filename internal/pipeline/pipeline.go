// Package pipeline orchestrates the conversion: it derives the
// simulator input bundle from the decoded archive, invokes the
// simulator, and reports the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/exp/rand"

	"github.com/karststack/karstconv/internal/archive"
	"github.com/karststack/karstconv/internal/config"
	"github.com/karststack/karstconv/internal/grid"
	"github.com/karststack/karstconv/internal/sinks"
	"github.com/karststack/karstconv/internal/watertable"
	"github.com/karststack/karstconv/pkg/core"
)

// Sentinel errors for the consistency-error taxonomy.
var (
	ErrSpringWithoutBody = errors.New("spring has no associated groundwater body")
	ErrSimulationFailed  = errors.New("simulation returned no result")
)

// Config configures a pipeline.
type Config struct {
	Logger    *slog.Logger
	Simulator core.Simulator
	Params    *config.Params
	// DebugDir, when set, receives simulator-format text dumps of every
	// derived structure before the simulation starts.
	DebugDir string
}

// Pipeline converts a decoded bundle and runs the simulation. It is
// single-threaded and owns no state beyond its configuration; all
// randomness flows from one generator seeded with Params.Seed.
type Pipeline struct {
	logger   *slog.Logger
	sim      core.Simulator
	params   *config.Params
	debugDir string
}

// RunInfo describes a completed conversion run.
type RunInfo struct {
	GenerationTime    time.Time
	Duration          time.Duration
	ComputeResolution archive.GridSize
}

// New creates a pipeline. A nil logger discards output.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		logger:   logger,
		sim:      cfg.Simulator,
		params:   cfg.Params,
		debugDir: cfg.DebugDir,
	}
}

// Run derives all simulator inputs from the bundle and executes the
// simulation. Format and consistency errors abort before the simulator
// is invoked.
func (p *Pipeline) Run(ctx context.Context, b *archive.Bundle) (*core.Result, *RunInfo, error) {
	in, err := p.BuildInput(b)
	if err != nil {
		return nil, nil, err
	}

	if p.debugDir != "" {
		if err := p.writeDebugDumps(in); err != nil {
			return nil, nil, err
		}
	}

	p.logger.Info("starting simulation",
		"nx", b.ComputeResolution.X, "ny", b.ComputeResolution.Y, "nz", b.ComputeResolution.Z)

	start := time.Now()
	res, err := p.sim.Simulate(ctx, in)
	if err != nil {
		return nil, nil, fmt.Errorf("simulation: %w", err)
	}
	if res == nil {
		return nil, nil, ErrSimulationFailed
	}
	info := &RunInfo{
		GenerationTime:    time.Now(),
		Duration:          time.Since(start),
		ComputeResolution: b.ComputeResolution,
	}
	p.logger.Info("simulation completed",
		"duration", info.Duration.Round(time.Millisecond), "segments", len(res.Segments))
	return res, info, nil
}

// BuildInput derives the full simulator input bundle without running
// the simulation.
func (p *Pipeline) BuildInput(b *archive.Bundle) (*core.Input, error) {
	table, err := grid.NewUnitTable(b.Units, b.VoxelUnitIDs, grid.RankAscending, p.logger)
	if err != nil {
		return nil, err
	}
	for rank, u := range table {
		p.logger.Debug("rank assignment", "rank", rank, "unit", u.Name, "permeability", string(u.Permeability))
	}

	opts, err := p.densityOptions()
	if err != nil {
		return nil, err
	}
	box, _, err := grid.Build(b.ProjectBox, table, b.ComputeResolution, b.Voxels, opts, p.logger)
	if err != nil {
		return nil, err
	}

	topo := core.SurfaceFromDEMGrid(b.DEM, b.ProjectBox.Width, b.ProjectBox.Height)

	springs := make([]core.Spring, len(b.Springs))
	for i, s := range b.Springs {
		springs[i] = core.Spring{
			Origin: core.Point3{X: s.X, Y: s.Y, Z: s.Z},
			Index:  i + 1,
		}
	}

	surfaces := watertable.Extract(b.Voxels, b.ProjectBox, p.logger)
	waterTables, springToWT := orderWaterTables(surfaces, b.GroundwaterBodies)
	for i := range springs {
		wt, ok := springToWT[b.Springs[i].PoiID]
		if !ok {
			return nil, fmt.Errorf("%w: spring %d at (%g, %g, %g)", ErrSpringWithoutBody,
				springs[i].Index, springs[i].Origin.X, springs[i].Origin.Y, springs[i].Origin.Z)
		}
		springs[i].WaterTableIndex = wt
	}

	p.logger.Info("loaded inception surfaces", "count", len(b.Faults))

	rng := rand.New(rand.NewSource(uint64(p.params.Seed)))
	sinkList, matrix, err := sinks.Generate(p.params.NSinks, b.Springs,
		b.ResampledDEMResolution, b.SurfaceResolution, b.DEM, rng, len(springs), p.logger)
	if err != nil {
		return nil, err
	}

	cfg, err := p.karstConfig(b)
	if err != nil {
		return nil, err
	}

	return &core.Input{
		Config:            cfg,
		Box:               box,
		Sinks:             sinkList,
		Springs:           springs,
		Connectivity:      matrix,
		WaterTables:       waterTables,
		Topography:        topo,
		InceptionSurfaces: b.Faults,
	}, nil
}

func (p *Pipeline) densityOptions() (grid.Options, error) {
	var opts grid.Options
	base, auto, err := config.AutoOrValue(p.params.RMinPervious)
	if err != nil {
		return opts, fmt.Errorf("rMinPervious: %w", err)
	}
	if !auto {
		opts.RMinPervious = &base
	}
	sparse, auto, err := config.AutoOrValue(p.params.RMinImpervious)
	if err != nil {
		return opts, fmt.Errorf("rMinImpervious: %w", err)
	}
	if !auto {
		opts.RMinImpervious = &sparse
	}
	return opts, nil
}

// orderWaterTables sorts the extracted surfaces by ascending body id
// and maps each spring id to the 1-based water-table position through
// the groundwater-body associations.
func orderWaterTables(surfaces map[int]*core.Surface, gwbs []archive.GWBRecord) ([]*core.Surface, map[int]int) {
	ids := make([]int, 0, len(surfaces))
	for id := range surfaces {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	waterTables := make([]*core.Surface, len(ids))
	springToWT := make(map[int]int)
	for wtIndex, gwbID := range ids {
		waterTables[wtIndex] = surfaces[gwbID]
		for _, g := range gwbs {
			if g.GwbID == gwbID {
				springToWT[g.SpringID] = wtIndex + 1
			}
		}
	}
	return waterTables, springToWT
}

func (p *Pipeline) karstConfig(b *archive.Bundle) (core.KarstConfig, error) {
	maxDim := b.ProjectBox.Width / float64(b.ComputeResolution.X)
	if h := b.ProjectBox.Height / float64(b.ComputeResolution.Y); h > maxDim {
		maxDim = h
	}
	if d := b.ProjectBox.Depth() / float64(b.ComputeResolution.Z); d > maxDim {
		maxDim = d
	}

	cfg := core.KarstConfig{
		NetworkName:                      p.params.Name,
		Seed:                             p.params.Seed,
		KPts:                             p.params.KPts,
		FractionKarstPerm:                p.params.CohesionFactor,
		UseMaxNghbRadius:                 true,
		InceptionSurfaceConstraintWeight: p.params.InceptionSurfaceConstraintWeight,
		RefineSurfaceSampling:            1,
		UseKarstificationPotential:       true,
		KarstificationPotentialWeight:    1.0,
		NbDeadendPoints:                  0,
		CreateVsetSampling:               p.debugDir != "",
	}

	v, auto, err := config.AutoOrValue(p.params.SearchRadius)
	if err != nil {
		return cfg, fmt.Errorf("searchRadius: %w", err)
	}
	if auto {
		cfg.NghbRadius = maxDim * 3
		p.logger.Info("auto-setting neighbor search radius", "radius", cfg.NghbRadius)
	} else {
		cfg.NghbRadius = v
	}

	v, auto, err = config.AutoOrValue(p.params.MaxInceptionSurfaceDistance)
	if err != nil {
		return cfg, fmt.Errorf("maxInceptionSurfaceDistance: %w", err)
	}
	if auto {
		cfg.MaxInceptionSurfaceDistance = maxDim * 3
		p.logger.Info("auto-setting max inception surface distance", "distance", cfg.MaxInceptionSurfaceDistance)
	} else {
		cfg.MaxInceptionSurfaceDistance = v
	}

	return cfg, nil
}

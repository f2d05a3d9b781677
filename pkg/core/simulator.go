package core

import "context"

// KarstConfig is the simulator's tuning block, assembled by the
// pipeline from the user-facing parameters and the fixed policy the
// converter applies.
type KarstConfig struct {
	NetworkName string
	Seed        int64

	KPts              int
	FractionKarstPerm float64

	NghbRadius       float64
	UseMaxNghbRadius bool

	InceptionSurfaceConstraintWeight float64
	MaxInceptionSurfaceDistance      float64

	RefineSurfaceSampling         int
	UseKarstificationPotential    bool
	KarstificationPotentialWeight float64
	NbDeadendPoints               int
	CreateVsetSampling            bool
}

// Input is the complete bundle handed to the simulator.
type Input struct {
	Config KarstConfig

	Box          *ProjectBox
	Sinks        []Sink
	Springs      []Spring
	Connectivity ConnectivityMatrix
	WaterTables  []*Surface
	Topography   *Surface
	// InceptionSurfaces are fault meshes biasing conduit formation.
	InceptionSurfaces []*Surface
}

// Segment is one generated conduit segment.
type Segment struct {
	Start Point3
	End   Point3
}

// Result is what the simulator returns.
type Result struct {
	Segments []Segment
}

// Simulator runs the karst-conduit network generation. The conversion
// pipeline treats it as an opaque collaborator: it consumes the derived
// input bundle and returns a result, or nil when generation produced
// nothing.
type Simulator interface {
	Simulate(ctx context.Context, in *Input) (*Result, error)
}

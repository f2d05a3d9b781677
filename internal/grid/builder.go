// Package grid converts the native voxel grid into the compute-grid
// density and karstification-potential fields of the project box.
package grid

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/karststack/karstconv/internal/archive"
	"github.com/karststack/karstconv/pkg/core"
)

// ErrDensityBound is returned when a computed sampling density exceeds
// the global bound of 1.
var ErrDensityBound = errors.New("sampling density exceeds bound")

// RankOrder selects how declared units map to voxel ranks.
type RankOrder int

const (
	// RankAscending assigns ranks 1..n in declaration order.
	RankAscending RankOrder = iota
	// RankDescending is the "base project" variant of the export. The
	// reversed mapping is unconfirmed with the data producer and is
	// rejected rather than guessed.
	RankDescending
)

// Sky and Dummy are the synthetic units bracketing the declared
// stratigraphy: Sky always holds rank 0, Dummy absorbs a rank slot the
// declaration list leaves unmatched.
var (
	Sky   = archive.GeologicalUnit{Name: "Sky", Permeability: core.NonKarstified}
	Dummy = archive.GeologicalUnit{Name: "Dummy", Permeability: core.Undefined}
)

// UnitTable maps voxel ranks to geological units.
type UnitTable map[int]archive.GeologicalUnit

// NewUnitTable builds the rank table from the declared stratigraphy and
// the voxel unit-id list. Unit ids with no matching declaration are
// logged and skipped; a shorter unit-id list than the declaration count
// means the last rank belongs to the Dummy unit.
func NewUnitTable(units []archive.GeologicalUnit, voxelUnitIDs []int, order RankOrder, logger *slog.Logger) (UnitTable, error) {
	if order != RankAscending {
		return nil, errors.New("descending rank order (base project) is not supported")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	byID := make(map[int]archive.GeologicalUnit, len(units))
	for _, u := range units {
		byID[u.StratiUnitID] = u
	}

	rankCount := len(units)
	table := UnitTable{0: Sky}
	for j, unitID := range voxelUnitIDs {
		u, ok := byID[unitID]
		if !ok {
			logger.Warn("no geological unit declared for voxel unit id", "strati_unit_id", unitID)
			continue
		}
		table[j+1] = u
	}
	if len(voxelUnitIDs) < rankCount {
		table[rankCount] = Dummy
	}
	return table, nil
}

// Options tunes the density assignment. A nil field means "auto":
// base = compute-grid layers per unit depth, sparse = 2x base. An
// explicit zero is a valid (if degenerate) density, distinct from auto.
type Options struct {
	RMinPervious   *float64
	RMinImpervious *float64
}

// Build produces the project box fields. Each compute cell (iu, iv, iw)
// reads the native voxel selected by proportional floor scaling per
// axis. Potential priority: positive gwb id wins with 1.0, then the
// unit permeability for a positive rank, sky cells stay at NoValue.
//
// The returned column slice tracks the maximum gwb id seen per (iv, iw)
// column, indexed iv*cellsW+iw. It is best-effort bookkeeping; the
// water-table extractor recomputes its own authoritative view.
func Build(box archive.ProjectBox, table UnitTable, res archive.GridSize, voxels *archive.VoxelGrid, opts Options, logger *slog.Logger) (*core.ProjectBox, []int, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	origin := core.Point3{Z: box.MinElevation}
	u := core.Point3{X: box.Width}
	v := core.Point3{Y: box.Height}
	w := core.Point3{Z: box.Depth()}
	cellsU, cellsV, cellsW := res.X, res.Y, res.Z

	baseDensity := float64(cellsW) / w.Z
	if opts.RMinPervious != nil {
		baseDensity = *opts.RMinPervious
	}
	sparseDensity := baseDensity * 2
	if opts.RMinImpervious != nil {
		sparseDensity = *opts.RMinImpervious
	}
	if baseDensity > 1 || sparseDensity > 1 {
		return nil, nil, fmt.Errorf("%w: base=%g sparse=%g", ErrDensityBound, baseDensity, sparseDensity)
	}

	n := cellsU * cellsV * cellsW
	densities := make([]float64, n)
	potentials := make([]float64, n)
	for i := 0; i < n; i++ {
		densities[i] = core.NoValue
		potentials[i] = core.NoValue
	}
	columnMaxGWB := make([]int, cellsV*cellsW)

	for iu := 0; iu < cellsU; iu++ {
		for iv := 0; iv < cellsV; iv++ {
			for iw := 0; iw < cellsW; iw++ {
				index := iu + cellsU*(iv+cellsV*iw)
				ix := nearestIndex(iu, cellsU, voxels.NX)
				iy := nearestIndex(iv, cellsV, voxels.NY)
				iz := nearestIndex(iw, cellsW, voxels.NZ)
				rank, gwbID := voxels.At(ix, iy, iz)

				var potential float64
				switch {
				case gwbID > 0:
					// Inside a groundwater body the potential is
					// saturated regardless of the unit rank.
					potential = 1.0
					col := iv*cellsW + iw
					if gwbID > columnMaxGWB[col] {
						columnMaxGWB[col] = gwbID
					}
				case rank > 0:
					unit := table[rank]
					p, known := core.PotentialFor(unit.Permeability)
					if !known {
						logger.Warn("unknown permeability class",
							"permeability", string(unit.Permeability), "unit", unit.Name)
						potential = core.NoValue
					} else {
						potential = p
					}
				default:
					// Sky stays untouched.
					continue
				}

				potentials[index] = potential
				if potential < 0 {
					continue
				}
				if potential > 0 {
					densities[index] = baseDensity
				} else {
					densities[index] = sparseDensity
				}
			}
		}
	}

	pb, err := core.NewProjectBox(origin, u, v, w, cellsU, cellsV, cellsW, densities, potentials)
	if err != nil {
		return nil, nil, err
	}
	return pb, columnMaxGWB, nil
}

// nearestIndex maps compute index i in [0, cells) to the native axis of
// size n by proportional floor scaling, clamped to n-1.
func nearestIndex(i, cells, n int) int {
	ix := i * n / cells
	if ix > n-1 {
		ix = n - 1
	}
	return ix
}

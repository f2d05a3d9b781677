// Package sinks places recharge points inside spring catchments and
// builds the sink/spring connectivity matrix.
package sinks

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/ctessum/geom"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/karststack/karstconv/internal/archive"
	"github.com/karststack/karstconv/pkg/core"
)

// ErrOutsideDEM is returned when a sampled point falls outside the
// interpolable DEM footprint. The catchment geometry must stay within
// DEM coverage.
var ErrOutsideDEM = errors.New("point outside DEM bounds")

// minBatch bounds the rejection-sampling batch size from below so tiny
// remaining counts still make progress on thin catchments.
const minBatch = 32

// Generate places n sinks across the spring catchments. Allocation is
// proportional to catchment area (uniform when all areas are zero) via
// a categorical draw from rng; a single catchment takes all sinks
// deterministically. Placement is uniform rejection sampling inside
// each catchment, elevation comes from bilinear interpolation on the
// resampled DEM. n <= 0 yields empty results, not an error.
func Generate(n int, springs []archive.SpringRecord, demRes archive.DemResolution, surfRes core.Point2, dem [][]float64, rng *rand.Rand, numSprings int, logger *slog.Logger) ([]core.Sink, core.ConnectivityMatrix, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if n <= 0 {
		return nil, core.ConnectivityMatrix{}, nil
	}

	polys := make([]geom.Polygon, len(springs))
	areas := make([]float64, len(springs))
	for i, s := range springs {
		polys[i] = catchmentPolygon(s.Catchment)
		areas[i] = math.Abs(polys[i].Area())
	}

	counts := allocate(n, areas, rng)

	var sinks []core.Sink
	var matrix core.ConnectivityMatrix
	sinkIndex := 1
	for i, s := range springs {
		count := counts[i]
		if count == 0 {
			continue
		}
		logger.Info("allocating sinks to catchment",
			"count", count, "poi_id", s.PoiID, "area", areas[i])

		pts := randomPointsInPolygon(polys[i], count, rng)
		for _, pt := range pts {
			z, err := elevationAt(pt.X, pt.Y, dem, demRes, surfRes)
			if err != nil {
				return nil, nil, err
			}
			sinks = append(sinks, core.Sink{
				Origin: core.Point3{X: pt.X, Y: pt.Y, Z: z},
				Index:  sinkIndex,
				Order:  1,
				Radius: 0,
			})
			row := make([]core.Connectivity, numSprings)
			row[i] = core.Connected
			matrix = append(matrix, row)
			sinkIndex++
		}
	}
	return sinks, matrix, nil
}

// catchmentPolygon builds the ring, dropping a duplicated closing
// point; ring direction and self-intersections are handled by the
// even-odd rules of the geometry package.
func catchmentPolygon(ring [][2]float64) geom.Polygon {
	pts := make([]geom.Point, 0, len(ring))
	for _, p := range ring {
		pts = append(pts, geom.Point{X: p[0], Y: p[1]})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return geom.Polygon{pts}
}

// allocate splits n sinks across catchments proportionally to area.
func allocate(n int, areas []float64, rng *rand.Rand) []int {
	counts := make([]int, len(areas))
	if len(areas) == 1 {
		counts[0] = n
		return counts
	}

	weights := make([]float64, len(areas))
	if floats.Sum(areas) == 0 {
		for i := range weights {
			weights[i] = 1
		}
	} else {
		copy(weights, areas)
	}

	dist := distuv.NewCategorical(weights, rng)
	for i := 0; i < n; i++ {
		counts[int(dist.Rand())]++
	}
	return counts
}

// randomPointsInPolygon draws uniform points inside poly by rejection
// sampling over its bounding box. Candidates are generated in batches
// bounded by the remaining count so pathological catchment shapes keep
// predictable worst-case behavior per round.
func randomPointsInPolygon(poly geom.Polygon, n int, rng *rand.Rand) []geom.Point {
	if n <= 0 {
		return nil
	}
	b := poly.Bounds()
	accepted := make([]geom.Point, 0, n)
	remaining := n
	for remaining > 0 {
		batch := remaining * 2
		if batch < minBatch {
			batch = minBatch
		}
		for i := 0; i < batch && remaining > 0; i++ {
			pt := geom.Point{
				X: b.Min.X + rng.Float64()*(b.Max.X-b.Min.X),
				Y: b.Min.Y + rng.Float64()*(b.Max.Y-b.Min.Y),
			}
			if pt.Within(poly) != geom.Outside {
				accepted = append(accepted, pt)
				remaining--
			}
		}
	}
	return accepted
}

// elevationAt bilinearly interpolates the resampled DEM at (x, y) in
// local box coordinates.
func elevationAt(x, y float64, dem [][]float64, demRes archive.DemResolution, surfRes core.Point2) (float64, error) {
	col := x / surfRes.X
	row := y / surfRes.Y
	if col < 0 || col >= float64(demRes.NCols-1) || row < 0 || row >= float64(demRes.NRows-1) {
		return 0, fmt.Errorf("%w: (%g, %g)", ErrOutsideDEM, x, y)
	}
	col0 := int(math.Floor(col))
	row0 := int(math.Floor(row))
	dc := col - float64(col0)
	dr := row - float64(row0)

	z00 := dem[row0][col0]
	z10 := dem[row0][col0+1]
	z01 := dem[row0+1][col0]
	z11 := dem[row0+1][col0+1]
	z0 := z00*(1-dc) + z10*dc
	z1 := z01*(1-dc) + z11*dc
	return z0*(1-dr) + z1*dr, nil
}

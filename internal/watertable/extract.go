// Package watertable extracts triangulated water-table surfaces from
// the voxel grid, one per groundwater body.
package watertable

import (
	"io"
	"log/slog"
	"sort"

	"github.com/karststack/karstconv/internal/archive"
	"github.com/karststack/karstconv/pkg/core"
)

// Extract builds one surface per distinct positive groundwater-body id
// in the grid. The surface sits one grid layer above the top occupied
// voxel of each column: z = (top+1)*dz + minElevation. Columns where
// the body is absent leave holes; a body that yields no triangles at
// all is dropped with a warning.
func Extract(voxels *archive.VoxelGrid, box archive.ProjectBox, logger *slog.Logger) map[int]*core.Surface {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	nx, ny, nz := voxels.NX, voxels.NY, voxels.NZ
	if nz == 0 {
		return map[int]*core.Surface{}
	}

	dx := 0.0
	if nx > 1 {
		dx = box.Width / float64(nx-1)
	}
	dy := 0.0
	if ny > 1 {
		dy = box.Height / float64(ny-1)
	}
	dz := box.Depth() / float64(nz)

	ids := distinctBodyIDs(voxels)
	logger.Debug("groundwater bodies present in voxel grid", "ids", ids)

	surfaces := make(map[int]*core.Surface)
	for _, gwbID := range ids {
		top := topLayer(voxels, gwbID)

		xMin, xMax, yMin, yMax, any := validBounds(top, nx, ny)
		if !any {
			continue
		}
		width := xMax - xMin + 1
		height := yMax - yMin + 1

		// Vertex index per column of the minimal enclosing rectangle,
		// -1 where the body is absent.
		vertexIndex := make([]int, width*height)
		s := &core.Surface{}
		for localY := 0; localY < height; localY++ {
			globalY := yMin + localY
			for localX := 0; localX < width; localX++ {
				globalX := xMin + localX
				cell := localY*width + localX
				topIdx := top[globalX*ny+globalY]
				if topIdx < 0 {
					vertexIndex[cell] = -1
					continue
				}
				vertexIndex[cell] = len(s.Vertices)
				s.Vertices = append(s.Vertices, core.Point3{
					X: float64(globalX) * dx,
					Y: float64(globalY) * dy,
					Z: float64(topIdx+1)*dz + box.MinElevation,
				})
			}
		}

		for localY := 0; localY < height-1; localY++ {
			for localX := 0; localX < width-1; localX++ {
				v1 := vertexIndex[localY*width+localX]
				v2 := vertexIndex[localY*width+localX+1]
				v3 := vertexIndex[(localY+1)*width+localX]
				v4 := vertexIndex[(localY+1)*width+localX+1]
				if v1 < 0 || v2 < 0 || v3 < 0 || v4 < 0 {
					continue
				}
				s.Triangles = append(s.Triangles,
					core.Triangle{v1, v2, v3},
					core.Triangle{v2, v4, v3})
			}
		}

		if len(s.Triangles) == 0 {
			logger.Warn("skipping groundwater body: no triangles could be generated", "gwb_id", gwbID)
			continue
		}
		surfaces[gwbID] = s
		logger.Info("built water table surface",
			"gwb_id", gwbID, "vertices", len(s.Vertices), "triangles", len(s.Triangles))
	}
	return surfaces
}

// topLayer returns, per (x, y) column flattened as x*ny+y, the highest
// z index where the body occurs, or -1 when absent.
func topLayer(voxels *archive.VoxelGrid, gwbID int) []int {
	nx, ny, nz := voxels.NX, voxels.NY, voxels.NZ
	top := make([]int, nx*ny)
	for i := range top {
		top[i] = -1
	}
	for ix := 0; ix < nx; ix++ {
		for iy := 0; iy < ny; iy++ {
			for iz := nz - 1; iz >= 0; iz-- {
				if _, id := voxels.At(ix, iy, iz); id == gwbID {
					top[ix*ny+iy] = iz
					break
				}
			}
		}
	}
	return top
}

func distinctBodyIDs(voxels *archive.VoxelGrid) []int {
	seen := make(map[int]struct{})
	for ix := 0; ix < voxels.NX; ix++ {
		for iy := 0; iy < voxels.NY; iy++ {
			for iz := 0; iz < voxels.NZ; iz++ {
				if _, id := voxels.At(ix, iy, iz); id > 0 {
					seen[id] = struct{}{}
				}
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func validBounds(top []int, nx, ny int) (xMin, xMax, yMin, yMax int, any bool) {
	xMin, yMin = nx, ny
	xMax, yMax = -1, -1
	for ix := 0; ix < nx; ix++ {
		for iy := 0; iy < ny; iy++ {
			if top[ix*ny+iy] < 0 {
				continue
			}
			any = true
			if ix < xMin {
				xMin = ix
			}
			if ix > xMax {
				xMax = ix
			}
			if iy < yMin {
				yMin = iy
			}
			if iy > yMax {
				yMax = iy
			}
		}
	}
	return xMin, xMax, yMin, yMax, any
}

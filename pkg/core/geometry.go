package core

import (
	"bufio"
	"fmt"
	"io"
)

// Point2 is a 2D point or resolution pair.
type Point2 struct {
	X float64
	Y float64
}

// Point3 is a 3D point in project-box coordinates.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// Triangle indexes three vertices of a Surface.
type Triangle [3]int

// Surface is a triangulated mesh.
type Surface struct {
	Vertices  []Point3
	Triangles []Triangle
}

// SurfaceFromDEMGrid builds a height-field mesh from a DEM raster.
// Row 0 of the raster is the minimum-Y edge of the box. Vertices are
// spaced so the grid spans the full box width and height, and every
// 2x2 cell block is split into two triangles.
func SurfaceFromDEMGrid(dem [][]float64, width, height float64) *Surface {
	rows := len(dem)
	if rows == 0 {
		return &Surface{}
	}
	cols := len(dem[0])

	dx := 0.0
	if cols > 1 {
		dx = width / float64(cols-1)
	}
	dy := 0.0
	if rows > 1 {
		dy = height / float64(rows-1)
	}

	s := &Surface{Vertices: make([]Point3, 0, rows*cols)}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			s.Vertices = append(s.Vertices, Point3{
				X: float64(col) * dx,
				Y: float64(row) * dy,
				Z: dem[row][col],
			})
		}
	}
	for row := 0; row < rows-1; row++ {
		for col := 0; col < cols-1; col++ {
			v1 := row*cols + col
			v2 := v1 + 1
			v3 := v1 + cols
			v4 := v3 + 1
			s.Triangles = append(s.Triangles, Triangle{v1, v2, v3}, Triangle{v2, v4, v3})
		}
	}
	return s
}

// WriteText writes the surface in the simulator's vertex/triangle text
// form: one "v x y z" line per vertex followed by one "t i j k" line
// per triangle, indices zero-based.
func (s *Surface) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, v := range s.Vertices {
		if _, err := fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for _, t := range s.Triangles {
		if _, err := fmt.Fprintf(bw, "t %d %d %d\n", t[0], t[1], t[2]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

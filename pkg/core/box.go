package core

import (
	"bufio"
	"fmt"
	"io"
)

// NoValue marks cells that carry no density or potential. It matches
// the sentinel the simulator's input format uses.
const NoValue = -99999.0

// ProjectBox is the oriented simulation domain: an origin, three basis
// vectors, and a regular compute grid. Densities holds the target
// sampling spacing per cell and Potentials the karstification potential
// in [0,1]; both use NoValue for untouched (sky) cells.
//
// Cell (iu, iv, iw) lives at index iu + CellsU*(iv + CellsV*iw).
type ProjectBox struct {
	Origin Point3
	U      Point3
	V      Point3
	W      Point3

	CellsU int
	CellsV int
	CellsW int

	Densities  []float64
	Potentials []float64
}

// NewProjectBox validates the field lengths and the global density
// bound: every assigned density must stay at or below 1, permeable and
// impermeable classes alike.
func NewProjectBox(origin, u, v, w Point3, cellsU, cellsV, cellsW int, densities, potentials []float64) (*ProjectBox, error) {
	n := cellsU * cellsV * cellsW
	if len(densities) != n || len(potentials) != n {
		return nil, fmt.Errorf("project box field length mismatch: want %d cells, got %d densities and %d potentials",
			n, len(densities), len(potentials))
	}
	for i, d := range densities {
		if d != NoValue && d > 1 {
			return nil, fmt.Errorf("density %g at cell %d exceeds the sampling bound of 1", d, i)
		}
	}
	return &ProjectBox{
		Origin: origin, U: u, V: v, W: w,
		CellsU: cellsU, CellsV: cellsV, CellsW: cellsW,
		Densities: densities, Potentials: potentials,
	}, nil
}

// Cell returns the density and potential at (iu, iv, iw).
func (b *ProjectBox) Cell(iu, iv, iw int) (density, potential float64) {
	i := iu + b.CellsU*(iv+b.CellsV*iw)
	return b.Densities[i], b.Potentials[i]
}

// WriteText dumps the box in the simulator's text form: a geometry
// header line followed by one "density potential" line per cell.
func (b *ProjectBox) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	_, err := fmt.Fprintf(bw, "box %g %g %g u %g %g %g v %g %g %g w %g %g %g cells %d %d %d\n",
		b.Origin.X, b.Origin.Y, b.Origin.Z,
		b.U.X, b.U.Y, b.U.Z,
		b.V.X, b.V.Y, b.V.Z,
		b.W.X, b.W.Y, b.W.Z,
		b.CellsU, b.CellsV, b.CellsW)
	if err != nil {
		return err
	}
	for i := range b.Densities {
		if _, err := fmt.Fprintf(bw, "%g %g\n", b.Densities[i], b.Potentials[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

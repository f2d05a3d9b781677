package core

import (
	"bufio"
	"fmt"
	"io"
)

// Spring is a discharge point. Index is 1-based; WaterTableIndex is the
// 1-based position of the spring's water table in the input bundle's
// WaterTables list.
type Spring struct {
	Origin          Point3
	Index           int
	WaterTableIndex int
	Radius          float64
}

// Sink is a synthetic recharge point feeding the conduit network.
// Index is 1-based and assigned in catchment-then-within-catchment
// order.
type Sink struct {
	Origin Point3
	Index  int
	Order  int
	Radius float64
}

// Connectivity is one cell of the sink/spring connectivity matrix.
type Connectivity int8

const (
	NotConnected Connectivity = iota
	Connected
)

// ConnectivityMatrix has one row per sink and one column per spring.
// Each row carries exactly one Connected entry: the spring whose
// catchment the sink was drawn in.
type ConnectivityMatrix [][]Connectivity

// ConnectedColumn returns the column index of the single Connected
// entry in row i, or -1 if the row has none.
func (m ConnectivityMatrix) ConnectedColumn(i int) int {
	for j, c := range m[i] {
		if c == Connected {
			return j
		}
	}
	return -1
}

// WriteSprings dumps springs as "x y z index wt_index radius" lines.
func WriteSprings(w io.Writer, springs []Spring) error {
	bw := bufio.NewWriter(w)
	for _, s := range springs {
		if _, err := fmt.Fprintf(bw, "%g %g %g %d %d %g\n",
			s.Origin.X, s.Origin.Y, s.Origin.Z, s.Index, s.WaterTableIndex, s.Radius); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSinks dumps sinks as "x y z index order radius" lines.
func WriteSinks(w io.Writer, sinks []Sink) error {
	bw := bufio.NewWriter(w)
	for _, s := range sinks {
		if _, err := fmt.Fprintf(bw, "%g %g %g %d %d %g\n",
			s.Origin.X, s.Origin.Y, s.Origin.Z, s.Index, s.Order, s.Radius); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteText dumps the matrix as one row per line, cells 0 or 1.
func (m ConnectivityMatrix) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, row := range m {
		for j, c := range row {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(bw, "%d", c); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

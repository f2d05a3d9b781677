package archive

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeDEM reshapes the raw little-endian float32 raster into
// (rows, cols), row-major as written by the export.
func DecodeDEM(raw []byte, res DemResolution) ([][]float64, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: DEM raster length %d is not a multiple of 4", ErrFormat, len(raw))
	}
	n := len(raw) / 4
	if n != res.NRows*res.NCols {
		return nil, fmt.Errorf("%w: DEM raster has %d values, resolution says %dx%d",
			ErrFormat, n, res.NRows, res.NCols)
	}
	grid := make([][]float64, res.NRows)
	off := 0
	for r := range grid {
		row := make([]float64, res.NCols)
		for c := range row {
			row[c] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off : off+4])))
			off += 4
		}
		grid[r] = row
	}
	return grid, nil
}

// ResampleDEM decimates the native raster to the compute resolution by
// integer row/column strides and flips it vertically so row 0 becomes
// the minimum-Y edge. The result must keep at least a 2x2 grid, the
// minimum bilinear interpolation needs.
func ResampleDEM(grid [][]float64, target GridSize) ([][]float64, error) {
	rows := len(grid)
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty DEM raster", ErrFormat)
	}
	cols := len(grid[0])

	rowStride := rows / target.Y
	colStride := cols / target.X
	if rowStride < 1 || colStride < 1 {
		return nil, fmt.Errorf("%w: DEM raster %dx%d smaller than compute resolution %dx%d",
			ErrFormat, rows, cols, target.Y, target.X)
	}

	var out [][]float64
	for r := 0; r < rows; r += rowStride {
		var row []float64
		for c := 0; c < cols; c += colStride {
			row = append(row, grid[r][c])
		}
		out = append(out, row)
	}

	// Flip so row 0 is min Y.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	if len(out) < 2 || len(out[0]) < 2 {
		return nil, fmt.Errorf("%w: resampled DEM grid must have at least 2 rows and 2 columns", ErrFormat)
	}
	return out, nil
}

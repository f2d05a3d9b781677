package archive

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rasterBytes(vals []float32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func TestDecodeDEM(t *testing.T) {
	raw := rasterBytes([]float32{1, 2, 3, 4, 5, 6})
	grid, err := DecodeDEM(raw, DemResolution{NCols: 3, NRows: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, grid)
}

func TestDecodeDEM_SizeMismatch(t *testing.T) {
	raw := rasterBytes([]float32{1, 2, 3})
	_, err := DecodeDEM(raw, DemResolution{NCols: 2, NRows: 2})
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "resolution says")
}

func TestResampleDEM(t *testing.T) {
	// 4x4 native raster with values 0..15 row-major.
	grid := make([][]float64, 4)
	for r := range grid {
		grid[r] = make([]float64, 4)
		for c := range grid[r] {
			grid[r][c] = float64(r*4 + c)
		}
	}

	out, err := ResampleDEM(grid, GridSize{X: 2, Y: 2})
	require.NoError(t, err)
	// Stride 2 keeps rows 0 and 2, columns 0 and 2, then the vertical
	// flip puts the last native row first.
	assert.Equal(t, [][]float64{{8, 10}, {0, 2}}, out)
}

func TestResampleDEM_TooSmall(t *testing.T) {
	grid := [][]float64{{1, 2}, {3, 4}}
	// Stride 2 would leave a 1x1 grid, too small to interpolate on.
	_, err := ResampleDEM(grid, GridSize{X: 1, Y: 1})
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "at least 2 rows")
}

func TestResampleDEM_SmallerThanTarget(t *testing.T) {
	grid := [][]float64{{1, 2}, {3, 4}}
	_, err := ResampleDEM(grid, GridSize{X: 4, Y: 4})
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "smaller than compute resolution")
}

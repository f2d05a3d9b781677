package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karststack/karstconv/internal/archive"
	"github.com/karststack/karstconv/internal/testutil"
	"github.com/karststack/karstconv/pkg/core"
)

var testBox = archive.ProjectBox{Width: 100, Height: 100, MinElevation: 0, MaxElevation: 10}

func testUnits() []archive.GeologicalUnit {
	return []archive.GeologicalUnit{
		{Name: "Limestone", Permeability: core.Karstified, StratiUnitID: 5},
		{Name: "Marl", Permeability: core.NonKarstified, StratiUnitID: 6},
	}
}

func TestNewUnitTable(t *testing.T) {
	table, err := NewUnitTable(testUnits(), []int{5, 6}, RankAscending, nil)
	require.NoError(t, err)

	assert.Equal(t, Sky, table[0])
	assert.Equal(t, "Limestone", table[1].Name)
	assert.Equal(t, "Marl", table[2].Name)
}

func TestNewUnitTable_DummyFillsMissingRank(t *testing.T) {
	table, err := NewUnitTable(testUnits(), []int{5}, RankAscending, nil)
	require.NoError(t, err)

	assert.Equal(t, "Limestone", table[1].Name)
	assert.Equal(t, Dummy, table[2])
}

func TestNewUnitTable_UnmatchedUnitID(t *testing.T) {
	table, err := NewUnitTable(testUnits(), []int{9}, RankAscending, testutil.NewTestLogger(t))
	require.NoError(t, err)

	// Unit id 9 is not declared: its rank slot stays empty and the
	// short list leaves the last rank to the dummy unit.
	_, ok := table[1]
	assert.False(t, ok)
	assert.Equal(t, Dummy, table[2])
}

func TestNewUnitTable_DescendingRejected(t *testing.T) {
	_, err := NewUnitTable(testUnits(), []int{5, 6}, RankDescending, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

// buildVoxels fills a 2x2x2 grid from 8 (rank, gwb) pairs in x-fastest
// order.
func buildVoxels(pairs [8][2]int) *archive.VoxelGrid {
	g := archive.NewVoxelGrid(2, 2, 2, 0)
	for i, p := range pairs {
		g.Set(i%2, (i/2)%2, i/4, p[0], p[1])
	}
	return g
}

func TestBuild_PotentialRules(t *testing.T) {
	voxels := buildVoxels([8][2]int{
		{1, 0}, {2, 0}, // karstified, non-karstified
		{0, 0}, {1, 3}, // sky, groundwater body
		{1, 0}, {2, 0},
		{0, 0}, {1, 3},
	})
	table, err := NewUnitTable(testUnits(), []int{5, 6}, RankAscending, nil)
	require.NoError(t, err)

	res := archive.GridSize{X: 2, Y: 2, Z: 2}
	box, columns, err := Build(testBox, table, res, voxels, Options{}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	// Auto densities: base = 2 layers / 10 depth, sparse = 2x base.
	base, sparse := 0.2, 0.4

	d, p := box.Cell(0, 0, 0)
	assert.Equal(t, 0.5, p, "karstified unit potential")
	assert.Equal(t, base, d)

	d, p = box.Cell(1, 0, 0)
	assert.Equal(t, 0.0, p, "non-karstified unit potential")
	assert.Equal(t, sparse, d)

	d, p = box.Cell(0, 1, 0)
	assert.Equal(t, core.NoValue, p, "sky stays untouched")
	assert.Equal(t, core.NoValue, d)

	d, p = box.Cell(1, 1, 0)
	assert.Equal(t, 1.0, p, "groundwater body saturates potential regardless of rank")
	assert.Equal(t, base, d)

	// Column (iv=1, iw=0) and (iv=1, iw=1) saw gwb id 3.
	assert.Equal(t, []int{0, 0, 3, 3}, columns)
}

func TestBuild_UnknownPermeability(t *testing.T) {
	units := []archive.GeologicalUnit{{Name: "Odd", Permeability: "Fractured", StratiUnitID: 5}}
	table, err := NewUnitTable(units, []int{5}, RankAscending, nil)
	require.NoError(t, err)

	voxels := buildVoxels([8][2]int{
		{1, 0}, {1, 0}, {1, 0}, {1, 0},
		{1, 0}, {1, 0}, {1, 0}, {1, 0},
	})
	box, _, err := Build(testBox, table, archive.GridSize{X: 2, Y: 2, Z: 2}, voxels, Options{}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	d, p := box.Cell(0, 0, 0)
	assert.Equal(t, core.NoValue, p, "unknown class degrades to the sentinel")
	assert.Equal(t, core.NoValue, d)
}

func TestBuild_DensityBound(t *testing.T) {
	table, err := NewUnitTable(testUnits(), []int{5, 6}, RankAscending, nil)
	require.NoError(t, err)
	voxels := buildVoxels([8][2]int{})

	// Shallow box: auto base density = 2 layers / 1 depth = 2 > 1.
	shallow := archive.ProjectBox{Width: 100, Height: 100, MinElevation: 0, MaxElevation: 1}
	_, _, err = Build(shallow, table, archive.GridSize{X: 2, Y: 2, Z: 2}, voxels, Options{}, nil)
	require.ErrorIs(t, err, ErrDensityBound)
}

func TestBuild_ExplicitDensities(t *testing.T) {
	table, err := NewUnitTable(testUnits(), []int{5, 6}, RankAscending, nil)
	require.NoError(t, err)
	voxels := buildVoxels([8][2]int{
		{1, 0}, {2, 0},
		{1, 0}, {2, 0},
		{1, 0}, {2, 0},
		{1, 0}, {2, 0},
	})

	opts := Options{RMinPervious: densityOf(0.1), RMinImpervious: densityOf(0.3)}
	box, _, err := Build(testBox, table, archive.GridSize{X: 2, Y: 2, Z: 2}, voxels, opts, nil)
	require.NoError(t, err)

	d, _ := box.Cell(0, 0, 0)
	assert.Equal(t, 0.1, d)
	d, _ = box.Cell(1, 0, 0)
	assert.Equal(t, 0.3, d)

	_, _, err = Build(testBox, table, archive.GridSize{X: 2, Y: 2, Z: 2}, voxels, Options{RMinPervious: densityOf(1.5)}, nil)
	require.ErrorIs(t, err, ErrDensityBound)
}

func densityOf(v float64) *float64 { return &v }

func TestBuild_ExplicitZeroDensity(t *testing.T) {
	table, err := NewUnitTable(testUnits(), []int{5, 6}, RankAscending, nil)
	require.NoError(t, err)
	voxels := buildVoxels([8][2]int{
		{1, 0}, {1, 0}, {1, 0}, {1, 0},
		{1, 0}, {1, 0}, {1, 0}, {1, 0},
	})

	// Zero is an expressible density, not the auto sentinel.
	opts := Options{RMinPervious: densityOf(0)}
	box, _, err := Build(testBox, table, archive.GridSize{X: 2, Y: 2, Z: 2}, voxels, opts, nil)
	require.NoError(t, err)

	d, _ := box.Cell(0, 0, 0)
	assert.Equal(t, 0.0, d)
}

func TestNearestIndex(t *testing.T) {
	// Identity when compute and native resolutions match.
	for i := 0; i < 4; i++ {
		assert.Equal(t, i, nearestIndex(i, 4, 4))
	}
	// Downsampling 4 -> 2: floor scaling.
	assert.Equal(t, 0, nearestIndex(0, 4, 2))
	assert.Equal(t, 0, nearestIndex(1, 4, 2))
	assert.Equal(t, 1, nearestIndex(2, 4, 2))
	assert.Equal(t, 1, nearestIndex(3, 4, 2))
	// Upsampling 2 -> 4 clamps to the last voxel.
	assert.Equal(t, 0, nearestIndex(0, 2, 4))
	assert.Equal(t, 2, nearestIndex(1, 2, 4))
	assert.Equal(t, 3, nearestIndex(3, 3, 4))
}

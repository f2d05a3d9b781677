package archive

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karststack/karstconv/internal/testutil"
)

// buildZip assembles an in-memory archive from member name/content
// pairs.
func buildZip(t *testing.T, members map[string][]byte) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return zr
}

func fixtureMembers(t *testing.T) map[string][]byte {
	t.Helper()
	voxelData := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		voxelData = append(voxelData, "1 1")
	}
	return map[string][]byte{
		"project_box.json":    []byte(`{"width": 100, "height": 100, "min_elevation": 0, "max_elevation": 10}`),
		"dem_resolution.json": []byte(`{"n_cols": 2, "n_rows": 2}`),
		"dem_values.bin":      rasterBytes([]float32{5, 5, 5, 5}),
		"stratigraphy.json":   []byte(`[{"name": "Limestone", "permeability": "Karstified", "stratiUnitId": 5}]`),
		"voxels.txt":          []byte(voxelFile(voxelData)),
		"voxels_units.json":   []byte(`[5]`),
		"poi_1.json":          []byte(`{"x": 50, "y": 50, "z": 3, "poi_id": 10, "catchment": [[0, 0], [100, 0], [100, 100], [0, 100]]}`),
		"gwb_1.json":          []byte(`{"gwb_id": 1, "spring_id": 10}`),
	}
}

func TestDecode(t *testing.T) {
	members := fixtureMembers(t)
	members["fault_1.bin"] = EncodeFault(testMesh())
	b, err := Decode(buildZip(t, members), testutil.NewTestLogger(t))
	require.NoError(t, err)

	// No config.json in the fixture: parameter defaults apply.
	assert.Nil(t, b.RawConfig)

	assert.Equal(t, 100.0, b.ProjectBox.Width)
	assert.Equal(t, 10.0, b.ProjectBox.Depth())
	assert.Equal(t, GridSize{X: 2, Y: 2, Z: 2}, b.ComputeResolution)

	require.Len(t, b.Units, 1)
	assert.Equal(t, "Limestone", b.Units[0].Name)
	assert.Equal(t, []int{5}, b.VoxelUnitIDs)

	require.Len(t, b.Springs, 1)
	assert.Equal(t, 10, b.Springs[0].PoiID)
	require.Len(t, b.Springs[0].Catchment, 4)

	require.Len(t, b.GroundwaterBodies, 1)
	assert.Equal(t, 1, b.GroundwaterBodies[0].GwbID)

	require.Len(t, b.Faults, 1)
	assert.Len(t, b.Faults[0].Vertices, 4)

	assert.Equal(t, DemResolution{NCols: 2, NRows: 2}, b.ResampledDEMResolution)
	assert.Equal(t, 100.0, b.SurfaceResolution.X)
	assert.Equal(t, 100.0, b.SurfaceResolution.Y)

	rank, gwbID := b.Voxels.At(1, 1, 1)
	assert.Equal(t, 1, rank)
	assert.Equal(t, 1, gwbID)
}

func TestDecode_WithConfig(t *testing.T) {
	members := fixtureMembers(t)
	members["config.json"] = []byte(`{"nSinks": 7}`)
	b, err := Decode(buildZip(t, members), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nSinks": 7}`, string(b.RawConfig))
}

func TestDecode_MissingRequiredMember(t *testing.T) {
	for _, member := range []string{
		"project_box.json",
		"dem_resolution.json",
		"dem_values.bin",
		"stratigraphy.json",
		"voxels.txt",
		"voxels_units.json",
		"poi_1.json",
		"gwb_1.json",
	} {
		t.Run(member, func(t *testing.T) {
			members := fixtureMembers(t)
			delete(members, member)
			_, err := Decode(buildZip(t, members), nil)
			require.ErrorIs(t, err, ErrMissingMember)
		})
	}
}

func TestDecode_CorruptVoxels(t *testing.T) {
	members := fixtureMembers(t)
	members["voxels.txt"] = []byte(voxelFile([]string{"1 1"}))
	_, err := Decode(buildZip(t, members), nil)
	require.ErrorIs(t, err, ErrFormat)
	assert.True(t, strings.Contains(err.Error(), "voxels.txt"))
}

func TestDecode_CorruptFault(t *testing.T) {
	members := fixtureMembers(t)
	members["fault_1.bin"] = append(EncodeFault(testMesh()), 1, 2, 3)
	_, err := Decode(buildZip(t, members), nil)
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "fault_1.bin")
}

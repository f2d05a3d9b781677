package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karststack/karstconv/pkg/core"
)

func testMesh() *core.Surface {
	return &core.Surface{
		Vertices: []core.Point3{
			{X: 0, Y: 0, Z: 0},
			{X: 10, Y: 0, Z: 0},
			{X: 0, Y: 10, Z: 5},
			{X: 10, Y: 10, Z: 5},
		},
		Triangles: []core.Triangle{
			{0, 1, 2},
			{1, 3, 2},
		},
	}
}

func TestFaultRoundTrip(t *testing.T) {
	mesh := testMesh()
	raw := EncodeFault(mesh)

	// Declared sizes fix the byte length exactly.
	assert.Len(t, raw, 8+12*len(mesh.Vertices)+12*len(mesh.Triangles))

	decoded, err := DecodeFault(raw)
	require.NoError(t, err)
	assert.Equal(t, mesh, decoded)

	// Re-encoding reproduces the original byte length.
	assert.Len(t, EncodeFault(decoded), len(raw))
}

func TestDecodeFault_TrailingBytes(t *testing.T) {
	raw := append(EncodeFault(testMesh()), 0xFF)
	_, err := DecodeFault(raw)
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestDecodeFault_Truncated(t *testing.T) {
	raw := EncodeFault(testMesh())
	_, err := DecodeFault(raw[:len(raw)-4])
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "truncated")
}

func TestDecodeFault_Empty(t *testing.T) {
	mesh := &core.Surface{Vertices: []core.Point3{}, Triangles: []core.Triangle{}}
	decoded, err := DecodeFault(EncodeFault(mesh))
	require.NoError(t, err)
	assert.Empty(t, decoded.Vertices)
	assert.Empty(t, decoded.Triangles)
}

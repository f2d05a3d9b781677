package archive

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/karststack/karstconv/pkg/core"
)

// Fault payload layout, all little-endian:
//
//	int32 N, N*3 float32 vertex coordinates,
//	int32 M, M*3 int32 triangle indices.
//
// Trailing bytes after the declared blocks signal corruption.

// DecodeFault decodes a packed binary fault mesh.
func DecodeFault(raw []byte) (*core.Surface, error) {
	off := 0
	next := func(n int) ([]byte, error) {
		if off+n > len(raw) {
			return nil, fmt.Errorf("%w: fault payload truncated at byte %d", ErrFormat, off)
		}
		b := raw[off : off+n]
		off += n
		return b, nil
	}

	b, err := next(4)
	if err != nil {
		return nil, err
	}
	nVerts := int(int32(binary.LittleEndian.Uint32(b)))
	if nVerts < 0 {
		return nil, fmt.Errorf("%w: fault payload declares %d vertices", ErrFormat, nVerts)
	}
	verts := make([]core.Point3, nVerts)
	for i := range verts {
		if b, err = next(12); err != nil {
			return nil, err
		}
		verts[i] = core.Point3{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))),
		}
	}

	if b, err = next(4); err != nil {
		return nil, err
	}
	nTris := int(int32(binary.LittleEndian.Uint32(b)))
	if nTris < 0 {
		return nil, fmt.Errorf("%w: fault payload declares %d triangles", ErrFormat, nTris)
	}
	tris := make([]core.Triangle, nTris)
	for i := range tris {
		if b, err = next(12); err != nil {
			return nil, err
		}
		tris[i] = core.Triangle{
			int(int32(binary.LittleEndian.Uint32(b[0:4]))),
			int(int32(binary.LittleEndian.Uint32(b[4:8]))),
			int(int32(binary.LittleEndian.Uint32(b[8:12]))),
		}
	}

	if off != len(raw) {
		return nil, fmt.Errorf("%w: fault payload has %d trailing bytes", ErrFormat, len(raw)-off)
	}
	return &core.Surface{Vertices: verts, Triangles: tris}, nil
}

// EncodeFault packs a mesh back into the binary fault layout.
func EncodeFault(s *core.Surface) []byte {
	out := make([]byte, 0, 8+12*len(s.Vertices)+12*len(s.Triangles))
	out = binary.LittleEndian.AppendUint32(out, uint32(int32(len(s.Vertices))))
	for _, v := range s.Vertices {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v.X)))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v.Y)))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v.Z)))
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(int32(len(s.Triangles))))
	for _, t := range s.Triangles {
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(t[0])))
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(t[1])))
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(t[2])))
	}
	return out
}

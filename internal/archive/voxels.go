package archive

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// VoxelHeader is the first line of voxels.txt: the native bounding box,
// grid dimensions, and the no-value sentinel.
type VoxelHeader struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
	NX, NY, NZ int
	NoValue    int
}

// VoxelGrid is the dense native-resolution grid of (rank, gwb id)
// pairs. Rank 0 is the reserved sky unit.
type VoxelGrid struct {
	NX, NY, NZ int
	rank       []int
	gwb        []int
}

// NewVoxelGrid allocates a grid filled with the given sentinel.
func NewVoxelGrid(nx, ny, nz, fill int) *VoxelGrid {
	n := nx * ny * nz
	g := &VoxelGrid{NX: nx, NY: ny, NZ: nz, rank: make([]int, n), gwb: make([]int, n)}
	for i := range g.rank {
		g.rank[i] = fill
		g.gwb[i] = fill
	}
	return g
}

func (g *VoxelGrid) index(ix, iy, iz int) int { return ix + g.NX*(iy+g.NY*iz) }

// At returns the (rank, gwb id) pair of voxel (ix, iy, iz).
func (g *VoxelGrid) At(ix, iy, iz int) (rank, gwbID int) {
	i := g.index(ix, iy, iz)
	return g.rank[i], g.gwb[i]
}

// Set assigns the (rank, gwb id) pair of voxel (ix, iy, iz).
func (g *VoxelGrid) Set(ix, iy, iz, rank, gwbID int) {
	i := g.index(ix, iy, iz)
	g.rank[i] = rank
	g.gwb[i] = gwbID
}

// ParseVoxels decodes the voxel text format: a 10-token KEY=value
// header line, a column-label line, then one "rank gwb_id" pair per
// voxel in row-major order with X varying fastest. The data line count
// must equal nx*ny*nz exactly.
func ParseVoxels(r io.Reader) (VoxelHeader, *VoxelGrid, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return VoxelHeader{}, nil, fmt.Errorf("read voxel lines: %w", err)
	}
	if len(lines) < 3 {
		return VoxelHeader{}, nil, fmt.Errorf("%w: voxel file must have at least 3 lines", ErrFormat)
	}

	hdr, err := parseVoxelHeader(lines[0])
	if err != nil {
		return VoxelHeader{}, nil, err
	}

	// Line 1 is the "rank gwb_id" column-label line; data starts at 2.
	want := hdr.NX * hdr.NY * hdr.NZ
	got := len(lines) - 2
	if want != got {
		return VoxelHeader{}, nil, fmt.Errorf("%w: voxel count mismatch: header says %d, found %d data lines",
			ErrFormat, want, got)
	}

	grid := NewVoxelGrid(hdr.NX, hdr.NY, hdr.NZ, hdr.NoValue)
	for i := 0; i < want; i++ {
		parts := strings.Fields(lines[2+i])
		if len(parts) != 2 {
			return VoxelHeader{}, nil, fmt.Errorf("%w: voxel data line %d: expected 2 tokens, got %d",
				ErrFormat, 2+i, len(parts))
		}
		rank, err := strconv.Atoi(parts[0])
		if err != nil {
			return VoxelHeader{}, nil, fmt.Errorf("%w: voxel data line %d: bad rank %q", ErrFormat, 2+i, parts[0])
		}
		gwbID, err := strconv.Atoi(parts[1])
		if err != nil {
			return VoxelHeader{}, nil, fmt.Errorf("%w: voxel data line %d: bad gwb id %q", ErrFormat, 2+i, parts[1])
		}
		ix := i % hdr.NX
		iy := (i / hdr.NX) % hdr.NY
		iz := i / (hdr.NX * hdr.NY)
		grid.Set(ix, iy, iz, rank, gwbID)
	}
	return hdr, grid, nil
}

func parseVoxelHeader(line string) (VoxelHeader, error) {
	parts := strings.Fields(line)
	if len(parts) != 10 {
		return VoxelHeader{}, fmt.Errorf("%w: voxel header: expected 10 tokens, got %d", ErrFormat, len(parts))
	}
	vals := make([]float64, 10)
	for i, p := range parts {
		_, value, ok := strings.Cut(p, "=")
		if !ok {
			return VoxelHeader{}, fmt.Errorf("%w: voxel header token %q: missing '='", ErrFormat, p)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return VoxelHeader{}, fmt.Errorf("%w: voxel header token %q: %v", ErrFormat, p, err)
		}
		vals[i] = v
	}
	return VoxelHeader{
		XMin: vals[0], XMax: vals[1],
		YMin: vals[2], YMax: vals[3],
		ZMin: vals[4], ZMax: vals[5],
		NX: int(vals[6]), NY: int(vals[7]), NZ: int(vals[8]),
		NoValue: int(vals[9]),
	}, nil
}

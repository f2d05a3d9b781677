// Package archive decodes the vendor geological export bundle: a ZIP
// whose members mix JSON metadata, a raw float32 DEM raster, a custom
// voxel text grid, and packed binary fault meshes.
//
// Decode reads every member into typed structures and derives the
// resampled DEM the rest of the pipeline computes against. All format
// violations are fatal and name the offending member.
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/karststack/karstconv/pkg/core"
)

// Sentinel errors for the format-error taxonomy.
var (
	ErrMissingMember = errors.New("required archive member missing")
	ErrFormat        = errors.New("malformed archive member")
)

// ProjectBox is the domain geometry as exported: a flat footprint plus
// an elevation range.
type ProjectBox struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	MinElevation float64 `json:"min_elevation"`
	MaxElevation float64 `json:"max_elevation"`
}

// Depth is the vertical extent of the box.
func (b ProjectBox) Depth() float64 { return b.MaxElevation - b.MinElevation }

// DemResolution is a raster size in cells.
type DemResolution struct {
	NCols int `json:"n_cols"`
	NRows int `json:"n_rows"`
}

// GeologicalUnit is one stratigraphic layer declaration. The export
// writes these with camelCase keys.
type GeologicalUnit struct {
	Name         string            `json:"name"`
	Permeability core.Permeability `json:"permeability"`
	StratiUnitID int               `json:"stratiUnitId"`
}

// SpringRecord is a poi_* member: the spring location plus its
// catchment boundary ring.
type SpringRecord struct {
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Z         float64      `json:"z"`
	PoiID     int          `json:"poi_id"`
	Catchment [][2]float64 `json:"catchment"`
}

// GWBRecord is a gwb_* member associating a groundwater body with the
// spring it drains to.
type GWBRecord struct {
	GwbID    int `json:"gwb_id"`
	SpringID int `json:"spring_id"`
}

// GridSize is a 3D cell count.
type GridSize struct {
	X int
	Y int
	Z int
}

// Bundle is the fully decoded archive.
type Bundle struct {
	// RawConfig is the config.json member, nil when absent. Parameter
	// parsing and override layering is the config package's concern.
	RawConfig []byte

	ProjectBox    ProjectBox
	DEMResolution DemResolution

	// DEM is the raster decimated to the compute resolution and
	// flipped so row 0 is the minimum-Y edge.
	DEM                    [][]float64
	ResampledDEMResolution DemResolution
	// SurfaceResolution is the horizontal cell size of the resampled
	// DEM in box units, used for interpolation bounds checks.
	SurfaceResolution core.Point2

	Units        []GeologicalUnit
	VoxelHeader  VoxelHeader
	Voxels       *VoxelGrid
	VoxelUnitIDs []int

	// ComputeResolution is the simulation grid size; the export pins it
	// to the native voxel resolution.
	ComputeResolution GridSize

	Faults            []*core.Surface
	Springs           []SpringRecord
	GroundwaterBodies []GWBRecord
}

// Open reads and decodes the bundle at path.
func Open(path string, logger *slog.Logger) (*Bundle, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer rc.Close()
	return Decode(&rc.Reader, logger)
}

// Decode decodes every member of the archive. Members are read within
// the lifetime of r; the returned bundle holds no reference to it.
func Decode(r *zip.Reader, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Bundle{}

	if raw, err := readMember(r, "config.json"); err == nil {
		b.RawConfig = raw
	} else if errors.Is(err, ErrMissingMember) {
		logger.Warn("archive has no config.json, using parameter defaults")
	} else {
		return nil, err
	}

	if err := readJSONMember(r, "project_box.json", &b.ProjectBox); err != nil {
		return nil, err
	}
	if err := readJSONMember(r, "dem_resolution.json", &b.DEMResolution); err != nil {
		return nil, err
	}
	if err := readJSONMember(r, "stratigraphy.json", &b.Units); err != nil {
		return nil, err
	}
	if err := readJSONMember(r, "voxels_units.json", &b.VoxelUnitIDs); err != nil {
		return nil, err
	}

	rawDEM, err := readMember(r, "dem_values.bin")
	if err != nil {
		return nil, err
	}
	logger.Info("loaded DEM raster", "bytes", len(rawDEM))

	voxelsRaw, err := openMember(r, "voxels.txt")
	if err != nil {
		return nil, err
	}
	b.VoxelHeader, b.Voxels, err = ParseVoxels(voxelsRaw)
	voxelsRaw.Close()
	if err != nil {
		return nil, fmt.Errorf("voxels.txt: %w", err)
	}
	b.ComputeResolution = GridSize{X: b.VoxelHeader.NX, Y: b.VoxelHeader.NY, Z: b.VoxelHeader.NZ}
	logger.Info("loaded voxel grid",
		"nx", b.VoxelHeader.NX, "ny", b.VoxelHeader.NY, "nz", b.VoxelHeader.NZ)

	for _, f := range r.File {
		switch {
		case strings.HasPrefix(f.Name, "poi_"):
			var s SpringRecord
			if err := readJSONFile(f, &s); err != nil {
				return nil, err
			}
			b.Springs = append(b.Springs, s)
		case strings.HasPrefix(f.Name, "gwb_"):
			var g GWBRecord
			if err := readJSONFile(f, &g); err != nil {
				return nil, err
			}
			b.GroundwaterBodies = append(b.GroundwaterBodies, g)
		case strings.HasPrefix(f.Name, "fault_"):
			raw, err := readFile(f)
			if err != nil {
				return nil, err
			}
			mesh, err := DecodeFault(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			logger.Info("loaded fault mesh", "member", f.Name,
				"vertices", len(mesh.Vertices), "triangles", len(mesh.Triangles))
			b.Faults = append(b.Faults, mesh)
		}
	}
	if len(b.Springs) == 0 {
		return nil, fmt.Errorf("%w: poi_* (need at least one spring)", ErrMissingMember)
	}
	if len(b.GroundwaterBodies) == 0 {
		return nil, fmt.Errorf("%w: gwb_* (need at least one groundwater body)", ErrMissingMember)
	}
	logger.Info("loaded point records",
		"springs", len(b.Springs), "groundwater_bodies", len(b.GroundwaterBodies), "faults", len(b.Faults))

	grid, err := DecodeDEM(rawDEM, b.DEMResolution)
	if err != nil {
		return nil, fmt.Errorf("dem_values.bin: %w", err)
	}
	b.DEM, err = ResampleDEM(grid, GridSize{X: b.ComputeResolution.X, Y: b.ComputeResolution.Y})
	if err != nil {
		return nil, fmt.Errorf("dem_values.bin: %w", err)
	}
	b.ResampledDEMResolution = DemResolution{NCols: len(b.DEM[0]), NRows: len(b.DEM)}
	b.SurfaceResolution = core.Point2{
		X: b.ProjectBox.Width / float64(b.ResampledDEMResolution.NCols-1),
		Y: b.ProjectBox.Height / float64(b.ResampledDEMResolution.NRows-1),
	}
	logger.Info("resampled DEM",
		"rows", b.ResampledDEMResolution.NRows, "cols", b.ResampledDEMResolution.NCols)

	return b, nil
}

func findMember(r *zip.Reader, name string) (*zip.File, error) {
	for _, f := range r.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingMember, name)
}

func openMember(r *zip.Reader, name string) (io.ReadCloser, error) {
	f, err := findMember(r, name)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", name, err)
	}
	return rc, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", f.Name, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", f.Name, err)
	}
	return raw, nil
}

func readMember(r *zip.Reader, name string) ([]byte, error) {
	f, err := findMember(r, name)
	if err != nil {
		return nil, err
	}
	return readFile(f)
}

func readJSONFile(f *zip.File, v any) error {
	raw, err := readFile(f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFormat, f.Name, err)
	}
	return nil
}

func readJSONMember(r *zip.Reader, name string, v any) error {
	f, err := findMember(r, name)
	if err != nil {
		return err
	}
	return readJSONFile(f, v)
}

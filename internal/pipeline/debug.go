package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/karststack/karstconv/pkg/core"
)

// writeDebugDumps writes every derived structure to DebugDir in the
// simulator's text formats, mirroring what the simulator will consume.
func (p *Pipeline) writeDebugDumps(in *core.Input) error {
	if err := os.MkdirAll(p.debugDir, 0o750); err != nil {
		return fmt.Errorf("create debug directory: %w", err)
	}

	dumps := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"debug_project_box.txt", in.Box.WriteText},
		{"debug_surface.txt", in.Topography.WriteText},
		{"debug_sinks.txt", func(w io.Writer) error { return core.WriteSinks(w, in.Sinks) }},
		{"debug_springs.txt", func(w io.Writer) error { return core.WriteSprings(w, in.Springs) }},
		{"debug_connectivity_matrix.txt", in.Connectivity.WriteText},
	}
	for i, wt := range in.WaterTables {
		dumps = append(dumps, struct {
			name  string
			write func(io.Writer) error
		}{fmt.Sprintf("debug_water_table_%d.txt", i+1), wt.WriteText})
	}
	for i, f := range in.InceptionSurfaces {
		dumps = append(dumps, struct {
			name  string
			write func(io.Writer) error
		}{fmt.Sprintf("debug_inception_surface_%d.txt", i+1), f.WriteText})
	}

	for _, d := range dumps {
		if err := writeDumpFile(filepath.Join(p.debugDir, d.name), d.write); err != nil {
			return err
		}
	}
	p.logger.Debug("wrote debug dumps", "dir", p.debugDir, "files", len(dumps))
	return nil
}

func writeDumpFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create debug dump %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write debug dump %s: %w", path, err)
	}
	return f.Close()
}

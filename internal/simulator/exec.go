// Package simulator adapts an external KarstNSim-compatible engine
// binary to the core.Simulator interface. The engine itself is an
// opaque collaborator: the adapter hands it the derived structures in
// text form and reads back the generated conduit segments.
package simulator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karststack/karstconv/pkg/core"
)

// Exec invokes an external simulator command. The input bundle is
// written to a temporary directory as text files; the command receives
// the directory and writes "seg x1 y1 z1 x2 y2 z2" lines on stdout.
type Exec struct {
	// Command is the simulator binary to run.
	Command string
	Logger  *slog.Logger
}

// NewExec creates an exec-backed simulator. A nil logger discards
// output.
func NewExec(command string, logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exec{Command: command, Logger: logger}
}

// Simulate writes the input bundle and runs the engine. A run that
// produces no segments yields a nil result, which the pipeline treats
// as a simulation failure.
func (e *Exec) Simulate(ctx context.Context, in *core.Input) (*core.Result, error) {
	dir, err := os.MkdirTemp("", "karstconv-sim-")
	if err != nil {
		return nil, fmt.Errorf("create simulator input directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := writeInput(dir, in); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.Command,
		"--input", dir,
		"--name", in.Config.NetworkName,
		"--seed", strconv.FormatInt(in.Config.Seed, 10),
	)
	cmd.Stderr = os.Stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("simulator stdout: %w", err)
	}
	e.Logger.Info("running external simulator", "command", e.Command, "input_dir", dir)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start simulator %s: %w", e.Command, err)
	}

	res, parseErr := parseSegments(out)
	if parseErr != nil {
		// Wait requires the pipe to be read to EOF; keep draining so
		// the engine never blocks on a full stdout buffer.
		_, _ = io.Copy(io.Discard, out)
	}
	if err := cmd.Wait(); err != nil {
		if parseErr != nil {
			return nil, parseErr
		}
		return nil, fmt.Errorf("simulator %s: %w", e.Command, err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if len(res.Segments) == 0 {
		return nil, nil
	}
	return res, nil
}

func writeInput(dir string, in *core.Input) error {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"project_box.txt", in.Box.WriteText},
		{"topo_surface.txt", in.Topography.WriteText},
		{"sinks.txt", func(w io.Writer) error { return core.WriteSinks(w, in.Sinks) }},
		{"springs.txt", func(w io.Writer) error { return core.WriteSprings(w, in.Springs) }},
		{"connectivity_matrix.txt", in.Connectivity.WriteText},
	}
	for i, wt := range in.WaterTables {
		files = append(files, struct {
			name  string
			write func(io.Writer) error
		}{fmt.Sprintf("water_table_%d.txt", i+1), wt.WriteText})
	}
	for i, f := range in.InceptionSurfaces {
		files = append(files, struct {
			name  string
			write func(io.Writer) error
		}{fmt.Sprintf("inception_surface_%d.txt", i+1), f.WriteText})
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create simulator input %s: %w", path, err)
		}
		if err := f.write(out); err != nil {
			out.Close()
			return fmt.Errorf("write simulator input %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close simulator input %s: %w", path, err)
		}
	}
	return nil
}

func parseSegments(r io.Reader) (*core.Result, error) {
	res := &core.Result{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.HasPrefix(line, "seg ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 7 {
			return nil, fmt.Errorf("malformed simulator segment line %q", line)
		}
		vals := make([]float64, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed simulator segment line %q: %v", line, err)
			}
			vals[i] = v
		}
		res.Segments = append(res.Segments, core.Segment{
			Start: core.Point3{X: vals[0], Y: vals[1], Z: vals[2]},
			End:   core.Point3{X: vals[3], Y: vals[4], Z: vals[5]},
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read simulator output: %w", err)
	}
	return res, nil
}

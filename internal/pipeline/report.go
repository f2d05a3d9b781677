package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/karststack/karstconv/internal/config"
	"github.com/karststack/karstconv/pkg/core"
)

type reportMetadata struct {
	GenerationTime      string         `json:"generationTime"`
	GenerationDurationS float64        `json:"generationDurationS"`
	ComputeResolution   map[string]int `json:"computeResolution"`
}

type reportHeader struct {
	Metadata reportMetadata `json:"metadata"`
	Config   *config.Params `json:"config"`
}

// WriteReport writes the run report: a JSON metadata header echoing the
// effective configuration, then the generated conduit segments.
func WriteReport(w io.Writer, params *config.Params, res *core.Result, info *RunInfo) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, "# Run info"); err != nil {
		return err
	}
	header := reportHeader{
		Metadata: reportMetadata{
			GenerationTime:      info.GenerationTime.Format(time.RFC3339),
			GenerationDurationS: info.Duration.Seconds(),
			ComputeResolution: map[string]int{
				"x": info.ComputeResolution.X,
				"y": info.ComputeResolution.Y,
				"z": info.ComputeResolution.Z,
			},
		},
		Config: params,
	}
	enc := json.NewEncoder(bw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("encode report header: %w", err)
	}

	if _, err := fmt.Fprintln(bw, "# Data"); err != nil {
		return err
	}
	for _, s := range res.Segments {
		if _, err := fmt.Fprintf(bw, "seg %g %g %g %g %g %g\n",
			s.Start.X, s.Start.Y, s.Start.Z, s.End.X, s.End.Y, s.End.Z); err != nil {
			return err
		}
	}
	return bw.Flush()
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karststack/karstconv/internal/archive"
	"github.com/karststack/karstconv/internal/config"
	"github.com/karststack/karstconv/internal/pipeline"
	"github.com/karststack/karstconv/internal/simulator"
)

// ConvertOptions holds options for the convert command.
type ConvertOptions struct {
	Output       string
	Debug        bool
	DebugDir     string
	SimulatorCmd string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	opts := &ConvertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <bundle.zip>",
		Short: "Convert an export bundle and run the simulation",
		Long: `Decode a VisualKarsys export bundle, derive the simulator inputs,
run the karst-conduit simulation, and write the run report.

Simulation parameters default to the bundle's config.json and can be
overridden with KARSTCONV_* environment variables or the flags below.`,
		Example: `  # Convert with bundle defaults
  karstconv convert export.zip

  # Override the seed and sink count
  karstconv convert export.zip --seed 7 --n-sinks 250

  # Keep simulator-format dumps of every derived structure
  karstconv convert export.zip --debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "output.txt", "Path to the report file")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Write derived structures in simulator-compatible text form")
	cmd.Flags().StringVar(&opts.DebugDir, "debug-dir", ".", "Directory for --debug dumps")
	cmd.Flags().StringVar(&opts.SimulatorCmd, "simulator", "karstnsim", "Simulator command to invoke")

	cmd.Flags().String("name", "", "Simulation name")
	cmd.Flags().Int64("seed", 0, "Random seed")
	cmd.Flags().Int("k-pts", 0, "Number of k-points for the simulation")
	cmd.Flags().Float64("cohesion-factor", 0, "Cohesion factor controlling karst fraction")
	cmd.Flags().Int("n-sinks", 0, "Number of sinks to generate")
	cmd.Flags().String("search-radius", "", "Neighbor search radius (number) or 'auto'")
	cmd.Flags().Float64("inception-surface-constraint-weight", 0, "Weight applied to inception surface constraints")
	cmd.Flags().String("max-inception-surface-distance", "", "Maximum distance to inception surface (number) or 'auto'")
	cmd.Flags().Float64("density-sampling-modifier", 0, "Sampling modifier applied in low permeability zones")
	cmd.Flags().String("r-min-pervious", "", "Base sampling density (number) or 'auto'")
	cmd.Flags().String("r-min-impervious", "", "Sparse sampling density (number) or 'auto'")

	return cmd
}

func runConvert(cmd *cobra.Command, bundlePath string, opts *ConvertOptions) error {
	if !strings.EqualFold(filepath.Ext(bundlePath), ".zip") {
		return fmt.Errorf("%s is not a ZIP file", bundlePath)
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := newLogger(verbose)

	bundle, err := archive.Open(bundlePath, logger)
	if err != nil {
		return err
	}

	params, err := config.Load(bundle.RawConfig, cmd.Flags())
	if err != nil {
		return err
	}
	logger.Info("simulation configuration",
		"name", params.Name, "seed", params.Seed, "n_sinks", params.NSinks)

	debugDir := ""
	if opts.Debug {
		debugDir = opts.DebugDir
	}

	p := pipeline.New(pipeline.Config{
		Logger:    logger,
		Simulator: simulator.NewExec(opts.SimulatorCmd, logger),
		Params:    params,
		DebugDir:  debugDir,
	})

	res, info, err := p.Run(cmd.Context(), bundle)
	if err != nil {
		return err
	}

	out, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("create report %s: %w", opts.Output, err)
	}
	if err := pipeline.WriteReport(out, params, res, info); err != nil {
		out.Close()
		return fmt.Errorf("write report %s: %w", opts.Output, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close report %s: %w", opts.Output, err)
	}

	logger.Info("results written", "path", opts.Output)
	return nil
}

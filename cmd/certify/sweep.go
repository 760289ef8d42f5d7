package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/openfluke/intervalnet/config"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepRadii []float64

// sweepCmd verifies the same batch at several radii
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Report robust loss and error over a list of radii",
	Long: `Runs one verification per radius concurrently and prints a table sorted
by radius. Radii come from verify.radii in the config or --radii.

Example:
  certify sweep -m model.json -d inputs.json --radii 0,0.01,0.02,0.05`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("radii") {
			cfg.Verify.Radii = sweepRadii
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runSweep(cfg, cmd.OutOrStdout())
	},
}

func init() {
	sweepCmd.Flags().Float64SliceVar(&sweepRadii, "radii", nil, "Comma separated radii")
}

// sweepPoint is one row of the sweep table.
type sweepPoint struct {
	Epsilon     float64
	Loss        float64
	RobustError float64
	ErrorRows   int
}

// sweep runs every radius on its own goroutine. Each run builds its own
// domain; the transfer network is shared read-only.
func sweep(s *session, radii []float64, workers int) ([]sweepPoint, error) {
	p := pool.NewWithResults[sweepPoint]().WithErrors().WithMaxGoroutines(workers)
	for _, eps := range radii {
		p.Go(func() (sweepPoint, error) {
			res, err := s.analyze(eps)
			if err != nil {
				return sweepPoint{}, fmt.Errorf("epsilon %g: %w", eps, err)
			}
			logger.Debug("sweep point done", zap.Float64("epsilon", eps), zap.Float64("robust_error", res.RobustError))
			return sweepPoint{
				Epsilon:     eps,
				Loss:        res.Loss,
				RobustError: res.RobustError,
				ErrorRows:   res.Stats.ErrorRows,
			}, nil
		})
	}

	points, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Epsilon < points[j].Epsilon })
	return points, nil
}

func runSweep(c *config.Config, out io.Writer) error {
	s, err := openSession(c, false)
	if err != nil {
		return err
	}
	if len(c.Verify.Radii) == 0 {
		return fmt.Errorf("no radii to sweep")
	}

	points, err := sweep(s, c.Verify.Radii, c.Verify.SweepWorkers)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "EPSILON\tMETHOD\tROBUST LOSS\tROBUST ERROR\tERROR ROWS\n")
	for _, pt := range points {
		fmt.Fprintf(w, "%g\t%s\t%.6f\t%.4f\t%d\n", pt.Epsilon, s.method, pt.Loss, pt.RobustError, pt.ErrorRows)
	}
	return w.Flush()
}

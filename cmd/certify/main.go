package main

import (
	"fmt"
	"os"

	"github.com/openfluke/intervalnet/config"
	"github.com/openfluke/intervalnet/gpu"
	"github.com/openfluke/intervalnet/interval"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	modelPath  string
	modelID    string
	dataPath   string
	epsilon    float64
	method     string
	backend    string

	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "certify",
	Short: "Certify robustness of ReLU networks with interval analysis",
	Long: `certify propagates an L-infinity ball around every input through a
feed-forward network and reports the worst-case robust loss and the robust
error, the fraction of samples whose prediction may flip inside the ball.

Two domains are available: naive (independent box bounds) and symbolic
(affine forms with relaxation error terms, tighter).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = buildLogger(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		interval.SetLogger(logger)
		gpu.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model.Path = modelPath
	}
	if flags.Changed("model-id") {
		cfg.Model.ID = modelID
	}
	if flags.Changed("data") {
		cfg.Data.Path = dataPath
	}
	if flags.Changed("epsilon") {
		cfg.Verify.Epsilon = epsilon
	}
	if flags.Changed("method") {
		cfg.Verify.Method = method
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
}

func buildLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "intervalnet.yaml", "Config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", "", "Model bundle path")
	rootCmd.PersistentFlags().StringVar(&modelID, "model-id", "", "Model id inside the bundle")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "Input batch JSON path")
	rootCmd.PersistentFlags().Float64VarP(&epsilon, "epsilon", "e", 0, "Perturbation radius")
	rootCmd.PersistentFlags().StringVar(&method, "method", "", "Propagation method: naive or symbolic")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Linear algebra backend: cpu or gpu")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

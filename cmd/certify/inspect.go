package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/openfluke/intervalnet/config"
	"github.com/openfluke/intervalnet/nn"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// inspectCmd prints the model blueprint
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the layer blueprint of a model bundle",
	Long: `Prints every layer with its kind, parameter count and shapes as JSON.
Layers of a kind the verifier does not recognize (dropout, batchnorm, ...)
keep their type name, are marked "supported": false and are skipped by
verify and sweep.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cfg, cmd.OutOrStdout())
	},
}

func runInspect(c *config.Config, out io.Writer) error {
	model, err := nn.LoadModel(c.Model.Path, c.Model.ID)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	id := c.Model.ID
	if id == "" {
		id = c.Model.Path
	}
	blueprint := nn.ExtractNetworkBlueprint(model, id)
	if err := model.Validate(); err != nil {
		logger.Warn("model does not validate", zap.Error(err))
	}
	if skipped := model.Unsupported(); len(skipped) > 0 {
		logger.Warn("unsupported layers", zap.Strings("types", skipped))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(blueprint)
}

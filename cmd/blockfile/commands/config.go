package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/blockfile/internal/cli/output"
	"github.com/marmos91/blockfile/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and environment overrides.

The output is YAML unless --output json is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		if p.Format() == output.FormatJSON {
			return output.PrintJSON(cmd.OutOrStdout(), cfg)
		}
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.MustLoad(configFile)
		if err != nil {
			return err
		}

		displayPath := configFile
		if displayPath == "" {
			displayPath = config.GetDefaultConfigPath()
		}

		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		p.Printf("Configuration file: %s\n", displayPath)
		p.Printf("Validation: OK\n\n")
		return output.PrintKeyValues(cmd.OutOrStdout(), [][2]string{
			{"Storage", cfg.Storage.Path},
			{"Block length", cfg.Storage.BlockLen.String()},
			{"Catalog", cfg.Catalog.Path},
			{"Log level", cfg.Logging.Level},
		})
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

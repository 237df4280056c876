package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/blockfile/internal/cli/prompt"
	"github.com/marmos91/blockfile/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default settings.

The file is written to --config, or to $XDG_CONFIG_HOME/blockfile/config.yaml.

Examples:
  # Create the default config
  blockfile init

  # Create a config at a custom location, overwriting it if present
  blockfile init --config ./blockfile.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite %s", path), initForce)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not overwriting %s", path)
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}

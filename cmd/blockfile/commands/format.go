package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/blockfile/internal/bytesize"
	"github.com/marmos91/blockfile/internal/cli/prompt"
	"github.com/marmos91/blockfile/pkg/blockfile"
)

var (
	formatBlockLen string
	formatWipe     bool
	formatForce    bool
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create or check the storage file",
	Long: `Create the storage file if it does not exist, or check that an existing
file is well formed and uses the configured block length.

With --wipe the storage file and the catalog are removed first. This
destroys all stored data.

Examples:
  # Create or check the configured storage file
  blockfile format

  # Start over with 64KiB blocks
  blockfile format --wipe --block-len 64Ki`,
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().StringVar(&formatBlockLen, "block-len", "", "Block length override (e.g. 4Ki, 65536)")
	formatCmd.Flags().BoolVar(&formatWipe, "wipe", false, "Remove existing data before formatting")
	formatCmd.Flags().BoolVarP(&formatForce, "force", "f", false, "Do not ask for confirmation with --wipe")
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if formatBlockLen != "" {
		bl, err := bytesize.Parse(formatBlockLen)
		if err != nil {
			return fmt.Errorf("--block-len: %w", err)
		}
		cfg.Storage.BlockLen = bl
	}

	if formatWipe {
		if !formatForce {
			ok, err := prompt.ConfirmDanger(
				fmt.Sprintf("Delete %s and its catalog", cfg.Storage.Path), "wipe")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("format aborted")
			}
		}
		if err := os.Remove(cfg.Storage.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove storage file: %w", err)
		}
		if err := os.RemoveAll(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("remove catalog: %w", err)
		}
	}

	ec, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ec.Path), 0755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	engine, err := blockfile.Open(ec)
	if err != nil {
		return err
	}
	defer engine.Close()

	out, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	st, err := engine.Stat()
	if err != nil {
		return err
	}
	return out.Print(statsView{Path: engine.Path(), Stats: st})
}

// Package commands implements the blockfile command-line interface.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Global flags
var (
	configFile   string
	outputFormat string
	noColor      bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "blockfile",
	Short: "Block-structured single-file storage",
	Long: `blockfile stores payloads in fixed-size blocks inside a single file.

Payloads can be addressed by name (put, get, rm, ls) through a catalog kept
next to the storage file, or by raw block index (write, read, delete).

Configuration is read from $XDG_CONFIG_HOME/blockfile/config.yaml unless
--config is given. Environment variables prefixed with BLOCKFILE_ override
file values, e.g. BLOCKFILE_STORAGE_BLOCK_LEN=64Ki.

Use "blockfile [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/blockfile/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

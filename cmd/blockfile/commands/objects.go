package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/pkg/catalog"
)

var (
	getOutput string
	rmErase   bool
)

var putCmd = &cobra.Command{
	Use:   "put <name> [file|-]",
	Short: "Store a payload under a name",
	Long: `Store the contents of a file, or stdin, under a name.

Examples:
  blockfile put report.pdf ./report.pdf
  tar c ./docs | blockfile put docs.tar -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Write a stored payload to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var rmCmd = &cobra.Command{
	Use:   "rm <name>...",
	Short: "Remove stored payloads and free their blocks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var lsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List stored payloads",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "file", "f", "", "Write to file instead of stdout")
	rmCmd.Flags().BoolVar(&rmErase, "erase", false, "Zero-fill the freed blocks")
}

func runPut(cmd *cobra.Command, args []string) error {
	name := args[0]
	payload, err := readInput(cmd, args[1:])
	if err != nil {
		return err
	}

	s, err := openSession(cmd, sessionOptions{catalog: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if _, err := s.catalog.Get(ctx, name); err == nil {
		return fmt.Errorf("%w: %s", catalog.ErrExists, name)
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return err
	}

	indices, err := s.engine.Write(ctx, payload)
	if err != nil {
		return err
	}

	entry := catalog.Entry{
		Name:    name,
		Indices: indices,
		Size:    int64(len(payload)),
		Created: time.Now().UTC(),
	}
	if err := s.catalog.Put(ctx, entry); err != nil {
		if derr := s.engine.Delete(ctx, indices); derr != nil {
			logger.Error("Failed to free blocks of unrecorded payload",
				logger.KeyBlocks, len(indices), logger.Err(derr))
		}
		return err
	}

	return s.out.Print(entriesView{&entry})
}

func runGet(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{catalog: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	entry, err := s.catalog.Get(ctx, args[0])
	if err != nil {
		return err
	}

	w, err := openOutput(cmd, getOutput)
	if err != nil {
		return err
	}

	var written int64
	for chunk, err := range s.engine.ReadStream(ctx, entry.Indices) {
		if err != nil {
			_ = w.Close()
			return err
		}
		n, werr := w.Write(chunk)
		written += int64(n)
		if werr != nil {
			_ = w.Close()
			return fmt.Errorf("write output: %w", werr)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	if written != entry.Size {
		return fmt.Errorf("%s: read %d bytes, catalog records %d", entry.Name, written, entry.Size)
	}
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{catalog: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	var failed []string
	for _, name := range args {
		entry, err := s.catalog.Delete(ctx, name)
		if err != nil {
			s.out.Warning(fmt.Sprintf("Skipped %s: %v", name, err))
			failed = append(failed, name)
			continue
		}

		free := s.engine.Delete
		if rmErase {
			free = s.engine.Erase
		}
		if err := free(ctx, entry.Indices); err != nil {
			return fmt.Errorf("%s removed from catalog but its blocks were not freed: %w", name, err)
		}
		s.out.Success(fmt.Sprintf("Removed %s (%d blocks)", name, len(entry.Indices)))
	}

	if len(failed) > 0 {
		return fmt.Errorf("could not remove: %s", strings.Join(failed, ", "))
	}
	return nil
}

func runLs(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{catalog: true})
	if err != nil {
		return err
	}
	defer s.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	entries, err := s.catalog.List(cmd.Context(), prefix)
	if err != nil {
		return err
	}
	return s.out.Print(entriesView(entries))
}

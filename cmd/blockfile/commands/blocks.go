package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	readOutput  string
	deleteErase bool
)

var writeCmd = &cobra.Command{
	Use:   "write [file|-]",
	Short: "Store a payload and print its block indices",
	Long: `Store the contents of a file, or stdin, without recording a name.

The printed indices are the only way to read the payload back; keep them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWrite,
}

var readCmd = &cobra.Command{
	Use:   "read <index>...",
	Short: "Write the payload of blocks to stdout or a file",
	Long: `Read blocks by index and write their payloads, concatenated in the given
order. A free block contributes nothing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRead,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <index>...",
	Short: "Free blocks by index",
	Long: `Free blocks by index. Blocks are processed in the given order and blocks
freed before a failing index stay freed.

Blocks that belong to a named payload should be removed with "rm" instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	readCmd.Flags().StringVarP(&readOutput, "file", "f", "", "Write to file instead of stdout")
	deleteCmd.Flags().BoolVar(&deleteErase, "erase", false, "Zero-fill the freed blocks")
}

func runWrite(cmd *cobra.Command, args []string) error {
	payload, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	indices, err := s.engine.Write(cmd.Context(), payload)
	if err != nil {
		return err
	}
	return s.out.Print(indicesView{Indices: indices, Bytes: len(payload)})
}

func runRead(cmd *cobra.Command, args []string) error {
	indices, err := parseIndices(args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := openOutput(cmd, readOutput)
	if err != nil {
		return err
	}
	defer w.Close()

	for chunk, err := range s.engine.ReadStream(cmd.Context(), indices) {
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	indices, err := parseIndices(args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	free := s.engine.Delete
	if deleteErase {
		free = s.engine.Erase
	}
	if err := free(cmd.Context(), indices); err != nil {
		return err
	}
	s.out.Success(fmt.Sprintf("Freed %d blocks", len(indices)))
	return nil
}

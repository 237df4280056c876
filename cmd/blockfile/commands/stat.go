package commands

import (
	"github.com/spf13/cobra"
)

var statCatalog bool

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show block usage",
	Long: `Show block usage of the storage file.

With --catalog the object count is shown too, along with the number of
occupied blocks no object refers to. Such blocks are left behind when a
put is interrupted between storing the payload and recording its name.`,
	RunE: runStat,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List every block with its stored length and owner",
	RunE:  runInspect,
}

func init() {
	statCmd.Flags().BoolVar(&statCatalog, "catalog", false, "Include catalog statistics")
}

func runStat(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{catalog: statCatalog})
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.engine.Stat()
	if err != nil {
		return err
	}
	view := statsView{Path: s.engine.Path(), Stats: st}

	if statCatalog {
		ctx := cmd.Context()
		entries, err := s.catalog.List(ctx, "")
		if err != nil {
			return err
		}
		refs, err := s.catalog.Referenced(ctx)
		if err != nil {
			return err
		}
		blocks, err := s.engine.Inspect(ctx)
		if err != nil {
			return err
		}

		objects := len(entries)
		unreferenced := 0
		for _, b := range blocks {
			if _, ok := refs[b.Index]; !ok && !b.Free {
				unreferenced++
			}
		}
		view.Objects = &objects
		view.Unreferenced = &unreferenced
	}

	return s.out.Print(view)
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{catalog: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	blocks, err := s.engine.Inspect(ctx)
	if err != nil {
		return err
	}
	refs, err := s.catalog.Referenced(ctx)
	if err != nil {
		return err
	}

	view := make(blocksView, len(blocks))
	for i, b := range blocks {
		view[i] = blockView{BlockInfo: b, Owner: refs[b.Index]}
	}
	return s.out.Print(view)
}

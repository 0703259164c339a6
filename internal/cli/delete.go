package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/breaklinks/internal/audit"
	"github.com/mesh-intelligence/breaklinks/internal/dialog"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

func (a *app) newDeleteCmd() *cobra.Command {
	var ignoreClones bool
	cmd := &cobra.Command{
		Use:   "delete <id|list>...",
		Short: "Delete items, deciding first what happens to the links to them",
		Long: "Delete the target items and their descendants. When links point into the\n" +
			"targets the breaking-links dialog runs first; the items are deleted only if\n" +
			"it closes with \"yes\".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			ctrl := a.controller(s, targets, ignoreClones)
			n, err := ctrl.ImpactCount(ctx)
			if err != nil {
				return lookupError(err)
			}
			if n > 0 {
				result, err := a.driveDialog(ctx, a.progressWriter(cmd), ctrl)
				if err != nil {
					return err
				}
				if result != dialog.ResultYes {
					fmt.Fprintln(out, "Nothing deleted.")
					return &exitError{code: exitDialogNo}
				}
			}

			deleted := 0
			for _, id := range targets {
				item, err := s.backend.GetItem(ctx, id)
				if errors.Is(err, types.ErrNotFound) {
					// Already removed with an ancestor listed earlier.
					continue
				}
				if err != nil {
					return lookupError(err)
				}
				if err := s.backend.DeleteItem(ctx, item.ItemID, types.EditOptions{Actor: a.flags.actor}); err != nil {
					return lookupError(err)
				}
				s.audit.Record(a.flags.actor, "Delete item: %s", audit.FormatItem(item))
				deleted++
			}
			fmt.Fprintf(out, "%s Deleted %d items\n", passStyle.Render("✓"), deleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ignoreClones, "ignore-clones", false, "leave links held by clone-source fields")
	return cmd
}

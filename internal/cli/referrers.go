package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// referrerRow is one link into a target subtree.
type referrerRow struct {
	TargetID   string `json:"target_id"`
	TargetPath string `json:"target_path"`
	SourceID   string `json:"source_id"`
	SourcePath string `json:"source_path,omitempty"`
	FieldID    string `json:"field_id"`
	Clone      bool   `json:"clone,omitempty"`
}

func (a *app) newReferrersCmd() *cobra.Command {
	var ignoreClones bool
	cmd := &cobra.Command{
		Use:   "referrers <id|list>...",
		Short: "List the links that point into the target subtrees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			rows := []referrerRow{}
			for _, id := range targets {
				target, err := s.backend.GetItem(ctx, id)
				if err != nil {
					return lookupError(err)
				}
				err = walkSubtree(ctx, s.backend, target, func(item *types.Item) error {
					links, err := s.backend.GetReferrers(ctx, item)
					if err != nil {
						return err
					}
					for _, l := range links {
						if ignoreClones && l.IsCloneLink() {
							continue
						}
						row := referrerRow{
							TargetID:   item.ItemID,
							TargetPath: item.Path,
							SourceID:   l.SourceItemID,
							FieldID:    l.SourceFieldID,
							Clone:      l.IsCloneLink(),
						}
						if src, err := s.backend.GetItem(ctx, l.SourceItemID); err == nil {
							row.SourcePath = src.Path
						}
						rows = append(rows, row)
					}
					return nil
				})
				if err != nil {
					return sysError(err)
				}
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No links."))
				return nil
			}
			for _, r := range rows {
				source := r.SourcePath
				if source == "" {
					source = "{" + r.SourceID + "}"
				}
				line := fmt.Sprintf("%s <- %s [%s]", r.TargetPath, source, r.FieldID)
				if r.Clone {
					line += " " + mutedStyle.Render("(clone)")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ignoreClones, "ignore-clones", false, "hide links held by clone-source fields")
	return cmd
}

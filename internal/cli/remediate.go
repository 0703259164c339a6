package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/breaklinks/internal/remediation"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

func (a *app) newRemoveCmd() *cobra.Command {
	var ignoreClones bool
	cmd := &cobra.Command{
		Use:   "remove <id|list>...",
		Short: "Remove every link to the targets and their descendants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemediation(cmd, args, remediation.Options{Mode: types.ModeRemove, IgnoreClones: ignoreClones}, "")
		},
	}
	cmd.Flags().BoolVar(&ignoreClones, "ignore-clones", false, "leave links held by clone-source fields")
	return cmd
}

func (a *app) newRelinkCmd() *cobra.Command {
	var (
		ignoreClones bool
		to           string
	)
	cmd := &cobra.Command{
		Use:   "relink <id|list>... --to <id>",
		Short: "Repoint every link to the targets and their descendants at another item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemediation(cmd, args, remediation.Options{Mode: types.ModeRelink, IgnoreClones: ignoreClones}, to)
		},
	}
	cmd.Flags().BoolVar(&ignoreClones, "ignore-clones", false, "leave links held by clone-source fields")
	cmd.Flags().StringVar(&to, "to", "", "ID of the replacement item")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// runRemediation starts a remediation job and waits for it to finish.
func (a *app) runRemediation(cmd *cobra.Command, args []string, opts remediation.Options, replacementID string) error {
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

	if opts.Mode == types.ModeRelink {
		opts.Replacement, err = s.backend.GetItem(ctx, replacementID)
		if err != nil {
			return lookupError(fmt.Errorf("replacement %s: %w", replacementID, err))
		}
	}
	opts.Targets = targets
	opts.Actor = a.flags.actor

	job, err := s.starter.Start(opts)
	if err != nil {
		return userError(err)
	}
	select {
	case <-job.Done():
	case <-ctx.Done():
		return sysError(fmt.Errorf("%s job %s interrupted: %w", job.Options.Name, job.Handle, ctx.Err()))
	}

	st := job.Status()
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		if err := json.NewEncoder(out).Encode(st); err != nil {
			return sysError(err)
		}
	} else if !st.Failed {
		fmt.Fprintf(out, "%s %s finished: processed %d of %d targets\n",
			passStyle.Render("✓"), job.Options.Name, st.Processed, st.Total)
	}
	if st.Failed {
		return sysError(fmt.Errorf("%s job failed: %s", job.Options.Name, strings.Join(st.Messages, "; ")))
	}
	return nil
}

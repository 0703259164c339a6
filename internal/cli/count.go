package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <id|list>...",
		Short: "Count the links to the targets and all of their descendants",
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

			n, err := a.controller(s, targets, false).ImpactCount(ctx)
			if err != nil {
				return lookupError(err)
			}
			if a.flags.jsonMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]int{"count": n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

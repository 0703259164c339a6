package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the breaklinks release, overridden at link time.
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/breaklinks"

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the breaklinks version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "breaklinks v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}

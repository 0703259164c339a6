package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import items and field values from a YAML content document",
		Long: "Import items from a YAML content document. Links are indexed from the\n" +
			"imported field values. Use - to read from standard input.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return userError(err)
				}
				defer f.Close()
				in = f
			}

			s, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.backend.ImportYAML(cmd.Context(), in)
			if err != nil {
				return userError(fmt.Errorf("importing %s: %w", args[0], err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items\n", n)
			return nil
		},
	}
}

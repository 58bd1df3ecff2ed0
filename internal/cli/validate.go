package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the content directory and report configuration problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			e, err := loadEngine(v)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), failStyle.Render("✗ invalid content"))
				return err
			}

			cfg := e.Config()
			fmt.Fprintln(out, okStyle.Render("✓ content is valid"))
			fmt.Fprintf(out, "  questions:        %d\n", len(e.Questions()))
			fmt.Fprintf(out, "  categories:       %d\n", len(e.Categories()))
			fmt.Fprintf(out, "  global composite: %v\n", cfg.GlobalComposite.Categories)
			fmt.Fprintf(out, "  sum category:     %s\n", cfg.SumCategory)
			return nil
		},
	}
}

// Package cli implements anxietyctl, the operator tool for checking content
// files and scoring answer sets offline with the same engine the API uses.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
)

// NewRootCmd builds the anxietyctl command tree. Flags can also be set with
// ANXIETY_-prefixed environment variables (ANXIETY_CONTENT, ANXIETY_FORMAT).
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ANXIETY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("content", "content")
	v.SetDefault("format", "json")

	root := &cobra.Command{
		Use:   "anxietyctl",
		Short: "Operator tool for the parenting anxiety check",
		Long: `anxietyctl loads the questionnaire catalog and threshold configuration
from a content directory and runs the scoring engine offline.

Use it to validate content before a deploy, to score an answer file, or to
generate pattern test cases for reviewing threshold bands.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("content", "c", "content", "Content directory holding questions and report-config files")
	root.PersistentFlags().StringP("format", "f", "json", "Output format (json|table)")
	_ = v.BindPFlag("content", root.PersistentFlags().Lookup("content"))
	_ = v.BindPFlag("format", root.PersistentFlags().Lookup("format"))

	root.AddCommand(
		newValidateCmd(v),
		newScoreCmd(v),
		newCasesCmd(v),
	)
	return root
}

// loadEngine loads the content directory named by the "content" setting.
func loadEngine(v *viper.Viper) (*scoring.Engine, error) {
	dir := v.GetString("content")
	e, err := scoring.LoadEngine(dir)
	if err != nil {
		return nil, fmt.Errorf("load content from %s: %w", dir, err)
	}
	return e, nil
}

// outputFormat returns the validated "format" setting.
func outputFormat(v *viper.Viper) (string, error) {
	switch f := strings.ToLower(v.GetString("format")); f {
	case "json", "table":
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or table)", f)
	}
}

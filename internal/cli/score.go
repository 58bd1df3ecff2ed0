package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
)

func newScoreCmd(v *viper.Viper) *cobra.Command {
	var answersPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an answer file and print the report",
		Long: `score reads an answer set (a JSON or YAML object mapping question id to
value) and prints the report the API would store for it.

Answers for unknown questions or outside a question's scale are rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(v)
			if err != nil {
				return err
			}
			e, err := loadEngine(v)
			if err != nil {
				return err
			}
			answers, err := readAnswers(answersPath)
			if err != nil {
				return err
			}
			if err := e.CheckAnswers(answers); err != nil {
				return err
			}

			report := e.Assemble(answers)
			if format == "table" {
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(e, report))
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&answersPath, "answers", "a", "", "Answer file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

// readAnswers decodes an answer file. The format follows the extension.
func readAnswers(path string) (scoring.AnswerSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	var answers scoring.AnswerSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &answers)
	default:
		err = json.Unmarshal(raw, &answers)
	}
	if err != nil {
		return nil, fmt.Errorf("decode answers %s: %w", path, err)
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("answers %s: no answers", path)
	}
	return answers, nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garagereg/dataport/internal/report"
	"github.com/garagereg/dataport/internal/transfer"
)

var (
	validateFile   string
	validateFormat string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a payload without touching the database",
	Long: `Validate parses the payload and reports structural problems: parse
errors, missing metadata, unknown tables, duplicate primary keys, and
missing or null required fields.

Malformed input is reported as issues, never as a crash. The exit code
is non-zero when any issue is found.

Example:
  dataport validate -i org42.jsonl --format jsonl`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "input", "i", "",
		"Payload file to validate (required)")
	validateCmd.MarkFlagRequired("input")

	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "",
		"Payload format: jsonl, json, or csv (default from config)")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	app, err := setupApp(validateFormat, "")
	if err != nil {
		return err
	}
	defer app.close()

	payload, err := os.ReadFile(validateFile)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}

	format, err := transfer.ParseFormat(app.cfg.Transfer.DefaultFormat)
	if err != nil {
		return err
	}

	validator, err := transfer.NewValidator(app.reg)
	if err != nil {
		return err
	}

	issues, err := validator.Validate(payload, format)
	if err != nil {
		return err
	}

	report.ValidationSummary(os.Stdout, issues)

	if len(issues) > 0 {
		return fmt.Errorf("payload failed validation with %d issue(s)", len(issues))
	}
	return nil
}

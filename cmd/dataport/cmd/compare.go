package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garagereg/dataport/internal/report"
	"github.com/garagereg/dataport/internal/transfer"
)

var (
	compareFile   string
	compareFormat string
	compareOrg    int64
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a payload against the current database state",
	Long: `Compare diffs the payload's records against the live database by
primary key: additions (in the payload only), deletions (in the
database only), and modifications (present in both with differing
fields).

Only the tables present in the payload are compared. The exit code is
0 whether or not differences exist; use the output to decide.

Example:
  dataport compare -i org42.jsonl --org 42`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVarP(&compareFile, "input", "i", "",
		"Payload file to compare (required)")
	compareCmd.MarkFlagRequired("input")

	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", "",
		"Payload format: jsonl, json, or csv (default from config)")
	compareCmd.Flags().Int64Var(&compareOrg, "org", 0,
		"Organization ID to scope the database side to (0 compares all tenants)")

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(compareFile)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}

	ctx := context.Background()

	app, err := connectApp(ctx, compareFormat, "")
	if err != nil {
		return err
	}
	defer app.close()

	format, err := transfer.ParseFormat(app.cfg.Transfer.DefaultFormat)
	if err != nil {
		return err
	}

	serializer, err := transfer.NewSerializer(format, app.reg)
	if err != nil {
		return err
	}
	_, incoming, err := serializer.Unmarshal(payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	exporter, err := transfer.NewExporter(app.store, app.reg, Version, app.log)
	if err != nil {
		return err
	}
	current, err := exporter.ExportDataset(ctx, optionalOrg(compareOrg), incoming.TableNames())
	if err != nil {
		return fmt.Errorf("read database state: %w", err)
	}

	comparator, err := transfer.NewComparator(app.reg)
	if err != nil {
		return err
	}

	// Database state is the baseline: additions are payload-only records.
	result := comparator.Compare(current, incoming)
	report.ComparisonSummary(os.Stdout, result)

	return nil
}

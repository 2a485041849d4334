// Package report renders human-readable summaries of transfer results
// for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/garagereg/dataport/internal/transfer"
)

// DefaultMaxItems bounds how many conflicts or issues a summary prints
// before truncating.
const DefaultMaxItems = 20

// ExportSummary prints the outcome of an export.
func ExportSummary(w io.Writer, meta *transfer.Metadata, payloadBytes int, output string) {
	fmt.Fprintf(w, "\n=== Export Complete ===\n")
	fmt.Fprintf(w, "Export ID: %s\n", meta.ExportID)
	fmt.Fprintf(w, "Format: %s\n", meta.Format)
	fmt.Fprintf(w, "Tables: %d\n", meta.TableCount)
	fmt.Fprintf(w, "Records: %d\n", meta.RecordCount)
	fmt.Fprintf(w, "Payload: %d bytes\n", payloadBytes)
	fmt.Fprintf(w, "Checksum: %s\n", meta.Checksum)
	if output != "" {
		fmt.Fprintf(w, "Written to: %s\n", output)
	}
}

// ImportSummary prints counts and the first conflicts of an import.
func ImportSummary(w io.Writer, result *transfer.ImportResult) {
	fmt.Fprintf(w, "\n=== Import %s ===\n", passFailLabel(result.Success))
	if result.DryRun {
		fmt.Fprintln(w, color.Yellow.Sprint("Dry run: no changes were written"))
	}

	renderTable(w,
		[]string{"Total", "Imported", "Skipped", "Errors", "Conflicts"},
		[][]string{{
			strconv.Itoa(result.TotalRecords),
			strconv.Itoa(result.ImportedRecords),
			strconv.Itoa(result.SkippedRecords),
			strconv.Itoa(result.ErrorRecords),
			strconv.Itoa(len(result.Conflicts)),
		}})
	fmt.Fprintf(w, "Duration: %s\n", result.ProcessingTime)

	if len(result.Issues) > 0 {
		fmt.Fprintln(w, color.Red.Sprint("\nValidation issues:"))
		printIssues(w, result.Issues)
	}
	if len(result.Conflicts) > 0 {
		fmt.Fprintf(w, "\nConflicts (showing up to %d):\n", DefaultMaxItems)
		printConflicts(w, result.Conflicts)
	}
}

// ValidationSummary prints the outcome of a standalone validation.
func ValidationSummary(w io.Writer, issues []transfer.ValidationIssue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, color.Green.Sprint("✅ Payload is well-formed"))
		return
	}
	fmt.Fprintln(w, color.Red.Sprintf("❌ %d validation issue(s) found", len(issues)))
	printIssues(w, issues)
}

// ComparisonSummary prints a per-table diff table plus totals.
func ComparisonSummary(w io.Writer, result *transfer.ComparisonResult) {
	fmt.Fprintf(w, "\n=== Dataset Comparison ===\n")
	fmt.Fprintf(w, "Tables compared: %d\n\n", result.TablesCompared)

	var rows [][]string
	for _, table := range sortedTableNames(result) {
		diff := result.Tables[table]
		if diff.Empty() {
			continue
		}
		rows = append(rows, []string{
			table,
			strconv.Itoa(len(diff.Additions)),
			strconv.Itoa(len(diff.Modifications)),
			strconv.Itoa(len(diff.Deletions)),
		})
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, color.Green.Sprint("✅ Datasets are identical"))
		return
	}

	renderTable(w, []string{"Table", "Additions", "Modifications", "Deletions"}, rows)
	fmt.Fprintf(w, "\nTotals: +%d ~%d -%d\n",
		result.TotalAdditions, result.TotalModifications, result.TotalDeletions)
}

// RoundTripSummary prints the verdict of a round-trip verification.
func RoundTripSummary(w io.Writer, report *transfer.RoundTripReport) {
	fmt.Fprintf(w, "\n=== Round-Trip Verification %s ===\n", passFailLabel(report.TestPassed))
	fmt.Fprintf(w, "Organization: %d\n", report.OrgID)

	mode := "safe (simulated delete, dry-run import)"
	if report.Destructive {
		mode = fmt.Sprintf("destructive (%d records deleted and re-imported)", report.DeletedRecords)
	}
	fmt.Fprintf(w, "Mode: %s\n", mode)
	fmt.Fprintf(w, "Duration: %s\n\n", report.Duration)

	renderTable(w,
		[]string{"Signal", "Result"},
		[][]string{
			{"Dataset comparison", checkLabel(report.Comparison != nil && report.Comparison.InSync())},
			{"Import success", checkLabel(report.ImportResult != nil && report.ImportResult.Success)},
			{"Checksums match", checkLabel(report.ChecksumsMatch)},
		})

	if report.OriginalMetadata != nil && report.ReimportedMetadata != nil && !report.ChecksumsMatch {
		fmt.Fprintf(w, "\nOriginal checksum:    %s\n", report.OriginalMetadata.Checksum)
		fmt.Fprintf(w, "Re-imported checksum: %s\n", report.ReimportedMetadata.Checksum)
	}
	if report.Comparison != nil && !report.Comparison.InSync() {
		ComparisonSummary(w, report.Comparison)
	}
}

func printIssues(w io.Writer, issues []transfer.ValidationIssue) {
	for i, issue := range issues {
		if i >= DefaultMaxItems {
			fmt.Fprintf(w, "  ... and %d more\n", len(issues)-DefaultMaxItems)
			break
		}
		location := issue.Table
		if issue.RecordID != "" {
			location += "#" + issue.RecordID
		}
		if location != "" {
			location = " [" + location + "]"
		}
		fmt.Fprintf(w, "  - %s%s: %s\n", issue.Code, location, issue.Message)
	}
}

func printConflicts(w io.Writer, conflicts []transfer.ImportConflict) {
	for i, conflict := range conflicts {
		if i >= DefaultMaxItems {
			fmt.Fprintf(w, "  ... and %d more\n", len(conflicts)-DefaultMaxItems)
			break
		}
		fmt.Fprintf(w, "  - %s#%s (%s → %s): %s\n",
			conflict.Table, conflict.RecordID, conflict.Type, conflict.Resolution, conflict.Message)
	}
}

func passFailLabel(ok bool) string {
	if ok {
		return color.Green.Sprint("PASSED")
	}
	return color.Red.Sprint("FAILED")
}

func checkLabel(ok bool) string {
	if ok {
		return color.Green.Sprint("✅ ok")
	}
	return color.Red.Sprint("❌ failed")
}

func sortedTableNames(result *transfer.ComparisonResult) []string {
	names := make([]string, 0, len(result.Tables))
	for name := range result.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// renderTable prints an aligned text table. Column widths are computed
// with runewidth so wide characters do not break the layout.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(cell) > widths[i] {
				widths[i] = runewidth.StringWidth(cell)
			}
		}
	}

	printRow := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	printRow(headers)
	separators := make([]string, len(headers))
	for i := range headers {
		separators[i] = strings.Repeat("-", widths[i])
	}
	printRow(separators)
	for _, row := range rows {
		printRow(row)
	}
}

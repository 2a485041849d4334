package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garagereg/dataport/internal/depgraph"
	"github.com/garagereg/dataport/internal/registry"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the registered tables and their import order",
	Long: `Tables prints every table descriptor the registry knows: primary key,
tenant column, parent references, and field count, followed by the
parent-first order imports use.

Example:
  dataport tables`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	reg := registry.Default()

	fmt.Printf("=== Registered Tables (%d) ===\n\n", reg.Len())
	for _, t := range reg.Tables() {
		tenant := "-"
		if t.TenantAware {
			tenant = t.TenantColumn
		}
		refs := "-"
		if len(t.References) > 0 {
			refs = strings.Join(t.References, ", ")
		}
		fmt.Printf("%-20s pk=%-4s tenant=%-8s fields=%-3d refs=%s\n",
			t.Name, t.PrimaryKey, tenant, len(t.Fields), refs)
	}

	g, err := depgraph.FromRegistry(reg, nil)
	if err != nil {
		return err
	}
	order, err := g.ImportOrder()
	if err != nil {
		return err
	}

	fmt.Printf("\nImport order (parent-first):\n  %s\n", strings.Join(order, " → "))
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/garagereg/dataport/internal/lock"
	"github.com/garagereg/dataport/internal/report"
	"github.com/garagereg/dataport/internal/transfer"
)

var (
	importFile     string
	importFormat   string
	importStrategy string
	importOrg      int64
	importDryRun   bool
	importForce    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a payload into the GarageReg database",
	Long: `Import validates the payload, then walks every record in parent-first
table order: look up the existing record, apply the conflict strategy,
and write the outcome.

Strategies:
  skip       keep the existing record (default)
  overwrite  replace the existing record with the incoming one
  merge      take incoming non-null fields when the incoming record is newer
  error      mark conflicting records as errors and continue

A record-level conflict never aborts the batch. The exit code is
non-zero when the payload fails validation or any record errors.

Example:
  dataport import --config dataport.yaml -i org42.jsonl --org 42 --strategy overwrite
  dataport import -i org42.jsonl --org 42 --dry-run`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "input", "i", "",
		"Payload file to import (required)")
	importCmd.MarkFlagRequired("input")

	importCmd.Flags().StringVarP(&importFormat, "format", "f", "",
		"Payload format: jsonl, json, or csv (default from config)")
	importCmd.Flags().StringVarP(&importStrategy, "strategy", "s", "",
		"Conflict strategy: skip, overwrite, merge, or error (default from config)")
	importCmd.Flags().Int64Var(&importOrg, "org", 0,
		"Organization ID the payload must belong to (0 disables tenant scoping)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false,
		"Resolve every record but write nothing")
	importCmd.Flags().BoolVar(&importForce, "force", false,
		"Skip the advisory lock (use with caution)")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := connectApp(ctx, importFormat, importStrategy)
	if err != nil {
		return err
	}
	defer app.close()

	format, err := transfer.ParseFormat(app.cfg.Transfer.DefaultFormat)
	if err != nil {
		return err
	}
	strategy, err := transfer.ParseStrategy(app.cfg.Transfer.DefaultStrategy)
	if err != nil {
		return err
	}

	// Writes are guarded by a per-tenant advisory lock so two imports
	// cannot interleave.
	if !importDryRun && !importForce {
		jobLock := lock.NewTransferLock(app.manager.DB, "import", importOrg)
		if err := jobLock.Acquire(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("another transfer job is running for organization %d (use --force to override)", importOrg)
			}
			return fmt.Errorf("failed to acquire job lock: %w", err)
		}
		defer jobLock.Release(context.Background())
		app.log.Infow("Acquired advisory lock", "lock", jobLock.LockName())
	} else if importForce {
		app.log.Warnw("Skipping advisory lock acquisition (--force flag used)")
	}

	importer, err := transfer.NewImporter(app.store, app.reg, app.log)
	if err != nil {
		return err
	}

	// Handle graceful shutdown between tables
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		app.log.Warn("Received shutdown signal - stopping after current table...")
		cancel()
	}()

	result, err := importer.Import(ctx, payload, transfer.ImportOptions{
		Format:   format,
		Strategy: strategy,
		OrgID:    optionalOrg(importOrg),
		DryRun:   importDryRun,
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	report.ImportSummary(os.Stdout, result)

	if !result.Success {
		return fmt.Errorf("import completed with errors")
	}
	return nil
}

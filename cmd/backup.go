package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/obs"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// openBackupService opens the data file directly; do not run against a live server.
func openBackupService() (*service.BackupService, error) {
	cfg := config.Load()
	logger := obs.NewLogger(cfg.LogLevel)
	store, err := repository.Open(cfg.DBFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return service.NewBackupService(store, repository.NewFileTx(store), logger), nil
}

func backupCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a copy of the data file to db-backup-<ts>.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openBackupService()
			if err != nil {
				return err
			}
			b := svc.Export(context.Background())
			data, err := repository.Encode(b.Document)
			if err != nil {
				return err
			}
			target := filepath.Join(outDir, b.Filename)
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the backup file")
	return cmd
}

func restoreCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace or merge the data file from a backup",
		Long: `Restore reads a backup (the document itself or {"db": document}),
copies the current data file to <db>.bak-<ts> and then replaces or merges it.
Stop the server first: the running process keeps its own copy in memory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			svc, err := openBackupService()
			if err != nil {
				return err
			}
			res, err := svc.Restore(context.Background(), raw, mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mode=%s products=%d orders=%d pushSubscriptions=%d backup=%s\n",
				res.Mode, res.Counts.Products, res.Counts.Orders, res.Counts.PushSubscriptions, res.Backup)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", service.RestoreReplace, "replace or merge")
	return cmd
}

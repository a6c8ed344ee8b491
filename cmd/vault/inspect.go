package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/config"
	"liquidityVault/internal/model"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/storage/postgres"
)

type inspectReport struct {
	Snapshot *model.VaultSnapshot     `json:"snapshot"`
	Events   []model.VaultEventRecord `json:"events"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		snapshots storage.SnapshotStore
		events    []model.VaultEventRecord
	)
	if cfg.PGDSN != "" {
		vaultAddr, err := config.ParseAddress(cfg.Vault)
		if err != nil {
			return fmt.Errorf("vault: %w", err)
		}
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		snapshots = &storage.DBSnapshotStore{Store: store, Vault: vaultAddr.Hex()}
		if events, err = store.ListEvents(ctx, vaultAddr.Hex()); err != nil {
			return fmt.Errorf("list events: %w", err)
		}
	} else {
		snapshots = &storage.FileSnapshotStore{Path: cfg.StateFile}
		if events, err = storage.ReadEvents(cfg.Events); err != nil {
			return fmt.Errorf("read events: %w", err)
		}
	}

	var report inspectReport
	snap, ok, err := snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		report.Snapshot = &snap
	}
	report.Events = filterEvents(events, cfg.Names)

	logger.Info("inspect",
		zap.Bool("snapshot", ok),
		zap.Int("events", len(report.Events)),
		zap.Strings("filter", cfg.Names),
	)
	return writeJSON(cmd.OutOrStdout(), report)
}

func filterEvents(events []model.VaultEventRecord, names []string) []model.VaultEventRecord {
	if len(names) == 0 {
		return events
	}
	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[strings.ToLower(name)] = struct{}{}
	}
	out := make([]model.VaultEventRecord, 0, len(events))
	for _, ev := range events {
		if _, ok := want[strings.ToLower(ev.EventName)]; ok {
			out = append(out, ev)
		}
	}
	return out
}

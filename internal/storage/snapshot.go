package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"liquidityVault/internal/model"
	"liquidityVault/internal/storage/postgres"
)

// FileSnapshotStore stores the snapshot in a local JSON file.
type FileSnapshotStore struct {
	Path string
}

func (s *FileSnapshotStore) Load(ctx context.Context) (model.VaultSnapshot, bool, error) {
	if s == nil || s.Path == "" {
		return model.VaultSnapshot{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.VaultSnapshot{}, false, nil
		}
		return model.VaultSnapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := model.MigrateSnapshot(data)
	if err != nil {
		return model.VaultSnapshot{}, false, err
	}
	return snap, true, nil
}

func (s *FileSnapshotStore) Save(ctx context.Context, snap model.VaultSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// DBSnapshotStore stores the snapshot in the vault_state table, keyed by vault address.
type DBSnapshotStore struct {
	Store *postgres.Store
	Vault string
}

func (s *DBSnapshotStore) Load(ctx context.Context) (model.VaultSnapshot, bool, error) {
	if s == nil || s.Store == nil {
		return model.VaultSnapshot{}, false, nil
	}
	data, ok, err := s.Store.LoadSnapshot(ctx, s.Vault)
	if err != nil || !ok {
		return model.VaultSnapshot{}, false, err
	}
	snap, err := model.MigrateSnapshot(data)
	if err != nil {
		return model.VaultSnapshot{}, false, err
	}
	return snap, true, nil
}

func (s *DBSnapshotStore) Save(ctx context.Context, snap model.VaultSnapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.Store.SaveSnapshot(ctx, s.Vault, snap.BlockNumber, data)
}

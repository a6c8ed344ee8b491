package storage

import (
	"context"

	"liquidityVault/internal/model"
)

// EventSink receives vault events in sequence order.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.VaultEvent) error
}

// SnapshotStore persists the latest vault snapshot.
type SnapshotStore interface {
	Load(ctx context.Context) (model.VaultSnapshot, bool, error)
	Save(ctx context.Context, snap model.VaultSnapshot) error
}

// Fanout forwards events to every sink, stopping at the first failure.
type Fanout []EventSink

func (f Fanout) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

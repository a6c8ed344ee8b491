package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"liquidityVault/internal/model"
)

func TestJsonlStorageAppendsAndReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	s := NewJsonlStorage(path)
	ctx := context.Background()

	first := []model.VaultEvent{{
		Sequence: 1, BlockNumber: 10, Vault: "0xf0", EventName: model.EventFeeDivisorsSet,
		Decoded: model.FeeDivisorsSetData{MintFee: 1250, BurnFee: 1250, ClaimFee: 50},
	}}
	second := []model.VaultEvent{{
		Sequence: 2, BlockNumber: 12, Vault: "0xf0", EventName: model.EventFeeWithdraw,
		Decoded: model.FeeWithdrawData{Recipient: "0x02", Amount0: "8", Amount1: "0"},
	}}
	if err := s.PutEvents(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutEvents(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := s.PutEvents(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	records, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Sequence != 1 || records[1].EventName != model.EventFeeWithdraw {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	records, err := ReadEvents(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d", len(records))
	}
}

type countingSink struct {
	calls int
	err   error
}

func (c *countingSink) PutEvents(context.Context, []model.VaultEvent) error {
	c.calls++
	return c.err
}

func TestFanoutStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &countingSink{}, &countingSink{err: boom}, &countingSink{}
	err := Fanout{a, nil, b, c}.PutEvents(context.Background(), []model.VaultEvent{{Sequence: 1}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 0 {
		t.Fatalf("calls = %d/%d/%d", a.calls, b.calls, c.calls)
	}
}

func TestFileSnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "state", "vault.json")}

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("load empty: ok=%v err=%v", ok, err)
	}

	snap := model.VaultSnapshot{
		Version:     model.SnapshotVersion,
		Vault:       "0xf0",
		BlockNumber: 42,
		Position:    model.PositionSnapshot{Handle: 3, TickLower: -600, TickUpper: 600, Liquidity: "1000", Active: true},
		MintFee:     1250, BurnFee: 1250, ClaimFee: 50,
		WithdrawableFees0: "1", WithdrawableFees1: "2",
		TwapPeriod: 3600, LastTwap: "18446744073709551616",
		LockedUntil:   map[string]uint64{"0xa1": 47},
		EventSequence: 9,
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(store.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Position != snap.Position || got.EventSequence != 9 || got.LockedUntil["0xa1"] != 47 {
		t.Fatalf("loaded %+v", got)
	}
}

func TestFileSnapshotStoreMigratesLegacy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	legacy := `{"vault":"0xf0","token_id":7,"lower_tick":-600,"upper_tick":600,"liquidity":"5",` +
		`"fee_divisors":[1000,1000,40],"withdrawable_fees":["3",""],"twap_period":1800}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, ok, err := (&FileSnapshotStore{Path: path}).Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Version != model.SnapshotVersion || got.Position.Handle != 7 || got.MintFee != 1000 || got.WithdrawableFees1 != "0" {
		t.Fatalf("migrated %+v", got)
	}
}

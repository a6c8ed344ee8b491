package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRebalanceDataJSONStringFields(t *testing.T) {
	payload := RebalanceData{
		Buffer0:   "5000000000000000000000",
		Buffer1:   "4999999999999999999999",
		Staked0:   "95000000000000000000000",
		Staked1:   "94999999999999999999999",
		Swaps:     2,
		Timestamp: 1700000000,
	}

	data, err := json.Marshal(VaultEvent{EventName: EventRebalance, Decoded: payload})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record VaultEventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if record.EventName != EventRebalance {
		t.Fatalf("event name = %q", record.EventName)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(record.Decoded, &decoded); err != nil {
		t.Fatalf("unmarshal decoded failed: %v", err)
	}
	for _, key := range []string{"buffer0", "buffer1", "staked0", "staked1"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestMigrateLegacySnapshot(t *testing.T) {
	legacy := []byte(`{
		"vault": "0x00000000000000000000000000000000000000f0",
		"token_id": 7,
		"lower_tick": -600,
		"upper_tick": 600,
		"liquidity": "123456",
		"fee_divisors": [1250, 1250, 50],
		"withdrawable_fees": ["10", ""],
		"twap_period": 3600
	}`)

	snap, err := MigrateSnapshot(legacy)
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Fatalf("version = %d", snap.Version)
	}
	if snap.Position.Handle != 7 || !snap.Position.Active || snap.Position.TickLower != -600 {
		t.Fatalf("position = %+v", snap.Position)
	}
	if snap.MintFee != 1250 || snap.ClaimFee != 50 {
		t.Fatalf("divisors = %d/%d/%d", snap.MintFee, snap.BurnFee, snap.ClaimFee)
	}
	if snap.WithdrawableFees0 != "10" || snap.WithdrawableFees1 != "0" {
		t.Fatalf("fees = %s/%s", snap.WithdrawableFees0, snap.WithdrawableFees1)
	}
}

func TestMigrateCurrentAndUnknownSnapshot(t *testing.T) {
	data, err := json.Marshal(VaultSnapshot{Version: SnapshotVersion, TwapPeriod: 60, LastTwap: "1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	snap, err := MigrateSnapshot(data)
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if snap.TwapPeriod != 60 {
		t.Fatalf("twap period = %d", snap.TwapPeriod)
	}

	_, err = MigrateSnapshot([]byte(`{"version": 9}`))
	if !errors.Is(err, ErrUnsupportedSnapshot) {
		t.Fatalf("expected ErrUnsupportedSnapshot, got %v", err)
	}
}

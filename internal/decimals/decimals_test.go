package decimals

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestRoundTrip(t *testing.T) {
	amounts := []string{"0", "1", "999999", "1000000", "123456789012345678", "100000000000000000000000000"}
	for _, native := range []uint8{6, 8, 18, 24} {
		for _, raw := range amounts {
			amount := uint256.MustFromDecimal(raw)

			canonical, err := ToCanonical(amount, native)
			if err != nil {
				t.Fatalf("to canonical %s@%d: %v", raw, native, err)
			}
			back, err := FromCanonical(canonical, native)
			if err != nil {
				t.Fatalf("from canonical %s@%d: %v", raw, native, err)
			}
			again, err := ToCanonical(back, native)
			if err != nil {
				t.Fatalf("to canonical again %s@%d: %v", raw, native, err)
			}
			if !again.Eq(canonical) {
				t.Fatalf("round trip mismatch for %s@%d: %s != %s", raw, native, again.Dec(), canonical.Dec())
			}
		}
	}
}

func TestFromCanonicalFloors(t *testing.T) {
	got, err := FromCanonical(uint256.MustFromDecimal("1999999999999"), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 1 {
		t.Fatalf("expected floor to 1, got %s", got.Dec())
	}
}

func TestToCanonicalScales(t *testing.T) {
	got, err := ToCanonical(uint256.NewInt(1_500_000), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Dec() != "1500000000000000000" {
		t.Fatalf("unexpected canonical amount %s", got.Dec())
	}
}

func TestToCanonicalOverflow(t *testing.T) {
	if _, err := ToCanonical(new(uint256.Int).SetAllOne(), 6); err != ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

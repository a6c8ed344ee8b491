package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
)

// fakeCaller answers eth_call by target address and 4-byte selector.
type fakeCaller struct {
	responses map[common.Address]map[string][]byte
	errs      map[string]error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[common.Address]map[string][]byte), errs: make(map[string]error)}
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	if f.responses[to] == nil {
		f.responses[to] = make(map[string][]byte)
	}
	f.responses[to][string(parsed.Methods[method].ID)] = out
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	selector := string(msg.Data[:4])
	if err, ok := f.errs[selector]; ok {
		return nil, err
	}
	resp, ok := f.responses[*msg.To][selector]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

var (
	testPool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func seedPool(t *testing.T, f *fakeCaller) abi.ABI {
	t.Helper()
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	f.set(t, testPool, poolABI, "token0", testToken0)
	f.set(t, testPool, poolABI, "token1", testToken1)
	f.set(t, testPool, poolABI, "fee", big.NewInt(500))
	f.set(t, testPool, poolABI, "tickSpacing", big.NewInt(10))
	f.set(t, testPool, poolABI, "liquidity", big.NewInt(123456789))
	f.set(t, testPool, poolABI, "slot0",
		new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(-15), uint16(3), uint16(100), uint16(100), uint8(0), true)
	return poolABI
}

func seedToken(t *testing.T, f *fakeCaller, token common.Address, decimals uint8, symbol string) {
	t.Helper()
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	f.set(t, token, parsed, "decimals", decimals)
	f.set(t, token, parsed, "symbol", symbol)
	f.set(t, token, parsed, "name", symbol+" token")
}

func TestFetchPoolMeta(t *testing.T) {
	f := newFakeCaller()
	seedPool(t, f)
	seedToken(t, f, testToken0, 18, "WETH")
	seedToken(t, f, testToken1, 6, "USDC")

	cache := NewTokenMetaCache()
	meta, err := FetchPoolMeta(context.Background(), f, testPool, cache, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch pool meta: %v", err)
	}
	if meta.Token0 != testToken0.Hex() || meta.Token1 != testToken1.Hex() || meta.Fee != 500 || meta.TickSpacing != 10 {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	usdc, ok := cache.Get(testToken1)
	if !ok || usdc.Decimals != 6 || usdc.Symbol != "USDC" || usdc.Name != "USDC token" {
		t.Fatalf("token1 meta = %+v (cached %v)", usdc, ok)
	}
}

func TestFetchPoolMetaSkipsUnreadableToken(t *testing.T) {
	f := newFakeCaller()
	seedPool(t, f)
	seedToken(t, f, testToken0, 18, "WETH")

	cache := NewTokenMetaCache()
	if _, err := FetchPoolMeta(context.Background(), f, testPool, cache, zap.NewNop()); err != nil {
		t.Fatalf("fetch pool meta: %v", err)
	}
	if _, ok := cache.Get(testToken0); !ok {
		t.Fatalf("token0 not cached")
	}
	if meta, ok := cache.Get(testToken1); ok {
		t.Fatalf("token1 cached without decimals: %+v", meta)
	}
}

func TestPoolMetaCache(t *testing.T) {
	cache := NewPoolMetaCache()
	if _, ok := cache.Get(testPool); ok {
		t.Fatalf("empty cache hit")
	}
	cache.Set(testPool, model.PoolMeta{Fee: 500, TickSpacing: 10})
	meta, ok := cache.Get(testPool)
	if !ok || meta.Fee != 500 || meta.TickSpacing != 10 {
		t.Fatalf("cached meta = %+v (hit %v)", meta, ok)
	}
}

func TestFetchPoolOptionalMeta(t *testing.T) {
	f := newFakeCaller()
	seedPool(t, f)

	meta, err := FetchPoolOptionalMeta(context.Background(), f, testPool, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch optional meta: %v", err)
	}
	if meta.Liquidity != "123456789" || meta.Slot0 == nil || meta.Slot0.Tick != -15 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestReadObserve(t *testing.T) {
	f := newFakeCaller()
	poolABI := seedPool(t, f)
	f.set(t, testPool, poolABI, "observe",
		[]*big.Int{big.NewInt(-36000), big.NewInt(0)},
		[]*big.Int{big.NewInt(1), big.NewInt(2)},
	)

	got, err := ReadObserve(context.Background(), f, testPool, []uint32{3600, 0})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(got) != 2 || got[0] != -36000 || got[1] != 0 {
		t.Fatalf("cumulatives = %v", got)
	}

	if _, err := ReadObserve(context.Background(), f, testPool, []uint32{60}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestFetchBalance(t *testing.T) {
	f := newFakeCaller()
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	f.set(t, testToken0, parsed, "balanceOf", want)

	got, err := FetchBalance(context.Background(), f, testToken0, testPool)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.ToBig().Cmp(want) != 0 {
		t.Fatalf("balance = %s", got.Dec())
	}
}

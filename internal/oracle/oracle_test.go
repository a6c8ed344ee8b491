package oracle

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

type fakeSource struct {
	start, end int64
	err        error
	calls      [][]uint32
}

func (f *fakeSource) Observe(_ context.Context, secondsAgos []uint32) ([]int64, error) {
	f.calls = append(f.calls, secondsAgos)
	if f.err != nil {
		return nil, f.err
	}
	return []int64{f.start, f.end}, nil
}

func TestMeanTick(t *testing.T) {
	cases := []struct {
		name       string
		start, end int64
		period     uint32
		want       int32
	}{
		{name: "flat", start: 0, end: 0, period: 600, want: 0},
		{name: "positive", start: 1000, end: 1000 + 30*600, period: 600, want: 30},
		{name: "positive truncates", start: 0, end: 601, period: 600, want: 1},
		{name: "negative exact", start: 0, end: -60 * 100, period: 100, want: -60},
		{name: "negative rounds down", start: 0, end: -601, period: 600, want: -2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{start: tc.start, end: tc.end}
			got, err := New(src, 18, 18).MeanTick(context.Background(), tc.period)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, []uint32{tc.period, 0}, src.calls[0])
		})
	}
}

func TestQuoteAtParity(t *testing.T) {
	q, err := New(&fakeSource{}, 18, 18).Quote(context.Background(), 3600)
	require.NoError(t, err)
	require.Equal(t, int32(0), q.MeanTick)
	require.True(t, q.SqrtPriceX96.Eq(clmath.Q96()))
	require.Equal(t, 0, q.Asset0.Cmp(clmath.OnePrice()))
	require.Equal(t, 0, q.Asset1.Cmp(clmath.OnePrice()))
}

func TestAssetPricesMoveOppositeWays(t *testing.T) {
	o := New(&fakeSource{start: 0, end: -50 * 100}, 18, 18)
	price0, err := o.AssetPrice(context.Background(), 100, true)
	require.NoError(t, err)
	price1, err := o.AssetPrice(context.Background(), 100, false)
	require.NoError(t, err)

	require.Equal(t, -1, price0.Cmp(clmath.OnePrice()))
	require.Equal(t, 1, price1.Cmp(clmath.OnePrice()))
}

func TestInsufficientObservations(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("observe 3600: %w", amm.ErrObservationTooOld)}
	_, err := New(src, 18, 6).Quote(context.Background(), 3600)
	require.ErrorIs(t, err, ErrInsufficientObservations)
	require.ErrorIs(t, err, amm.ErrObservationTooOld)
}

func TestZeroPeriod(t *testing.T) {
	_, err := New(&fakeSource{}, 18, 18).MeanTick(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

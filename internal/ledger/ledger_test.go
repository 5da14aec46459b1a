package ledger

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestWeightedAverageScenario(t *testing.T) {
	var s State

	s, err := ApplyImport(s, d("100"), d("1000"))
	require.NoError(t, err)
	requireDecimal(t, "100", s.OnHand)
	requireDecimal(t, "1000", s.AvgCost)

	s, err = ApplyImport(s, d("50"), d("1300"))
	require.NoError(t, err)
	requireDecimal(t, "150", s.OnHand)
	requireDecimal(t, "1100", s.AvgCost)

	s, sale, err := ApplyExport(s, d("60"), d("1500"))
	require.NoError(t, err)
	requireDecimal(t, "90", s.OnHand)
	requireDecimal(t, "1100", s.AvgCost)
	requireDecimal(t, "1100", sale.CostBasis)
	requireDecimal(t, "90000", sale.Revenue)
	requireDecimal(t, "24000", sale.Profit)

	before := s
	after, _, err := ApplyExport(s, d("200"), d("1500"))
	require.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	requireDecimal(t, "200", stockErr.Requested)
	requireDecimal(t, "90", stockErr.Available)
	require.Equal(t, before, after)
	requireDecimal(t, "90", s.OnHand)
	requireDecimal(t, "1100", s.AvgCost)
}

func TestWeightedAverageLaw(t *testing.T) {
	cases := []struct {
		q1, c1, q2, c2 float64
	}{
		{10, 100000, 5, 120000},
		{3, 0.5, 7, 0.25},
		{1, 0, 1, 10},
		{12.5, 3.3, 0.75, 19.99},
	}
	for _, tc := range cases {
		s, err := ApplyImport(State{}, decimal.NewFromFloat(tc.q1), decimal.NewFromFloat(tc.c1))
		require.NoError(t, err)
		s, err = ApplyImport(s, decimal.NewFromFloat(tc.q2), decimal.NewFromFloat(tc.c2))
		require.NoError(t, err)
		want := (tc.q1*tc.c1 + tc.q2*tc.c2) / (tc.q1 + tc.q2)
		require.InDelta(t, want, s.AvgCost.InexactFloat64(), 1e-6)
	}
}

func TestProfitLaw(t *testing.T) {
	start := State{OnHand: d("40"), AvgCost: d("12.5")}
	next, sale, err := ApplyExport(start, d("15"), d("20"))
	require.NoError(t, err)
	requireDecimal(t, "112.5", sale.Profit)
	require.True(t, next.AvgCost.Equal(start.AvgCost))
	requireDecimal(t, "25", next.OnHand)

	_, sale, err = ApplyExport(start, d("4"), d("10"))
	require.NoError(t, err)
	requireDecimal(t, "-10", sale.Profit)
}

func TestExportToZeroResetsAverage(t *testing.T) {
	next, _, err := ApplyExport(State{OnHand: d("5"), AvgCost: d("7")}, d("5"), d("9"))
	require.NoError(t, err)
	require.True(t, next.OnHand.IsZero())
	require.True(t, next.AvgCost.IsZero())
}

func TestInputValidation(t *testing.T) {
	s := State{OnHand: d("10"), AvgCost: d("2")}

	_, err := ApplyImport(s, decimal.Zero, d("1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ApplyImport(s, d("-1"), d("1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ApplyImport(s, d("1"), d("-0.01"))
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, _, err = ApplyExport(s, decimal.Zero, d("1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, _, err = ApplyExport(s, d("1"), d("-1"))
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ReverseImport(s, d("0"), d("1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ReverseExport(s, d("1"), d("-1"))
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestPureFunctions(t *testing.T) {
	s := State{OnHand: d("33"), AvgCost: d("4.75")}
	a, errA := ApplyImport(s, d("7"), d("5.1"))
	b, errB := ApplyImport(s, d("7"), d("5.1"))
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a, b)

	x, saleX, errX := ApplyExport(s, d("3"), d("9"))
	y, saleY, errY := ApplyExport(s, d("3"), d("9"))
	require.NoError(t, errX)
	require.NoError(t, errY)
	require.Equal(t, x, y)
	require.Equal(t, saleX, saleY)
	requireDecimal(t, "33", s.OnHand)
}

func TestReverseImport(t *testing.T) {
	s := State{OnHand: d("150"), AvgCost: d("1100")}

	next, err := ReverseImport(s, d("50"), d("1300"))
	require.NoError(t, err)
	requireDecimal(t, "100", next.OnHand)
	requireDecimal(t, "1000", next.AvgCost)

	next, err = ReverseImport(State{OnHand: d("50"), AvgCost: d("1300")}, d("50"), d("1300"))
	require.NoError(t, err)
	require.True(t, next.OnHand.IsZero())
	require.True(t, next.AvgCost.IsZero())
}

func TestReverseImportInconsistency(t *testing.T) {
	consumed := State{OnHand: d("90"), AvgCost: d("1100")}
	after, err := ReverseImport(consumed, d("100"), d("1000"))
	require.ErrorIs(t, err, ErrLedgerInconsistency)
	require.Equal(t, consumed, after)

	skewed := State{OnHand: d("10"), AvgCost: d("150")}
	_, err = ReverseImport(skewed, d("5"), d("400"))
	var incErr *InconsistencyError
	require.True(t, errors.As(err, &incErr))
	require.Contains(t, incErr.Error(), "negative value")
}

func TestReverseImportAbsorbsAverageRounding(t *testing.T) {
	s, err := ApplyImport(State{}, d("1"), d("0"))
	require.NoError(t, err)
	s, err = ApplyImport(s, d("2"), d("0.5"))
	require.NoError(t, err)
	requireDecimal(t, "0.33333333", s.AvgCost)
	requireDecimal(t, "0.99999999", s.Value())

	next, err := ReverseImport(s, d("2"), d("0.5"))
	require.NoError(t, err)
	requireDecimal(t, "1", next.OnHand)
	require.True(t, next.AvgCost.IsZero())

	beyond := State{OnHand: d("3"), AvgCost: d("0.3333333")}
	_, err = ReverseImport(beyond, d("2"), d("0.5"))
	require.ErrorIs(t, err, ErrLedgerInconsistency)
}

func TestReverseExportUsesCapturedCostBasis(t *testing.T) {
	s := State{OnHand: d("150"), AvgCost: d("1100")}
	exported, sale, err := ApplyExport(s, d("60"), d("1500"))
	require.NoError(t, err)

	restored, err := ReverseExport(exported, sale.Quantity, sale.CostBasis)
	require.NoError(t, err)
	require.True(t, restored.OnHand.Equal(s.OnHand))
	require.True(t, restored.AvgCost.Equal(s.AvgCost))
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(State{}))
	require.NoError(t, Check(State{OnHand: d("1"), AvgCost: d("3")}))
	require.ErrorIs(t, Check(State{OnHand: d("-1")}), ErrLedgerInconsistency)
	require.ErrorIs(t, Check(State{OnHand: d("1"), AvgCost: d("-3")}), ErrLedgerInconsistency)
	require.ErrorIs(t, Check(State{AvgCost: d("3")}), ErrLedgerInconsistency)
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var s State
	for i := 0; i < 2000; i++ {
		qty := decimal.NewFromInt(int64(rng.Intn(50) + 1))
		price := decimal.NewFromInt(int64(rng.Intn(5000)))
		var err error
		if rng.Intn(2) == 0 {
			s, err = ApplyImport(s, qty, price)
			require.NoError(t, err)
		} else {
			next, _, exportErr := ApplyExport(s, qty, price)
			if qty.GreaterThan(s.OnHand) {
				require.ErrorIs(t, exportErr, ErrInsufficientStock)
				require.Equal(t, s, next)
			} else {
				require.NoError(t, exportErr)
			}
			s = next
		}
		require.False(t, s.OnHand.IsNegative())
		require.False(t, s.AvgCost.IsNegative())
		require.NoError(t, Check(s))
	}
}

func TestValuation(t *testing.T) {
	s := State{OnHand: decimal.NewFromInt(4), AvgCost: decimal.RequireFromString("2.5")}
	require.True(t, Valuation(s).Equal(decimal.NewFromInt(10)))
	require.True(t, Valuation(State{}).IsZero())
}

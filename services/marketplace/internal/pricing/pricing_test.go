package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDiscountedUnitPrice(t *testing.T) {
	tests := []struct {
		price, pct, want string
	}{
		{"100", "10", "90.00"},
		{"100", "0", "100.00"},
		{"100", "100", "0.00"},
		{"19.99", "15", "16.99"},   // 16.9915
		{"0.05", "50", "0.03"},     // 0.025 rounds half up
		{"10.01", "33.33", "6.67"}, // 6.673667
		{"0", "25", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.price+"@"+tt.pct, func(t *testing.T) {
			got, err := DiscountedUnitPrice(d(tt.price), d(tt.pct))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestDiscountedUnitPrice_Rejects(t *testing.T) {
	_, err := DiscountedUnitPrice(d("10"), d("-1"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = DiscountedUnitPrice(d("10"), d("100.01"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = DiscountedUnitPrice(d("-0.01"), d("0"))
	assert.ErrorIs(t, err, ErrNegativePrice)
}

func TestDiscountedUnitPrice_NeverExceedsPrice(t *testing.T) {
	for _, price := range []string{"0", "0.01", "1", "9.99", "100", "12345.67"} {
		for pct := 0; pct <= 100; pct += 5 {
			got, err := DiscountedUnitPrice(d(price), decimal.NewFromInt(int64(pct)))
			require.NoError(t, err)
			assert.True(t, got.LessThanOrEqual(d(price)), "%s@%d", price, pct)
			assert.False(t, got.IsNegative())
			if pct == 0 {
				assert.True(t, got.Equal(d(price).Round(Scale)))
			}
		}
	}
}

func TestLineTotal(t *testing.T) {
	got, err := LineTotal(d("16.99"), 3)
	require.NoError(t, err)
	assert.Equal(t, "50.97", Format(got))

	_, err = LineTotal(d("1"), -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSummarize(t *testing.T) {
	priced, totals, err := Summarize([]Line{
		{Price: d("100"), DiscountPct: d("10"), Quantity: 2},
		{Price: d("50"), DiscountPct: d("0"), Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, priced, 2)
	assert.Equal(t, "90.00", Format(priced[0].DiscountedUnit))
	assert.Equal(t, "180.00", Format(priced[0].Total))
	assert.Equal(t, 3, totals.Items)
	assert.Equal(t, "250.00", Format(totals.Subtotal))
	assert.Equal(t, "20.00", Format(totals.Discount))
	assert.Equal(t, "230.00", Format(totals.Total))
}

func TestSummarize_Empty(t *testing.T) {
	priced, totals, err := Summarize(nil)
	require.NoError(t, err)
	assert.Empty(t, priced)
	assert.Equal(t, "0.00", Format(totals.Total))
	assert.Equal(t, "0.00", Format(totals.Discount))
}

func TestSummarize_BadLine(t *testing.T) {
	_, _, err := Summarize([]Line{{Price: d("1"), DiscountPct: d("101"), Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

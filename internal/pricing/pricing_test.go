package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func catalogUZS(price string) Catalog {
	return Catalog{Price: dec(price), Currency: "UZS"}
}

func TestComputeSoldPriceResolution(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := now.Add(-time.Minute)

	override := dec("800")

	tests := []struct {
		name    string
		catalog Catalog
		price   *decimal.Decimal
		want    string
	}{
		{
			name:    "catalog price by default",
			catalog: catalogUZS("1000"),
			want:    "1000",
		},
		{
			name: "active discount price wins over catalog",
			catalog: Catalog{
				Price: dec("1000"), DiscountPrice: dec("900"),
				DiscountStart: &past, DiscountEnd: &future, Currency: "UZS",
			},
			want: "900",
		},
		{
			name: "expired discount falls back to catalog",
			catalog: Catalog{
				Price: dec("1000"), DiscountPrice: dec("900"),
				DiscountStart: &past, DiscountEnd: &expired, Currency: "UZS",
			},
			want: "1000",
		},
		{
			name: "explicit override beats active discount",
			catalog: Catalog{
				Price: dec("1000"), DiscountPrice: dec("900"),
				DiscountStart: &past, DiscountEnd: &future, Currency: "UZS",
			},
			price: &override,
			want:  "800",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []LineRequest{{ProductID: 1, Quantity: dec("2"), Price: tt.price}}
			catalog := map[uint]Catalog{1: tt.catalog}

			q, err := Compute(lines, catalog, "UZS", dec("1"), Discount{}, now)
			require.NoError(t, err)
			require.True(t, q.Lines[0].UnitPrice.Equal(dec(tt.want)),
				"unit price = %s, want %s", q.Lines[0].UnitPrice, tt.want)
			require.True(t, q.Lines[0].TotalPrice.Equal(dec(tt.want).Mul(dec("2"))))
			// Pre-discount total always uses the catalog price.
			require.True(t, q.TotalAmount.Equal(dec("2000")))
		})
	}
}

func TestComputeCurrencyConversion(t *testing.T) {
	now := time.Now()
	catalog := map[uint]Catalog{
		1: {Price: dec("5"), Currency: "USD"},
		2: {Price: dec("10000"), Currency: "UZS"},
	}
	lines := []LineRequest{
		{ProductID: 1, Quantity: dec("2")},
		{ProductID: 2, Quantity: dec("1")},
	}

	q, err := Compute(lines, catalog, "UZS", dec("12500"), Discount{}, now)
	require.NoError(t, err)

	// USD line converts at the order rate, the UZS line does not.
	require.True(t, q.Lines[0].UnitPrice.Equal(dec("62500")))
	require.True(t, q.Lines[1].UnitPrice.Equal(dec("10000")))
	require.True(t, q.ItemsTotal.Equal(dec("135000")))
}

func TestComputeConversionIsSymmetric(t *testing.T) {
	// A USD-settled order converts UZS-native prices with the same rule.
	catalog := map[uint]Catalog{1: {Price: dec("125000"), Currency: "UZS"}}
	lines := []LineRequest{{ProductID: 1, Quantity: dec("1")}}

	q, err := Compute(lines, catalog, "USD", dec("0.00008"), Discount{}, time.Now())
	require.NoError(t, err)
	require.True(t, q.Lines[0].UnitPrice.Equal(dec("10")))
}

func TestComputeGlobalDiscount(t *testing.T) {
	now := time.Now()
	catalog := map[uint]Catalog{1: catalogUZS("1000")}
	lines := []LineRequest{{ProductID: 1, Quantity: dec("10")}}

	t.Run("percent", func(t *testing.T) {
		q, err := Compute(lines, catalog, "UZS", dec("1"), Discount{Value: dec("10"), Type: DiscountPercent}, now)
		require.NoError(t, err)
		require.True(t, q.DiscountAmount.Equal(dec("1000")))
		require.True(t, q.FinalAmount.Equal(dec("9000")))
	})

	t.Run("fixed", func(t *testing.T) {
		q, err := Compute(lines, catalog, "UZS", dec("1"), Discount{Value: dec("2500"), Type: DiscountFixed}, now)
		require.NoError(t, err)
		require.True(t, q.DiscountAmount.Equal(dec("2500")))
		require.True(t, q.FinalAmount.Equal(dec("7500")))
	})

	t.Run("discount exceeding total is an error, not a clamp", func(t *testing.T) {
		_, err := Compute(lines, catalog, "UZS", dec("1"), Discount{Value: dec("10001"), Type: DiscountFixed}, now)
		require.ErrorIs(t, err, ErrNegativeTotal)
	})

	t.Run("discount exactly equal to total is fine", func(t *testing.T) {
		q, err := Compute(lines, catalog, "UZS", dec("1"), Discount{Value: dec("10000"), Type: DiscountFixed}, now)
		require.NoError(t, err)
		require.True(t, q.FinalAmount.IsZero())
	})
}

func TestComputeExactDecimalMath(t *testing.T) {
	// 0.1 + 0.2 style drift must not appear in totals.
	catalog := map[uint]Catalog{1: catalogUZS("0.1"), 2: catalogUZS("0.2")}
	lines := []LineRequest{
		{ProductID: 1, Quantity: dec("3")},
		{ProductID: 2, Quantity: dec("3")},
	}

	q, err := Compute(lines, catalog, "UZS", dec("1"), Discount{}, time.Now())
	require.NoError(t, err)
	require.True(t, q.ItemsTotal.Equal(dec("0.9")), "items total = %s", q.ItemsTotal)
}

func TestComputeMissingCatalogEntry(t *testing.T) {
	lines := []LineRequest{{ProductID: 7, Quantity: dec("1")}}
	_, err := Compute(lines, map[uint]Catalog{}, "UZS", dec("1"), Discount{}, time.Now())
	require.Error(t, err)
}

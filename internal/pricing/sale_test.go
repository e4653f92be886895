package pricing

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/money"
)

func raw(regular, price string, precision Precision) RawPrices {
	return RawPrices{RegularPrice: regular, Price: price, Precision: precision}
}

func TestSaleAmountMarkdown(t *testing.T) {
	got, err := SaleAmount(raw("1000", "800", IntPrecision(2)), 2)
	require.NoError(t, err)
	require.Equal(t, int64(200), got)
}

func TestSaleAmountTargetPrecision(t *testing.T) {
	got, err := SaleAmount(raw("1000", "800", IntPrecision(2)), 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), got)

	got, err = SaleAmount(raw("1000", "800", IntPrecision(2)), 3)
	require.NoError(t, err)
	require.Equal(t, int64(2000), got)

	got, err = SaleAmount(raw("1000", "850", IntPrecision(2)), 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), got, "1.50 rounds half up")
}

func TestSaleAmountNoDiscountIsZero(t *testing.T) {
	cases := []RawPrices{
		raw("800", "800", IntPrecision(2)),
		raw("800", "1000", IntPrecision(2)),
		raw("", "", IntPrecision(2)),
		raw("-5", "0", IntPrecision(2)),
	}
	for _, c := range cases {
		got, err := SaleAmount(c, 2)
		require.NoError(t, err)
		require.Zero(t, got, "regular=%q price=%q", c.RegularPrice, c.Price)
	}
}

func TestSaleAmountMalformedPriceDegrades(t *testing.T) {
	got, err := SaleAmount(raw("abc", "800", IntPrecision(2)), 2)
	require.NoError(t, err)
	require.Zero(t, got)

	got, err = SaleAmount(raw("1000", "", IntPrecision(2)), 2)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got)

	got, err = SaleAmount(raw("1000 IDR", "800.50", IntPrecision(2)), 2)
	require.NoError(t, err)
	require.Equal(t, int64(200), got)
}

func TestSaleAmountStringPrecision(t *testing.T) {
	got, err := SaleAmount(raw("1000", "800", StringPrecision("2")), 2)
	require.NoError(t, err)
	require.Equal(t, int64(200), got)
}

func TestSaleAmountInvalidPrecision(t *testing.T) {
	bad := []Precision{
		StringPrecision("n/a"),
		StringPrecision(""),
		StringPrecision("-1"),
		IntPrecision(-2),
		IntPrecision(money.MaxPrecision + 1),
		{},
	}
	for _, p := range bad {
		_, err := SaleAmount(raw("1000", "800", p), 2)
		require.ErrorIs(t, err, ErrInvalidArgument, "precision %q", p.String())
	}

	_, err := SaleAmount(raw("1000", "800", IntPrecision(2)), -1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSaleAmountOverflow(t *testing.T) {
	_, err := SaleAmount(raw("9223372036854775807", "0", IntPrecision(0)), 2)
	require.ErrorIs(t, err, money.ErrOverflow)

	_, err = SaleAmount(raw("9223372036854775807", "-9223372036854775807", IntPrecision(0)), 0)
	require.ErrorIs(t, err, money.ErrOverflow)

	got, err := SaleAmount(raw("9223372036854775807", "0", IntPrecision(0)), 0)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), got)
}

func TestSaleMoneyFormatting(t *testing.T) {
	sale, err := SaleMoney(raw("125000", "99900", IntPrecision(2)), 2)
	require.NoError(t, err)
	require.Equal(t, "251.00", sale.String())
}

func TestRawPricesJSONPrecision(t *testing.T) {
	var fromNumber RawPrices
	require.NoError(t, json.Unmarshal([]byte(`{"regular_price":"1000","price":"800","precision":2}`), &fromNumber))
	p, err := fromNumber.Precision.Int()
	require.NoError(t, err)
	require.Equal(t, 2, p)

	var fromString RawPrices
	require.NoError(t, json.Unmarshal([]byte(`{"regular_price":"1000","price":"800","precision":"3"}`), &fromString))
	p, err = fromString.Precision.Int()
	require.NoError(t, err)
	require.Equal(t, 3, p)

	var fromBool RawPrices
	require.NoError(t, json.Unmarshal([]byte(`{"regular_price":"1000","price":"800","precision":true}`), &fromBool))
	_, err = fromBool.Precision.Int()
	require.ErrorIs(t, err, ErrInvalidArgument)

	encoded, err := json.Marshal(fromString)
	require.NoError(t, err)
	require.JSONEq(t, `{"regular_price":"1000","price":"800","precision":"3"}`, string(encoded))
}

func TestPrecisionRejectsHugeExponents(t *testing.T) {
	for _, in := range []string{"1e9999999", "2e-9999999", "1e999999999", "-1e9999999", "1e21"} {
		var p Precision
		require.NoError(t, json.Unmarshal([]byte(in), &p))
		_, err := p.Int()
		require.ErrorIs(t, err, ErrInvalidArgument, "precision %s", in)

		_, err = NormalizePrecision(json.Number(in))
		require.ErrorIs(t, err, ErrInvalidArgument, "precision %s", in)
	}

	for in, want := range map[string]int{"1.8e1": 18, "2.0": 2, "180e-1": 18, "2.5": 2} {
		var p Precision
		require.NoError(t, json.Unmarshal([]byte(in), &p))
		got, err := p.Int()
		require.NoError(t, err, "precision %s", in)
		require.Equal(t, want, got, "precision %s", in)
	}
}

func TestNormalizePrecision(t *testing.T) {
	ok := map[string]struct {
		in   any
		want int
	}{
		"int":          {in: 2, want: 2},
		"int64":        {in: int64(4), want: 4},
		"float":        {in: 2.0, want: 2},
		"float trunc":  {in: 2.9, want: 2},
		"string":       {in: " 3 ", want: 3},
		"leading":      {in: "2dp", want: 2},
		"json number":  {in: json.Number("0"), want: 0},
		"precision":    {in: IntPrecision(1), want: 1},
		"json decimal": {in: json.Number("2.5"), want: 2},
	}
	for name, tc := range ok {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizePrecision(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	bad := []any{math.NaN(), math.Inf(1), "n/a", -1, nil, true, 1e12}
	for _, in := range bad {
		_, err := NormalizePrecision(in)
		require.ErrorIs(t, err, ErrInvalidArgument, "input %v", in)
	}
}

func TestSaleAmountConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]int64, 64)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := SaleAmount(raw("1000", "800", IntPrecision(2)), 2)
			if err == nil {
				results[i] = v
			}
		}()
	}
	wg.Wait()
	for _, v := range results {
		require.Equal(t, int64(200), v)
	}
}

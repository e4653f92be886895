package pricing

import (
	"fmt"
	"math"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Amount is a monetary value in minor units of the store currency.
type Amount = int64

// Item describes a line item used for quote calculation. RegularPrice is the
// undiscounted unit price; zero means the item is not on sale.
type Item struct {
	Qty          int
	UnitPrice    Amount
	RegularPrice Amount
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Amount
	Savings  Amount
	Discount Amount
	Tax      Amount
	Shipping Amount
	Total    Amount
}

// Compute calculates cart totals given the provided inputs. Any component
// that does not fit in an Amount yields money.ErrOverflow.
func Compute(items []Item, voucher Amount, taxBps int, shipping Amount) (Summary, error) {
	var subtotal, savings Amount
	for i, it := range items {
		if it.Qty <= 0 {
			continue
		}
		line, err := mulAmount(Amount(it.Qty), it.UnitPrice)
		if err != nil {
			return Summary{}, fmt.Errorf("item %d: %w", i, err)
		}
		if subtotal, err = addAmount(subtotal, line); err != nil {
			return Summary{}, fmt.Errorf("subtotal: %w", err)
		}
		if it.RegularPrice > it.UnitPrice {
			saved, err := mulAmount(Amount(it.Qty), it.RegularPrice-it.UnitPrice)
			if err != nil {
				return Summary{}, fmt.Errorf("item %d savings: %w", i, err)
			}
			if savings, err = addAmount(savings, saved); err != nil {
				return Summary{}, fmt.Errorf("savings: %w", err)
			}
		}
	}
	if voucher < 0 {
		voucher = 0
	}
	if voucher > subtotal {
		voucher = subtotal
	}
	taxable := subtotal - voucher
	if taxable < 0 {
		taxable = 0
	}
	scaled, err := mulAmount(taxable, Amount(taxBps))
	if err != nil {
		return Summary{}, fmt.Errorf("tax: %w", err)
	}
	tax := scaled / 10000
	total, err := addAmount(taxable, tax)
	if err == nil {
		total, err = addAmount(total, shipping)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("total: %w", err)
	}
	return Summary{
		Subtotal: subtotal,
		Savings:  savings,
		Discount: voucher,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
	}, nil
}

func mulAmount(a, b Amount) (Amount, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, money.ErrOverflow
	}
	return p, nil
}

func addAmount(a, b Amount) (Amount, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, money.ErrOverflow
	}
	return s, nil
}

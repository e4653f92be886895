package pricing

import (
	"fmt"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// RawPrices carries price data as served by the catalog pricing API: integer
// minor-unit strings paired with the precision they are expressed in.
type RawPrices struct {
	RegularPrice string    `json:"regular_price"`
	Price        string    `json:"price"`
	Precision    Precision `json:"precision"`
}

// SaleAmount returns the per-unit discount between the regular and current
// price, in minor units of targetPrecision. The result is never negative.
func SaleAmount(raw RawPrices, targetPrecision int) (int64, error) {
	sale, err := SaleMoney(raw, targetPrecision)
	if err != nil {
		return 0, err
	}
	return sale.Amount, nil
}

// SaleMoney is SaleAmount returning the discount as a Money value.
//
// Price strings that do not start with an integer count as zero. Only an
// unusable precision is reported as an error.
func SaleMoney(raw RawPrices, targetPrecision int) (money.Money, error) {
	source, err := raw.Precision.Int()
	if err != nil {
		return money.Money{}, fmt.Errorf("source precision: %w", err)
	}
	if _, err := checkedPrecision(int64(targetPrecision), targetPrecision); err != nil {
		return money.Money{}, fmt.Errorf("target precision: %w", err)
	}

	regular, err := money.New(common.ParseLeadingInt(raw.RegularPrice), source)
	if err != nil {
		return money.Money{}, err
	}
	purchase, err := money.New(common.ParseLeadingInt(raw.Price), source)
	if err != nil {
		return money.Money{}, err
	}
	if purchase.Cmp(regular) >= 0 {
		return money.Money{Amount: 0, Precision: targetPrecision}, nil
	}

	diff, err := money.Subtract(regular, purchase)
	if err != nil {
		return money.Money{}, err
	}
	return money.ConvertPrecision(diff, targetPrecision)
}

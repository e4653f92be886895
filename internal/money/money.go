package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxPrecision bounds the number of minor-unit digits accepted by the package.
// int64 minor units cannot hold a meaningful major amount beyond it.
const MaxPrecision = 18

var (
	// ErrInvalidArgument is returned when a precision cannot be used.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPrecisionMismatch is returned when combining amounts of different precision.
	ErrPrecisionMismatch = fmt.Errorf("%w: precision mismatch", ErrInvalidArgument)
	// ErrOverflow indicates the result does not fit in int64 minor units.
	ErrOverflow = errors.New("money overflow")
)

var half = decimal.New(5, -1)

// Money is an exact amount expressed as an integer count of minor units.
// Precision is the number of decimal digits the minor unit represents, so
// Money{Amount: 1050, Precision: 2} is 10.50.
type Money struct {
	Amount    int64
	Precision int
}

// New constructs a Money value.
func New(amount int64, precision int) (Money, error) {
	if err := checkPrecision(precision); err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Precision: precision}, nil
}

// Subtract returns a - b. Both operands must share the same precision.
func Subtract(a, b Money) (Money, error) {
	if a.Precision != b.Precision {
		return Money{}, fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, a.Precision, b.Precision)
	}
	diff := a.Amount - b.Amount
	if (b.Amount > 0 && diff > a.Amount) || (b.Amount < 0 && diff < a.Amount) {
		return Money{}, fmt.Errorf("subtract %d - %d: %w", a.Amount, b.Amount, ErrOverflow)
	}
	return Money{Amount: diff, Precision: a.Precision}, nil
}

// ConvertPrecision rescales m to the target precision. Scaling up is exact;
// scaling down rounds half up on the scaled value.
func ConvertPrecision(m Money, target int) (Money, error) {
	if err := checkPrecision(target); err != nil {
		return Money{}, err
	}
	if err := checkPrecision(m.Precision); err != nil {
		return Money{}, err
	}
	if target == m.Precision {
		return m, nil
	}

	scaled := decimal.New(m.Amount, 0).Shift(int32(target - m.Precision))
	if target < m.Precision {
		scaled = scaled.Add(half).Floor()
	}
	amount := scaled.BigInt()
	if !amount.IsInt64() {
		return Money{}, fmt.Errorf("convert %d from precision %d to %d: %w", m.Amount, m.Precision, target, ErrOverflow)
	}
	return Money{Amount: amount.Int64(), Precision: target}, nil
}

// Decimal returns the exact major-unit value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(m.Precision))
}

// Cmp compares two amounts by value regardless of precision.
func (m Money) Cmp(other Money) int {
	if m.Precision == other.Precision {
		switch {
		case m.Amount < other.Amount:
			return -1
		case m.Amount > other.Amount:
			return 1
		default:
			return 0
		}
	}
	return m.Decimal().Cmp(other.Decimal())
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// String renders the amount in major units with exactly Precision decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(int32(m.Precision))
}

func checkPrecision(precision int) error {
	if precision < 0 || precision > MaxPrecision {
		return fmt.Errorf("%w: precision %d out of range [0,%d]", ErrInvalidArgument, precision, MaxPrecision)
	}
	return nil
}

package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// ErrInvalidArgument is returned when a source or target precision cannot be
// normalised to a non-negative integer.
var ErrInvalidArgument = money.ErrInvalidArgument

// maxPrecisionExponent bounds the decimal exponent of a numeric precision.
// Values outside it cannot land in [0,MaxPrecision] and are rejected before
// any rescaling.
const maxPrecisionExponent = 20

// Precision is a source precision as supplied by the upstream pricing API.
// The API sends it either as a JSON number or as a string.
type Precision struct {
	raw   string
	isNum bool
	valid bool
}

// IntPrecision returns a Precision holding a numeric value.
func IntPrecision(p int) Precision {
	return Precision{raw: strconv.Itoa(p), isNum: true, valid: true}
}

// StringPrecision returns a Precision holding a string value.
func StringPrecision(s string) Precision {
	return Precision{raw: s, valid: true}
}

// UnmarshalJSON accepts numbers and strings. Any other JSON value decodes
// without error and fails later on normalisation.
func (p *Precision) UnmarshalJSON(data []byte) error {
	*p = Precision{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*p = StringPrecision(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*p = Precision{raw: n.String(), isNum: true, valid: true}
	}
	return nil
}

// MarshalJSON writes the precision back in the form it was received.
func (p Precision) MarshalJSON() ([]byte, error) {
	switch {
	case !p.valid:
		return []byte("null"), nil
	case p.isNum:
		return []byte(p.raw), nil
	default:
		return json.Marshal(p.raw)
	}
}

// Int normalises the precision to an integer.
func (p Precision) Int() (int, error) {
	if !p.valid {
		return 0, fmt.Errorf("%w: precision missing", ErrInvalidArgument)
	}
	if p.isNum {
		d, err := decimal.NewFromString(p.raw)
		if err != nil {
			return 0, fmt.Errorf("%w: precision %q: %v", ErrInvalidArgument, p.raw, err)
		}
		if exp := d.Exponent(); exp > maxPrecisionExponent || exp < -maxPrecisionExponent {
			return 0, fmt.Errorf("%w: precision %s out of range [0,%d]", ErrInvalidArgument, p.raw, money.MaxPrecision)
		}
		whole := d.Truncate(0)
		if whole.Sign() < 0 || whole.GreaterThan(decimal.NewFromInt(money.MaxPrecision)) {
			return 0, fmt.Errorf("%w: precision %s out of range [0,%d]", ErrInvalidArgument, p.raw, money.MaxPrecision)
		}
		return int(whole.IntPart()), nil
	}
	n, ok := common.LeadingInt(p.raw)
	if !ok {
		return 0, fmt.Errorf("%w: precision %q is not numeric", ErrInvalidArgument, p.raw)
	}
	return checkedPrecision(n, p.raw)
}

// String returns the raw precision value.
func (p Precision) String() string {
	return p.raw
}

// NormalizePrecision converts a precision of any supported Go type to an int.
// Strings follow the leading-integer convention; floats must be finite.
func NormalizePrecision(v any) (int, error) {
	switch val := v.(type) {
	case Precision:
		return val.Int()
	case int:
		return checkedPrecision(int64(val), val)
	case int32:
		return checkedPrecision(int64(val), val)
	case int64:
		return checkedPrecision(val, val)
	case uint8:
		return checkedPrecision(int64(val), val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("%w: precision %v is not finite", ErrInvalidArgument, val)
		}
		if val >= math.MaxInt32 || val <= math.MinInt32 {
			return 0, fmt.Errorf("%w: precision %v out of range", ErrInvalidArgument, val)
		}
		return checkedPrecision(int64(math.Trunc(val)), val)
	case json.Number:
		return Precision{raw: val.String(), isNum: true, valid: true}.Int()
	case string:
		return StringPrecision(strings.TrimSpace(val)).Int()
	case nil:
		return 0, fmt.Errorf("%w: precision missing", ErrInvalidArgument)
	default:
		return 0, fmt.Errorf("%w: unsupported precision type %T", ErrInvalidArgument, v)
	}
}

func checkedPrecision(n int64, raw any) (int, error) {
	if n < 0 || n > money.MaxPrecision {
		return 0, fmt.Errorf("%w: precision %v out of range [0,%d]", ErrInvalidArgument, raw, money.MaxPrecision)
	}
	return int(n), nil
}

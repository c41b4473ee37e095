package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are stored as int64 minor units at a fixed scale of 8 decimal
// places (1 unit = 1e-8 of the asset), which is fine-grained enough for
// crypto assets and exact for fiat-style ones.
const Scale = 8

const minorPerUnit = 100_000_000

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// ParseMinor converts a decimal string into minor units. More than Scale
// fractional digits is rejected rather than silently rounded.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	parts := strings.SplitN(trimmed, ".", 2)
	wholePart := parts[0]
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) {
		return 0, ErrInvalidAmount
	}
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > Scale {
		return 0, ErrTooManyDecimals
	}
	if fracPart != "" && !isDigits(fracPart) {
		return 0, ErrInvalidAmount
	}
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	frac := int64(0)
	if fracPart != "" {
		padded := fracPart + strings.Repeat("0", Scale-len(fracPart))
		frac, err = strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
	}
	if whole > (1<<63-1)/minorPerUnit {
		return 0, ErrInvalidAmount
	}
	return sign * (whole*minorPerUnit + frac), nil
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	formatted := fmt.Sprintf("%d.%08d", value/minorPerUnit, value%minorPerUnit)
	if negative {
		return "-" + formatted
	}
	return formatted
}

// ConvertMinor reprices amount from one asset into another through the
// reference unit: amount * fromPrice / toPrice. The result is truncated
// toward zero so a conversion never credits more than the exact value;
// a round trip at unchanged prices can lose at most one minor unit and
// never gains one.
func ConvertMinor(amount int64, fromPrice, toPrice decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(fromPrice).Div(toPrice).Truncate(0).IntPart()
}

// ApplyRate multiplies a minor amount by a decimal rate, truncating toward
// zero. Used for daily accrual and abort refunds.
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Truncate(0).IntPart()
}

func ValueToInt64(value interface{}) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case []byte:
		parsed, _ := strconv.ParseInt(string(v), 10, 64)
		return parsed
	case string:
		parsed, _ := strconv.ParseInt(v, 10, 64)
		return parsed
	default:
		parsed, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		return parsed
	}
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Package lenient converts loosely typed inbound values into domain values.
// Every parser returns whether the fallback was used so callers can log or
// test the substitution instead of failing the request.
package lenient

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayouts are tried in order for string timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// millisThreshold separates epoch seconds from epoch milliseconds.
const millisThreshold = 1e11

// Timestamps must encode as RFC 3339, which allows years 1 through 9999.
var (
	minTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// maxDigits bounds the significant digits accepted by Bounded. Wider
// inputs cannot fit any stored column and are costly to rescale.
const maxDigits = 40

// text returns the trimmed textual form of v, or "" when v carries nothing.
func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// String returns v as a trimmed string, or fallback when it is empty.
func String(v interface{}, fallback string) (string, bool) {
	s := text(v)
	if s == "" {
		return fallback, true
	}
	return s, false
}

// OptionalString returns nil for empty input.
func OptionalString(v interface{}) *string {
	s := text(v)
	if s == "" {
		return nil
	}
	return &s
}

// Decimal parses v as a decimal, returning fallback when it is absent or malformed.
func Decimal(v interface{}, fallback decimal.Decimal) (decimal.Decimal, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, false
	}
	s := text(v)
	if s == "" {
		return fallback, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback, true
	}
	return d, false
}

// OptionalDecimal parses v as a decimal, returning nil when it is absent or malformed.
func OptionalDecimal(v interface{}) *decimal.Decimal {
	d, defaulted := Decimal(v, decimal.Zero)
	if defaulted {
		return nil
	}
	return &d
}

// Bounded parses v like Decimal and rounds it to scale places. Values that
// do not fit NUMERIC(precision, scale) after rounding return fallback.
func Bounded(v interface{}, fallback decimal.Decimal, precision, scale int32) (decimal.Decimal, bool) {
	d, defaulted := Decimal(v, fallback)
	if defaulted {
		return fallback, true
	}
	digits, ok := significantDigits(d)
	if !ok {
		return fallback, true
	}
	// everything below half a unit in the last place rounds to zero
	if digits+d.Exponent() < -scale {
		return decimal.Zero, false
	}
	if digits+d.Exponent() > precision-scale {
		return fallback, true
	}

	rounded := d.Round(scale)
	if digits, ok = significantDigits(rounded); !ok || digits+rounded.Exponent() > precision-scale {
		return fallback, true
	}
	return rounded, false
}

// OptionalBounded is Bounded returning nil instead of a fallback.
func OptionalBounded(v interface{}, precision, scale int32) *decimal.Decimal {
	d, defaulted := Bounded(v, decimal.Zero, precision, scale)
	if defaulted {
		return nil
	}
	return &d
}

// significantDigits counts the coefficient's digits, refusing anything
// wider than maxDigits before formatting it.
func significantDigits(d decimal.Decimal) (int32, bool) {
	c := d.Coefficient()
	if c.BitLen() > maxDigits*4 {
		return 0, false
	}
	n := len(c.Abs(c).String())
	if n > maxDigits {
		return 0, false
	}
	return int32(n), true
}

// OptionalInt parses v as an integer id, returning nil when it is absent or malformed.
func OptionalInt(v interface{}) *int {
	s := text(v)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return nil
		}
		n = int(f)
	}
	return &n
}

// Time parses v as a timestamp. Strings are tried against the supported
// layouts; numbers are epoch seconds, or milliseconds when large enough.
// Results outside years 1-9999 count as parse failures.
func Time(v interface{}, fallback time.Time) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() || !inRange(t) {
			return fallback, true
		}
		return t, false
	}
	s := text(v)
	if s == "" {
		return fallback, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if !inRange(t) {
				return fallback, true
			}
			return t, false
		}
	}
	if t, ok := epoch(s); ok {
		return t, false
	}
	return fallback, true
}

// epoch converts a positive epoch number. The float is range checked
// before any integer conversion so huge values cannot wrap.
func epoch(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f <= 0 {
		return time.Time{}, false
	}
	if f >= millisThreshold {
		if f > float64(maxTime.UnixMilli()) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

func inRange(t time.Time) bool {
	return !t.Before(minTime) && !t.After(maxTime)
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in minor currency units (piasters for EGP).
// The upstream API sends prices as decimal numbers in major units; arithmetic on
// Money is exact, so cart totals never drift from the sum of their lines.
type Money int64

// ParseMoney converts a decimal major-unit string to Money.
// Examples: "149" → 14900, "1234.56" → 123456, "" → 0
func ParseMoney(s string) Money {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return Money(math.Round(f * 100))
}

// Times returns m multiplied by a line quantity.
func (m Money) Times(count int) Money {
	return m * Money(count)
}

// Major returns the amount in major units.
func (m Money) Major() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Major(), 'f', 2, 64)
}

// MarshalJSON writes the amount in major units, matching the upstream wire format.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Major(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts numbers and numeric strings in major units.
// null leaves the value unchanged.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = ParseMoney(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = Money(math.Round(f * 100))
	return nil
}

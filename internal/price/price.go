// Package price handles price values from prediction market APIs
// without losing precision.
package price

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Price is a probability price scaled by PriceScale (1.0 == 1_000_000).
type Price int64

// Size is an order quantity with the same scale as Price.
type Size int64

var (
	_ json.Unmarshaler = (*Price)(nil)
	_ json.Unmarshaler = (*Size)(nil)
)

const PriceScale int64 = 1_000_000

// Parse reads a decimal string such as "0.42" or "17". Digits beyond the
// sixth fractional place are truncated.
func Parse(s string) (Price, error) {
	v, err := parseFixed([]byte(s))
	return Price(v), err
}

// FromFloat rounds f to the nearest representable price.
func FromFloat(f float64) Price {
	if f < 0 {
		return Price(f*float64(PriceScale) - 0.5)
	}
	return Price(f*float64(PriceScale) + 0.5)
}

func (p Price) Float64() float64 {
	return float64(p) / float64(PriceScale)
}

func (p Price) String() string {
	return strconv.FormatFloat(p.Float64(), 'f', -1, 64)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	v, err := parseFixed(unquote(data))
	if err != nil {
		return err
	}
	*p = Price(v)
	return nil
}

func (s Size) Float64() float64 {
	return float64(s) / float64(PriceScale)
}

func (s *Size) UnmarshalJSON(data []byte) error {
	v, err := parseFixed(unquote(data))
	if err != nil {
		return err
	}
	*s = Size(v)
	return nil
}

func unquote(data []byte) []byte {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		return data[1 : len(data)-1]
	}
	// Else we assume that it is a raw number.
	return data
}

func parseFixed(data []byte) (int64, error) {
	if len(data) == 0 || string(data) == "null" {
		return 0, nil
	}

	neg := false
	if data[0] == '-' {
		neg = true
		data = data[1:]
	}

	var res int64
	i := 0

	for i < len(data) && data[i] != '.' {
		if data[i] < '0' || data[i] > '9' {
			return 0, fmt.Errorf("invalid price %q", data)
		}
		res = res*10 + int64(data[i]-'0')*PriceScale
		i++
	}

	if i < len(data) && data[i] == '.' {
		i++
		mult := PriceScale
		for i < len(data) {
			if data[i] < '0' || data[i] > '9' {
				return 0, fmt.Errorf("invalid price %q", data)
			}
			mult /= 10
			res += int64(data[i]-'0') * mult
			i++
		}
	}

	if neg {
		res = -res
	}
	return res, nil
}

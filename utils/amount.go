package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal that also accepts user-formatted strings in JSON input,
// e.g. "20,000", "IQD 20,000", "$1,250.50".
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func AmountFromInt(v int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(v)}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			a.Decimal = decimal.Zero
			return nil
		}
		d, err := ParseAmount(s)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	a.Decimal = d
	return nil
}

var (
	amountPattern   = regexp.MustCompile(`^(\d+|\d{1,3}(,\d{3})+)(\.\d+)?$`)
	currencyMarkers = []string{"IQD", "USD", "$", "د.ع"}
)

// ParseAmount accepts an optional sign, at most one currency marker before or
// after the number, and ',' thousands separators between digit groups.
// Anything else is rejected.
func ParseAmount(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = trimCurrencyMarker(s)
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid amount %q", value)
	}
	clean := strings.ReplaceAll(s, ",", "")
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}

func trimCurrencyMarker(s string) string {
	for _, marker := range currencyMarkers {
		n := len(marker)
		if len(s) < n {
			continue
		}
		if strings.EqualFold(s[:n], marker) {
			return strings.TrimSpace(s[n:])
		}
		if strings.EqualFold(s[len(s)-n:], marker) {
			return strings.TrimSpace(s[:len(s)-n])
		}
	}
	return s
}

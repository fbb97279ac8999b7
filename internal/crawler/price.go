package crawler

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice parses a published price string into a fixed-point decimal
// with two places, rounded half-up.
//
// Accepted forms: plain decimals ("1.50"), comma as decimal separator
// ("1,50"), thousands grouping with dot, comma or space ("1.200,50",
// "1 200,50"), missing leading zero (",50"), and trailing "€" or "EUR".
//
// For required fields a blank or unparseable value is an error; for
// optional fields it yields nil.
func ParsePrice(s string, required bool) (*decimal.Decimal, error) {
	// When both separators appear, the first one is thousands grouping.
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		if strings.Index(s, ",") < strings.Index(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "EUR", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)

	if s == "" {
		if required {
			return nil, fmt.Errorf("price is required")
		}
		return nil, nil
	}

	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		if required {
			return nil, fmt.Errorf("invalid price format: %q", s)
		}
		return nil, nil
	}
	if d.IsNegative() {
		if required {
			return nil, fmt.Errorf("negative price: %q", s)
		}
		return nil, nil
	}

	rounded := d.Round(2)
	return &rounded, nil
}

package intake

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseBatchAmount parses an amount cell into a two-decimal value.
// Format examples: "1250.00" (plain), "1.250,00" (european).
func parseBatchAmount(s string, format amountFormat) (decimal.Decimal, error) {
	if format == amountEuropean {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return d.Round(2), nil
}

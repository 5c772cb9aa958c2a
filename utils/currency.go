package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrencyNGN formats a float64 value as a Nigerian Naira string.
// Example: 15000.5 -> "NGN 15,000.50"
func FormatCurrencyNGN(amount float64) string {
	return formatMoney("NGN", amount)
}

// FormatMoney formats an amount using its ISO currency code as prefix.
// Example: FormatMoney("USD", 120) -> "USD 120.00"
func FormatMoney(currency string, amount float64) string {
	return formatMoney(strings.ToUpper(currency), amount)
}

func formatMoney(prefix string, amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	// Round to 2 decimals first so 999.999 does not format as 999.100
	amount = math.Round(amount*100) / 100
	formatted := fmt.Sprintf("%.2f", amount)

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	// Insert thousands separators into the integer part
	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s %s%s.%s", prefix, sign, strings.Join(groups, ","), decimalPart)
}

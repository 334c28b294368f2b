package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrencyIDR formats a float64 value as a currency string in Indonesian Rupiah format
// Example: 15000.50 -> "Rp 15.000,50"
func FormatCurrencyIDR(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	integer := cents / 100
	decimal := cents % 100

	// Memformat bagian integer dengan pemisah ribuan
	var groups []string
	for integer >= 1000 {
		groups = append([]string{fmt.Sprintf("%03d", integer%1000)}, groups...)
		integer /= 1000
	}
	groups = append([]string{fmt.Sprintf("%d", integer)}, groups...)
	integerStr := strings.Join(groups, ".")

	if decimal > 0 {
		return fmt.Sprintf("%sRp %s,%02d", sign, integerStr, decimal)
	}
	return fmt.Sprintf("%sRp %s", sign, integerStr)
}

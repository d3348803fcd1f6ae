package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT FORMATTING - presentation edge only
// =============================================================================

// FormatAmount renders "1,234.56": comma thousands, dot decimal. Primary
// currency output.
func FormatAmount(d decimal.Decimal) string {
	return group(d, ",", ".")
}

// FormatAmountVE renders "1.234,56": Spanish-VE locale for the secondary
// currency.
func FormatAmountVE(d decimal.Decimal) string {
	return group(d, ".", ",")
}

func group(d decimal.Decimal, thousands, dec string) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	b.WriteString(dec)
	b.WriteString(fracPart)
	return b.String()
}

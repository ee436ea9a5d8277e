package notify

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"donation-relay/internal/domain/entity"
)

// Formatter renders a donation as a one-line chat announcement.
type Formatter struct {
	// CurrencySymbol is placed directly before the amount, e.g. "$".
	CurrencySymbol string
}

// NewFormatter creates a Formatter using symbol as the currency prefix.
func NewFormatter(symbol string) Formatter {
	return Formatter{CurrencySymbol: symbol}
}

// Format returns the announcement for d, for example:
//
//	We have a $1,250.00 donation from Alice with the comment "Go team!"
//
// The comment clause is left out when the donor left no comment or a blank one.
func (f Formatter) Format(d *entity.Donation) string {
	var b strings.Builder

	b.WriteString("We have a ")
	b.WriteString(f.CurrencySymbol)
	b.WriteString(formatAmount(d))
	b.WriteString(" donation from ")
	b.WriteString(d.DonorName)

	if d.HasComment() {
		b.WriteString(` with the comment "`)
		b.WriteString(*d.DonorComment)
		b.WriteString(`"`)
	}

	return b.String()
}

// formatAmount groups thousands and keeps two decimals, rounding half away
// from zero. Digits never pass through a float, so large amounts print exactly.
func formatAmount(d *entity.Donation) string {
	fixed := d.Amount.Value.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	sign := ""
	if d.Amount.Value.Round(2).IsNegative() {
		sign = "-"
	}
	return sign + groupThousands(whole) + "." + cents
}

// groupThousands inserts separators into a string of digits. Values that fit
// an int64 go through the English printer.
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return message.NewPrinter(language.English).Sprintf("%d", n)
	}

	var b strings.Builder
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

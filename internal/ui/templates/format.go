package templates

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money renders a rupee amount with thousands separators, e.g. ₹1,151.15.
func Money(v float64) string {
	return printer.Sprintf("₹%.2f", v)
}

func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// Percent renders a 0..1 ratio as a percentage.
func Percent(v float64) string {
	return printer.Sprintf("%.1f%%", v*100)
}

func Decimal(v float64) string {
	return printer.Sprintf("%.2f", v)
}

package main

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// money formats a monetary amount with thousands separators for CLI output.
func money(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

// pct formats a percentage with one decimal place.
func pct(v float64) string {
	return moneyPrinter.Sprintf("%.1f%%", v)
}

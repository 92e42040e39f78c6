package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes how a currency code is displayed.
type Currency struct {
	Code        string
	Symbol      string
	Name        string
	MinorDigits int32
}

// DefaultCurrency is used when a record carries no currency code.
const DefaultCurrency = "USD"

// Currencies is the display table. The ledger itself never reads it.
var Currencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar", MinorDigits: 2},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro", MinorDigits: 2},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound", MinorDigits: 2},
	"INR": {Code: "INR", Symbol: "₹", Name: "Indian Rupee", MinorDigits: 2},
	"CAD": {Code: "CAD", Symbol: "C$", Name: "Canadian Dollar", MinorDigits: 2},
	"AUD": {Code: "AUD", Symbol: "A$", Name: "Australian Dollar", MinorDigits: 2},
	"JPY": {Code: "JPY", Symbol: "¥", Name: "Japanese Yen", MinorDigits: 0},
}

// LookupCurrency returns the display entry for code. Unknown codes get the
// code itself followed by a space as their symbol and two minor digits.
func LookupCurrency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	if c, ok := Currencies[code]; ok {
		return c, true
	}
	return Currency{Code: code, Symbol: code + " ", Name: code, MinorDigits: MinorDigits}, false
}

// IsKnownCurrency reports whether code is in the display table.
func IsKnownCurrency(code string) bool {
	_, ok := LookupCurrency(code)
	return ok
}

// Format renders a for display in the given currency, e.g. "$12.34" or "-€3.00".
func Format(a Amount, code string) string {
	c, _ := LookupCurrency(code)
	d := a.Decimal().Abs().Round(c.MinorDigits)
	s := c.Symbol + d.StringFixed(c.MinorDigits)
	if a.IsNegative() && !d.Equal(decimal.Zero) {
		return "-" + s
	}
	return s
}

// Package locale renders amounts, distances and instants for people.
package locale

import (
	"fmt"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"github.com/govalues/money"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

// Formatter implements ledger.Formatter for one language, currency and zone.
type Formatter struct {
	curr   money.Currency
	symbol string
	// suffix places the symbol after the number ("1.234,50 €").
	suffix  bool
	printer *message.Printer
	loc     *time.Location
	layout  string
}

// Options configure New. Empty fields take the defaults shown.
type Options struct {
	Tag      string // "en-US"
	Currency string // "USD"
	TimeZone string // "UTC"
	Layout   string // "Jan 2, 2006 3:04 PM"
}

// New builds a Formatter. Unknown tags, currencies or zones are errors.
func New(o Options) (*Formatter, error) {
	if o.Tag == "" {
		o.Tag = "en-US"
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.TimeZone == "" {
		o.TimeZone = "UTC"
	}
	if o.Layout == "" {
		o.Layout = "Jan 2, 2006 3:04 PM"
	}
	tag, err := language.Parse(o.Tag)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", o.Tag, err)
	}
	curr, err := money.ParseCurr(o.Currency)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", o.Currency, err)
	}
	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", o.TimeZone, err)
	}
	p := message.NewPrinter(tag)
	return &Formatter{
		curr:    curr,
		symbol:  symbolFor(p, curr),
		suffix:  symbolAfter(tag),
		printer: p,
		loc:     loc,
		layout:  o.Layout,
	}, nil
}

// symbolFor looks the currency up in CLDR and falls back to the ISO code.
func symbolFor(p *message.Printer, curr money.Currency) string {
	unit, err := currency.ParseISO(curr.Code())
	if err != nil {
		return curr.Code() + " "
	}
	if s := p.Sprint(currency.Symbol(unit)); s != "" {
		return s
	}
	return curr.Code() + " "
}

// Currency returns the configured currency.
func (f *Formatter) Currency() money.Currency { return f.curr }

// Amount converts d into a money amount rounded to the currency's minor unit.
func (f *Formatter) Amount(d decimal.Decimal) (money.Amount, error) {
	a, err := money.NewAmountFromDecimal(f.curr, d)
	if err != nil {
		return money.Amount{}, err
	}
	return a.RoundToCurr(), nil
}

// Money renders d at the currency's scale with the locale's grouping.
// Amounts the printer cannot take fall back to two decimals.
func (f *Formatter) Money(d decimal.Decimal) string {
	scale := f.curr.Scale()
	v, ok := d.Round(scale).Float64()
	if !ok {
		return f.fallback(d)
	}
	num := f.printer.Sprint(number.Decimal(v, number.Scale(scale)))
	if f.suffix {
		return num + " " + strings.TrimSpace(f.symbol)
	}
	return f.symbol + num
}

func (f *Formatter) fallback(d decimal.Decimal) string {
	return ledger.PlainFormatter{Symbol: f.symbol}.Money(d)
}

func (f *Formatter) Distance(km int64) string { return f.printer.Sprintf("%d", km) }

func (f *Formatter) DateTime(t time.Time) string { return t.In(f.loc).Format(f.layout) }

// symbolAfter reports whether the locale writes the currency symbol after
// the amount. x/text exposes no currency patterns, so this follows CLDR
// for the languages that do. Region is inferred when the tag has none.
func symbolAfter(tag language.Tag) bool {
	base, _ := tag.Base()
	region, _ := tag.Region()
	switch base.String() {
	case "de":
		switch region.String() {
		case "AT", "CH", "LI":
			return false
		}
		return true
	case "es":
		return region.String() == "ES"
	case "pt":
		return region.String() != "BR"
	case "fr", "it", "pl", "cs", "sk", "sv", "fi", "da", "nb", "nn", "no",
		"ru", "uk", "be", "hu", "ro", "bg", "hr", "sl", "sr", "lt", "lv", "et", "el", "is":
		return true
	}
	return false
}

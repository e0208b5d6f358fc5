// Package normalize turns free text from a chat message into typed values.
// Every function fails softly: a value that cannot be read is reported as
// "no match" and never as an error.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
)

// Answer is the result of a yes/no question
type Answer int

const (
	AnswerNone Answer = iota
	AnswerYes
	AnswerNo
)

// Moment is the result of the "now or another time" question
type Moment int

const (
	MomentNone Moment = iota
	MomentNow
	MomentLater
)

// Date is a calendar day without time zone
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.In(time.UTC).Format(dateLayout)
}

// In returns midnight of d in loc
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// TimeOfDay is a 24h wall clock time
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// On combines the time with a date in loc
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// FreeQuery holds the filters found in a free-text query
type FreeQuery struct {
	Method models.PaymentMethod
	Brand  string
	Bank   string
	From   *Date
	To     *Date
}

const dateLayout = "2006-01-02"

var (
	yesWords = map[string]struct{}{
		"si": {}, "sí": {}, "s": {}, "ok": {}, "dale": {}, "claro": {},
		"afirmativo": {}, "yes": {}, "y": {},
	}
	noWords = map[string]struct{}{
		"no": {}, "n": {}, "nope": {},
	}
	noneWords = map[string]struct{}{
		"ninguno": {}, "ninguna": {}, "na": {}, "n/a": {}, "no": {}, "-": {}, "none": {},
	}
	currencyCodes = map[string]struct{}{
		"ARS": {}, "USD": {}, "EUR": {}, "BRL": {},
	}

	datePattern   = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	timePattern   = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	amountPattern = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)(?:[\s,]*([A-Za-z]{3})\b)?`)
	untilPattern  = regexp.MustCompile(`(?i)hasta\s+(\d{4}-\d{2}-\d{2})`)
	sincePattern  = regexp.MustCompile(`(?i)desde\s+(\d{4}-\d{2}-\d{2})`)
	methodPattern = regexp.MustCompile(`(?i)\b(efectivo|d[eé]bito|cr[eé]dito|transferencia)\b`)
	brandPattern  = regexp.MustCompile(`(?i)\b(visa|mastercard|amex|naranja|cabal)\b`)
	bankPattern   = regexp.MustCompile(`(?i)\b(naci[oó]n|bbva|santander|galicia|itau|macro|hsbc|patagonia|credicoop|lemon|mercado pago)\b`)

	methodAliases = map[string]models.PaymentMethod{
		"efectivo":      models.PaymentCash,
		"debito":        models.PaymentDebit,
		"débito":        models.PaymentDebit,
		"credito":       models.PaymentCredit,
		"crédito":       models.PaymentCredit,
		"transferencia": models.PaymentTransfer,
	}
)

func clean(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// YesNo reads an affirmative or negative reply
func YesNo(text string) Answer {
	t := clean(text)
	if _, ok := yesWords[t]; ok {
		return AnswerYes
	}
	if _, ok := noWords[t]; ok {
		return AnswerNo
	}
	return AnswerNone
}

// NowOrLater reads whether the expense happened now or at another time
func NowOrLater(text string) Moment {
	t := clean(text)
	switch {
	case strings.Contains(t, "ahora"):
		return MomentNow
	case strings.Contains(t, "otro"), strings.Contains(t, "antes"):
		return MomentLater
	}
	return MomentNone
}

// ParseDate extracts the first YYYY-MM-DD date. Impossible calendar
// values such as 2025-02-30 are rejected.
func ParseDate(text string) (Date, bool) {
	m := datePattern.FindString(text)
	if m == "" {
		return Date{}, false
	}
	return parseISODate(m)
}

func parseISODate(s string) (Date, bool) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, false
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, true
}

// ParseTime extracts an HH:MM time in 24h format
func ParseTime(text string) (TimeOfDay, bool) {
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return TimeOfDay{}, false
	}
	t, err := time.Parse("15:04", zeroPad(m[1])+":"+m[2])
	if err != nil {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, true
}

func zeroPad(hour string) string {
	if len(hour) == 1 {
		return "0" + hour
	}
	return hour
}

// AmountCurrency extracts a positive amount and an optional currency code.
// Only known codes and homeCurrency are accepted; any other word after the
// number leaves the currency at homeCurrency.
func AmountCurrency(text, homeCurrency string) (decimal.Decimal, string, bool) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, "", false
	}
	amount, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, "", false
	}
	home := strings.ToUpper(homeCurrency)
	currency := strings.ToUpper(m[2])
	if _, known := currencyCodes[currency]; !known && currency != home {
		currency = home
	}
	return amount, currency, true
}

// ParsePaymentMethod matches the whole reply against the four methods
func ParsePaymentMethod(text string) (models.PaymentMethod, bool) {
	m, ok := methodAliases[clean(text)]
	return m, ok
}

// IsNone reports whether the reply means "nothing" for an optional field
func IsNone(text string) bool {
	_, ok := noneWords[clean(text)]
	return ok
}

// IsFreeQuery reports whether the text asks for a summary directly,
// either with the "pasame" trigger or with both desde/hasta dates.
func IsFreeQuery(text string) bool {
	t := clean(text)
	if t == "pasame" || strings.HasPrefix(t, "pasame ") {
		return true
	}
	return sincePattern.MatchString(t) && untilPattern.MatchString(t)
}

// ParseFreeQuery extracts whatever filters the text mentions
func ParseFreeQuery(text string) FreeQuery {
	var q FreeQuery

	if all := methodPattern.FindAllString(text, -1); len(all) > 0 {
		q.Method = methodAliases[strings.ToLower(all[len(all)-1])]
	}
	if m := brandPattern.FindString(text); m != "" {
		q.Brand = capitalize(m)
	}
	if m := bankPattern.FindString(text); m != "" {
		q.Bank = strings.ToUpper(m)
	}
	rest := text
	if m := untilPattern.FindStringSubmatch(text); m != nil {
		if d, ok := parseISODate(m[1]); ok {
			q.To = &d
		}
		rest = strings.Replace(text, m[0], "", 1)
	}
	if m := sincePattern.FindStringSubmatch(text); m != nil {
		if d, ok := parseISODate(m[1]); ok {
			q.From = &d
		}
	} else if d, ok := ParseDate(rest); ok {
		q.From = &d
	}
	return q
}

func capitalize(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

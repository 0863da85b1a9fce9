// Package phonenum turns phone numbers into a canonical, comparable form.
//
// Numbers that libphonenumber can parse are formatted as E.164 relative to
// a default region, so "+1-415-555-0100", "(415) 555-0100" and
// "4155550100" all compare equal under region US. Anything it rejects
// falls back to a dialable digit string.
package phonenum

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/width"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "US"

// Normalizer maps a raw number to its canonical form. Equal outputs mean
// the numbers identify the same subscriber. An empty input yields "".
type Normalizer interface {
	Normalize(number string) string
}

// E164 normalizes through libphonenumber with a fixed default region.
// Safe for concurrent use.
type E164 struct {
	region string
}

// NewE164 returns a normalizer that resolves national numbers against
// region (ISO 3166-1 alpha-2). An empty region means DefaultRegion.
func NewE164(region string) *E164 {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &E164{region: region}
}

// SupportedRegion reports whether libphonenumber has metadata for region.
// National numbers resolved against an unsupported region never reach
// E.164 and so never match their international spelling.
func SupportedRegion(region string) bool {
	return phonenumbers.GetSupportedRegions()[region]
}

// Region returns the default region.
func (n *E164) Region() string {
	return n.region
}

// Normalize implements Normalizer.
func (n *E164) Normalize(number string) string {
	folded := strings.TrimSpace(width.Narrow.String(number))
	if folded == "" {
		return ""
	}
	if num, err := phonenumbers.Parse(folded, n.region); err == nil {
		key := phonenumbers.Format(num, phonenumbers.E164)
		// E164 formatting drops extensions; keep them so "x;ext=1" and "x"
		// stay distinct subscribers.
		if ext := num.GetExtension(); ext != "" {
			key += ";ext=" + ext
		}
		return key
	}
	return Digits(folded)
}

// Digits strips visual separators from number. Decimal digits in any
// script become ASCII digits, letters map to their keypad digit, and a
// plus sign survives only in the first position.
func Digits(number string) string {
	var b strings.Builder
	for i, r := range width.Narrow.String(number) {
		switch {
		case unicode.IsDigit(r):
			b.WriteByte(byte('0' + digitValue(r)))
		case i == 0 && r == '+':
			b.WriteByte('+')
		case unicode.IsLetter(r):
			if d, ok := keypad(r); ok {
				b.WriteByte(d)
			}
		}
	}
	return b.String()
}

// digitValue relies on Unicode decimal digits being laid out in contiguous
// runs that start at zero.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for unicode.IsDigit(start-1) && r-start < 64 {
		start--
	}
	return int(r-start) % 10
}

func keypad(r rune) (byte, bool) {
	switch unicode.ToUpper(r) {
	case 'A', 'B', 'C':
		return '2', true
	case 'D', 'E', 'F':
		return '3', true
	case 'G', 'H', 'I':
		return '4', true
	case 'J', 'K', 'L':
		return '5', true
	case 'M', 'N', 'O':
		return '6', true
	case 'P', 'Q', 'R', 'S':
		return '7', true
	case 'T', 'U', 'V':
		return '8', true
	case 'W', 'X', 'Y', 'Z':
		return '9', true
	}
	return 0, false
}

// Func adapts a plain function to Normalizer.
type Func func(string) string

// Normalize implements Normalizer.
func (f Func) Normalize(number string) string {
	return f(number)
}

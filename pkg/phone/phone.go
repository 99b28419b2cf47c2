// pkg/phone/phone.go
package phone

import (
	"errors"
	"strings"
)

const countryCode = "254"

// ErrTooShort is returned for inputs with fewer than nine significant digits.
var ErrTooShort = errors.New("phone number too short")

// ErrNotNumeric is returned when the input contains non-digit characters
// after stripping formatting.
var ErrNotNumeric = errors.New("phone number contains non-digit characters")

// Normalize canonicalizes a Kenyan mobile number to the country-code-prefixed
// form the gateway expects, e.g. 254722123456. Accepted input shapes:
//
//	0722123456      (local leading zero)
//	+254722123456   (international)
//	254722123456    (already canonical)
//	722123456       (bare subscriber number)
func Normalize(input string) (string, error) {
	s := strings.TrimSpace(input)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")

	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrNotNumeric
		}
	}

	switch {
	case strings.HasPrefix(s, countryCode):
		s = s[len(countryCode):]
	case strings.HasPrefix(s, "0"):
		s = s[1:]
	}

	// Nine significant digits make a full subscriber number.
	if len(s) < 9 {
		return "", ErrTooShort
	}

	return countryCode + s, nil
}

package domain

import (
	"fmt"
	"regexp"
)

var nonDigits = regexp.MustCompile(`\D`)

// FormatPhone normalizes a raw phone string to US display format:
// 10 digits become "(AAA) BBB-CCCC", 11 digits with a leading 1 become
// "+1 (AAA) BBB-CCCC". Anything else passes through unchanged; this is a
// display aid, not validation.
func FormatPhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	default:
		return raw
	}
}

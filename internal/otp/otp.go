// Package otp finds one-time passcodes in message text.
package otp

import "regexp"

var codePattern = regexp.MustCompile(`\b\d{4,8}\b`)

// Extract returns the first standalone run of 4 to 8 digits in text.
// Issuers put the code early, so position is the only signal used. The
// input must be display text; callers strip markup first.
func Extract(text string) (string, bool) {
	code := codePattern.FindString(text)
	return code, code != ""
}

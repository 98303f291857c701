// Package classify assigns inbox categories and previews to messages using
// a fixed, ordered set of text rules.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nhle/meltmail/internal/model"
)

// PreviewLength is the number of characters kept in a preview.
const PreviewLength = 100

var (
	codePattern = regexp.MustCompile(`\b\d{4,8}\b`)
	tagPattern  = regexp.MustCompile(`<[^>]*>?`)
)

// Classified is a listing record with its derived category and preview.
type Classified struct {
	model.MessageSummary
	Category model.Category
	Preview  string
}

// Classify returns the category of msg. Rules are evaluated in order and
// the first match wins, so a code-bearing mail from a noreply sender is
// still an OTP mail.
func Classify(msg model.Message) model.Category {
	subject := strings.ToLower(msg.Subject)

	if codePattern.MatchString(bodyText(msg)) &&
		(strings.Contains(subject, "code") || strings.Contains(subject, "otp")) {
		return model.CategoryOTP
	}

	from := msg.From.Address
	if strings.Contains(from, "noreply") ||
		strings.Contains(from, "notification") ||
		strings.Contains(subject, "notification") {
		return model.CategoryNotifications
	}

	if strings.Contains(subject, "update") || strings.Contains(subject, "newsletter") {
		return model.CategoryUpdates
	}

	return model.CategoryOther
}

// Preview returns up to PreviewLength characters of the message body with
// tag-like substrings removed. Entities are left as-is. An ellipsis is
// appended only when the body was cut.
func Preview(msg model.Message) string {
	src := msg.Text
	if src == "" {
		src = msg.HTML
	}
	if src == "" {
		src = msg.Intro
	}

	clean := tagPattern.ReplaceAllString(src, "")
	if utf8.RuneCountInString(clean) <= PreviewLength {
		return clean
	}
	return string([]rune(clean)[:PreviewLength]) + "…"
}

// Summary classifies a listing record that carries no full body.
func Summary(s model.MessageSummary) Classified {
	msg := model.Message{MessageSummary: s}
	return Classified{
		MessageSummary: s,
		Category:       Classify(msg),
		Preview:        Preview(msg),
	}
}

// All classifies every listing record, preserving order.
func All(summaries []model.MessageSummary) []Classified {
	out := make([]Classified, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, Summary(s))
	}
	return out
}

// bodyText is the text the code rule scans. Listing records have no body,
// so the provider's excerpt stands in.
func bodyText(msg model.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Intro
}

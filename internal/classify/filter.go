package classify

import (
	"fmt"
	"strings"

	"github.com/nhle/meltmail/internal/model"
)

// Filter selects which categories are shown. The zero value shows all.
type Filter string

// FilterAll shows every message.
const FilterAll Filter = "all"

// Filters lists every filter in the order the UI offers them.
var Filters = []Filter{
	FilterAll,
	Filter(model.CategoryOTP),
	Filter(model.CategoryNotifications),
	Filter(model.CategoryUpdates),
	Filter(model.CategoryOther),
}

// ParseFilter accepts "all" or a category name, case-insensitively. An
// empty string means all.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return FilterAll, fmt.Errorf("unknown filter %q", s)
}

// Matches reports whether a message of category c passes the filter.
func (f Filter) Matches(c model.Category) bool {
	return f == "" || f == FilterAll || string(f) == string(c)
}

// Label is the display name of the filter.
func (f Filter) Label() string {
	switch f {
	case "", FilterAll:
		return "All"
	case Filter(model.CategoryOTP):
		return "OTP"
	case Filter(model.CategoryNotifications):
		return "Notifications"
	case Filter(model.CategoryUpdates):
		return "Updates"
	default:
		return "Other"
	}
}

// FilterMessages returns the messages that pass f, preserving order.
func FilterMessages(msgs []Classified, f Filter) []Classified {
	if f == "" || f == FilterAll {
		return msgs
	}
	out := make([]Classified, 0, len(msgs))
	for _, m := range msgs {
		if f.Matches(m.Category) {
			out = append(out, m)
		}
	}
	return out
}

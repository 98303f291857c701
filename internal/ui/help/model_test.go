package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/meltmail/internal/keys"
)

func TestViewShowsCategoryLegend(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 50)

	out := m.View()
	assert.Contains(t, out, "Keyboard Shortcuts")
	assert.Contains(t, out, "Categories")
	for _, want := range []string{"🔑", "🔔", "📰", "✉", "otp", "notifications", "updates", "other"} {
		assert.Contains(t, out, want)
	}
}

package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/meltmail/internal/model"
)

func message(from, subject, text string) model.Message {
	return model.Message{
		MessageSummary: model.MessageSummary{
			From:    model.Address{Address: from},
			Subject: subject,
		},
		Text: text,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  model.Message
		want model.Category
	}{
		{"code in subject", message("a@svc.test", "Your code", "Use 482913 to sign in"), model.CategoryOTP},
		{"otp in subject", message("a@svc.test", "OTP inside", "1234"), model.CategoryOTP},
		{"code beats noreply", message("noreply@svc.test", "Login code", "Code 55512"), model.CategoryOTP},
		{"code subject without digits", message("a@svc.test", "Your code", "no digits"), model.CategoryOther},
		{"digits too short", message("a@svc.test", "Your code", "pin 123"), model.CategoryOther},
		{"digits too long", message("a@svc.test", "Your code", "ref 123456789"), model.CategoryOther},
		{"noreply sender", message("noreply@service.com", "Weekly digest", ""), model.CategoryNotifications},
		{"notification sender", message("notifications@svc.test", "Hi", ""), model.CategoryNotifications},
		{"notification subject", message("a@svc.test", "New Notification", ""), model.CategoryNotifications},
		{"sender rule before update rule", message("noreply@svc.test", "Product update", ""), model.CategoryNotifications},
		{"newsletter subject", message("a@svc.test", "Spring Newsletter", "read more"), model.CategoryUpdates},
		{"update subject", message("a@svc.test", "Account UPDATED", ""), model.CategoryUpdates},
		{"nothing matches", message("a@svc.test", "Hello", "no codes here"), model.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg))
		})
	}
}

func TestClassifySenderRuleIsCaseSensitive(t *testing.T) {
	assert.Equal(t, model.CategoryOther, Classify(message("NoReply@svc.test", "Hi", "")))
	assert.Equal(t, model.CategoryOther, Classify(message("no-reply@service.com", "Weekly digest", "")))
}

func TestClassifyIsDeterministic(t *testing.T) {
	msg := message("noreply@svc.test", "Your code", "Use 482913 to sign in")
	first := Classify(msg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(msg))
	}
}

func TestClassifyUsesIntroWithoutBody(t *testing.T) {
	s := model.MessageSummary{Subject: "Your code", Intro: "Use 482913 to sign in"}
	c := Summary(s)
	assert.Equal(t, model.CategoryOTP, c.Category)
	assert.Equal(t, "Use 482913 to sign in", c.Preview)
}

func TestPreview(t *testing.T) {
	t.Run("long body is cut with ellipsis", func(t *testing.T) {
		body := strings.Repeat("a", 150)
		got := Preview(model.Message{Text: body})
		assert.Equal(t, strings.Repeat("a", 100)+"…", got)
	})

	t.Run("short body unchanged", func(t *testing.T) {
		body := strings.Repeat("b", 50)
		assert.Equal(t, body, Preview(model.Message{Text: body}))
	})

	t.Run("exactly the limit", func(t *testing.T) {
		body := strings.Repeat("c", 100)
		assert.Equal(t, body, Preview(model.Message{Text: body}))
	})

	t.Run("strips tags", func(t *testing.T) {
		assert.Equal(t, "bold text", Preview(model.Message{Text: "<b>bold</b> text"}))
	})

	t.Run("falls back to html", func(t *testing.T) {
		assert.Equal(t, "hi &amp; bye", Preview(model.Message{HTML: "<p>hi &amp; bye</p>"}))
	})

	t.Run("unterminated tag runs to end", func(t *testing.T) {
		assert.Equal(t, "keep ", Preview(model.Message{Text: "keep <span class"}))
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		body := strings.Repeat("é", 120)
		got := Preview(model.Message{Text: body})
		assert.Equal(t, strings.Repeat("é", 100)+"…", got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", Preview(model.Message{}))
	})
}

func TestAllPreservesOrder(t *testing.T) {
	out := All([]model.MessageSummary{
		{ID: "1", Subject: "Hello"},
		{ID: "2", Subject: "Newsletter"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, model.CategoryOther, out[0].Category)
	assert.Equal(t, model.CategoryUpdates, out[1].Category)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("OTP")
	require.NoError(t, err)
	assert.Equal(t, Filter(model.CategoryOTP), f)

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	_, err = ParseFilter("spam")
	assert.Error(t, err)
}

func TestFilterMessages(t *testing.T) {
	msgs := []Classified{
		{MessageSummary: model.MessageSummary{ID: "1"}, Category: model.CategoryOTP},
		{MessageSummary: model.MessageSummary{ID: "2"}, Category: model.CategoryOther},
		{MessageSummary: model.MessageSummary{ID: "3"}, Category: model.CategoryOTP},
	}

	assert.Len(t, FilterMessages(msgs, FilterAll), 3)

	otps := FilterMessages(msgs, Filter(model.CategoryOTP))
	require.Len(t, otps, 2)
	assert.Equal(t, "1", otps[0].ID)
	assert.Equal(t, "3", otps[1].ID)

	assert.Empty(t, FilterMessages(msgs, Filter(model.CategoryUpdates)))
}

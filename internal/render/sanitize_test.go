package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no script", "<p>hello</p>", "<p>hello</p>"},
		{"single block", "<p>a</p><script>alert(1)</script><p>b</p>", "<p>a</p><p>b</p>"},
		{"attributes", `x<script type="text/javascript">evil()</script>y`, "xy"},
		{"mixed case", "x<SCRIPT>evil()</ScRiPt>y", "xy"},
		{"nested tags inside", "x<script>if (a<b) { document.write('<i>hi</i>') }</script>y", "xy"},
		{"multiple blocks", "<script>1</script>a<script>2</script>b", "ab"},
		{"unterminated", "a<script>evil()", "a<script>evil()"},
		{"longer tag name kept", "<scripts>x</scripts>", "<scripts>x</scripts>"},
		{"ends at first close", "<script>a</script>keep</script>", "keep</script>"},
		{"non-ascii around block", "İ<script>x</script>ü", "İü"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeLeavesAttributeHandlers(t *testing.T) {
	in := `<img src=x onerror="alert(1)">`
	assert.Equal(t, in, Sanitize(in))
}

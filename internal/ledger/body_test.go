package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabscope/tabscope/internal/types"
)

func TestDecodeRequestBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *types.RequestBodyPayload
		want string
	}{
		{name: "nil payload", in: nil, want: ""},
		{name: "empty payload", in: &types.RequestBodyPayload{}, want: ""},
		{
			name: "form data sorted by key",
			in: &types.RequestBodyPayload{FormData: map[string][]string{
				"zeta":  {"26"},
				"alpha": {"1", "one"},
			}},
			want: "alpha=1\nalpha=one\nzeta=26",
		},
		{
			name: "invalid base64 chunk",
			in:   &types.RequestBodyPayload{Raw: []string{"%%%not-base64%%%"}},
			want: types.BinaryBodySentinel,
		},
		{
			name: "multi-chunk concatenation",
			in:   &types.RequestBodyPayload{Raw: []string{"aGVsbG8g", "d29ybGQ="}}, // "hello " + "world"
			want: "hello world",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, decodeRequestBody(tt.in))
		})
	}
}

func TestStatusTextAfterCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		code int
		want string
	}{
		{"HTTP/1.1 200 OK", 200, "OK"},
		{"HTTP/1.1 404 Not Found", 404, "Not Found"},
		{"HTTP/2 204", 204, ""},
		{"", 200, ""},
		{"garbage without code", 200, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusTextAfterCode(tt.line, tt.code), "line %q", tt.line)
	}
}

func TestContentLength(t *testing.T) {
	t.Parallel()

	n, ok := contentLength(map[string]string{"Content-Length": "1234"})
	assert.True(t, ok)
	assert.Equal(t, int64(1234), n)

	n, ok = contentLength(map[string]string{"CONTENT-LENGTH": " 42 "})
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = contentLength(map[string]string{"Content-Length": "not-a-number"})
	assert.False(t, ok)

	_, ok = contentLength(map[string]string{"Content-Length": "-5"})
	assert.False(t, ok)

	_, ok = contentLength(map[string]string{"Content-Type": "text/html"})
	assert.False(t, ok)

	_, ok = contentLength(nil)
	assert.False(t, ok)
}

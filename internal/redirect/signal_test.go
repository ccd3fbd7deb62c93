package redirect

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Signal
	}{
		{"", Signal{Kind: None}},
		{"auth=success", Signal{Kind: Success}},
		{"auth=pending", Signal{Kind: None}},
		{"error=token_exchange_failed", Signal{Kind: Error, Reason: "token_exchange_failed"}},
		{"error=no_code&auth=success", Signal{Kind: Error, Reason: "no_code"}},
		{"error=", Signal{Kind: None}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got := Parse(q)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind != None, got.Present())
		})
	}
}

func TestStrip(t *testing.T) {
	u, err := url.Parse("https://hub.example.com/?auth=success&tab=upload")
	require.NoError(t, err)

	clean := Strip(u)
	assert.Equal(t, "https://hub.example.com/?tab=upload", clean.String())
	assert.Equal(t, "auth=success&tab=upload", u.RawQuery, "input must not be modified")

	u, err = url.Parse("/?error=callback_failed")
	require.NoError(t, err)
	assert.Equal(t, "/", Strip(u).String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "success", Success.String())
}

package webtool

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverfisk/rants/internal/tools"
)

func TestIsBlockedIP(t *testing.T) {
	cases := []struct {
		name string
		ip   string
		want bool
	}{
		{"loopback", "127.0.0.1", true},
		{"private class A", "10.0.0.5", true},
		{"private class B", "172.16.0.5", true},
		{"private class C", "192.168.1.5", true},
		{"link-local", "169.254.1.1", true},
		{"public", "93.184.216.34", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isBlockedIP(net.ParseIP(tc.ip)))
		})
	}
}

func TestWebfetchRequiresURL(t *testing.T) {
	res := Webfetch(context.Background(), &tools.Context{}, map[string]any{})
	assert.False(t, res.OK)
	assert.Contains(t, res.Output["error"], "url is required")
}

func TestWebfetchRejectsNonHTTPScheme(t *testing.T) {
	res := Webfetch(context.Background(), &tools.Context{}, map[string]any{"url": "ftp://example.com/file"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Output["error"], "only http/https")
}

func TestWebfetchBlocksLoopbackTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := Webfetch(context.Background(), &tools.Context{}, map[string]any{"url": srv.URL})
	assert.False(t, res.OK)
	assert.Contains(t, res.Output["error"], "fetch failed")
}

func TestWebfetchTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	orig := dialerFunc
	defer func() { dialerFunc = orig }()
	var d net.Dialer
	dialerFunc = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return d.DialContext(ctx, network, srv.Listener.Addr().String())
	}

	tc := &tools.Context{WebfetchMaxBytes: 5}
	res := Webfetch(context.Background(), tc, map[string]any{"url": "http://example.com/"})
	require.True(t, res.OK)
	assert.Equal(t, "hello", res.Output["content"])
}

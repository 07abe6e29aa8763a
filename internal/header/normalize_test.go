package header

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeCoalescesCookies(t *testing.T) {
	in := []Field{
		{Name: "Host", Value: "x"},
		{Name: "Cookie", Value: "a=1"},
		{Name: "Accept", Value: "*/*"},
		{Name: "cookie", Value: "b=2"},
	}

	got := Normalize(in)
	want := []Field{
		{Name: "Host", Value: "x"},
		{Name: "Accept", Value: "*/*"},
		{Name: "cookie", Value: "a=1; b=2"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeNoCookiesIsUnchanged(t *testing.T) {
	in := []Field{{Name: "Host", Value: "x"}}
	got := Normalize(in)

	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	in := []Field{
		{Name: "Cookie", Value: "a=1"},
		{Name: "Cookie", Value: "b=2"},
	}

	once := Normalize(in)
	twice := Normalize(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Normalize() is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestIsWebSocketUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   bool
	}{
		{
			name: "classic upgrade",
			fields: []Field{
				{Name: "Connection", Value: "Upgrade"},
				{Name: "Upgrade", Value: "websocket"},
			},
			want: true,
		},
		{
			name: "connection token list",
			fields: []Field{
				{Name: "Connection", Value: "keep-alive, Upgrade"},
				{Name: "Upgrade", Value: "WebSocket"},
			},
			want: true,
		},
		{
			name: "missing upgrade header",
			fields: []Field{
				{Name: "Connection", Value: "Upgrade"},
			},
			want: false,
		},
		{
			name: "missing connection header",
			fields: []Field{
				{Name: "Upgrade", Value: "websocket"},
			},
			want: false,
		},
		{
			name:   "plain GET",
			fields: []Field{{Name: "Connection", Value: "keep-alive"}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWebSocketUpgrade(tt.fields); got != tt.want {
				t.Errorf("IsWebSocketUpgrade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconstructURL(t *testing.T) {
	tests := []struct {
		name                            string
		scheme, target, host, localAddr string
		want                            string
	}{
		{
			name: "origin form with host header",
			scheme: "http", target: "/hello", host: "x", localAddr: "127.0.0.1:80",
			want: "http://x/hello",
		},
		{
			name: "origin form with query",
			scheme: "https", target: "/search?q=go", host: "example.com", localAddr: "",
			want: "https://example.com/search?q=go",
		},
		{
			name: "no target path defaults to slash",
			scheme: "http", target: "", host: "x", localAddr: "",
			want: "http://x/",
		},
		{
			name: "no host header falls back to local address",
			scheme: "http", target: "/a", host: "", localAddr: "127.0.0.1:8080",
			want: "http://127.0.0.1:8080/a",
		},
		{
			name: "absolute-form target wins over host header",
			scheme: "http", target: "http://proxytarget/a", host: "ignored", localAddr: "",
			want: "http://proxytarget/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReconstructURL(tt.scheme, tt.target, tt.host, tt.localAddr)
			if got != tt.want {
				t.Errorf("ReconstructURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Package header implements C9: cookie coalescing, URL reconstruction, and
// WebSocket-upgrade candidate detection over the raw header pairs the wire
// engine hands up from a parsed request.
package header

import (
	"net/url"
	"strings"
)

// Field is a single raw header name/value pair, preserving on-the-wire byte
// values and case (except for the synthesized "cookie" field).
type Field struct {
	Name  string
	Value string
}

// Normalize coalesces every "cookie"-named field (ASCII case-insensitive)
// into a single field whose value is the original values joined with "; ",
// in arrival order, appended once at the end of the returned slice. All
// other fields pass through unmodified, preserving their relative order.
//
// Normalize is idempotent: feeding its own output back in yields the same
// result, since the output never contains more than one "cookie" field.
func Normalize(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	var cookies []string

	for _, f := range fields {
		if strings.EqualFold(f.Name, "cookie") {
			cookies = append(cookies, f.Value)
			continue
		}
		out = append(out, f)
	}

	if len(cookies) > 0 {
		out = append(out, Field{Name: "cookie", Value: strings.Join(cookies, "; ")})
	}

	return out
}

// IsWebSocketUpgrade reports whether the request is an upgrade candidate:
// at least one Connection header token (case-insensitive) contains the
// substring "upgrade", and at least one Upgrade header value
// (case-insensitive) contains "websocket".
func IsWebSocketUpgrade(fields []Field) bool {
	return anyTokenContains(fields, "connection", "upgrade") &&
		anyValueContains(fields, "upgrade", "websocket")
}

// anyTokenContains splits each header value named name on commas and
// reports whether any resulting token contains substr, case-insensitively.
func anyTokenContains(fields []Field, name, substr string) bool {
	for _, f := range fields {
		if !strings.EqualFold(f.Name, name) {
			continue
		}
		for _, tok := range strings.Split(f.Value, ",") {
			if strings.Contains(strings.ToLower(strings.TrimSpace(tok)), substr) {
				return true
			}
		}
	}
	return false
}

// anyValueContains reports whether any header value named name contains
// substr, case-insensitively, without splitting on commas.
func anyValueContains(fields []Field, name, substr string) bool {
	for _, f := range fields {
		if !strings.EqualFold(f.Name, name) {
			continue
		}
		if strings.Contains(strings.ToLower(f.Value), substr) {
			return true
		}
	}
	return false
}

// ReconstructURL builds "{scheme}://{host}{path-and-query}" from a request
// line's target plus the connection's scheme, the request's Host header
// (used when the target is origin-form), and the connection's local
// address (used as a last resort when no Host header was sent).
func ReconstructURL(scheme, requestTarget, hostHeader, localAddr string) string {
	host := ""
	pathAndQuery := "/"

	if u, err := url.Parse(requestTarget); err == nil {
		if u.Host != "" {
			host = u.Host
		}

		p := u.EscapedPath()
		if p == "" {
			p = "/"
		}
		if u.RawQuery != "" {
			p += "?" + u.RawQuery
		}
		pathAndQuery = p
	}

	if host == "" {
		host = hostHeader
	}
	if host == "" {
		host = localAddr
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(pathAndQuery)
	return b.String()
}

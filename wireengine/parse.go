package wireengine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/relaycore/httpbridge/internal/header"
)

// ErrProtocol is a malformed request line or header block. It always
// surfaces as a transport error; it is never classified as a benign
// hangup (an EOF inside a partly read request is wrapped in ErrProtocol,
// so only an EOF before any byte of a new request counts as one).
var ErrProtocol = errors.New("malformed HTTP/1.1 request")

// readRequest parses one request line + header block from br. io.EOF is
// returned verbatim (and only) when the connection closed before any byte
// of a new request arrived — the signal the bridge layer treats as a
// benign peer hangup rather than a transport error.
func readRequest(br *bufio.Reader) (*Request, error) {
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	line, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("%w: request line: %v", ErrProtocol, err)
	}

	method, target, proto, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	fields, err := parseHeaderBlock(br)
	if err != nil {
		return nil, err
	}

	req := &Request{Method: method, Target: target, Proto: proto, Headers: fields}
	attachBody(req, br)

	return req, nil
}

func parseRequestLine(line string) (method, target, proto string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: request line %q", ErrProtocol, line)
	}
	return parts[0], parts[1], parts[2], nil
}

// parseHeaderBlock reads header lines up to (and consuming) the blank line
// that ends the header block, preserving original order, case, and byte
// values — deliberately not using net/textproto.ReadMIMEHeader, which
// canonicalizes names and collapses same-named headers into a map (losing
// both the ordering and the distinctness §4.6 requires before cookie
// coalescing runs).
func parseHeaderBlock(br *bufio.Reader) ([]header.Field, error) {
	var fields []header.Field

	for {
		line, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("%w: headers: %v", ErrProtocol, err)
		}
		if line == "" {
			return fields, nil
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, fmt.Errorf("%w: header line %q", ErrProtocol, line)
		}

		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		fields = append(fields, header.Field{Name: name, Value: value})
	}
}

// readLine reads one CRLF- or LF-terminated line, with the terminator
// stripped.
func readLine(br *bufio.Reader) (string, error) {
	raw, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")
	return raw, nil
}

// attachBody wraps br in the framing the request's headers declare,
// setting req.Body and req.HasBody accordingly.
func attachBody(req *Request, br *bufio.Reader) {
	if te, ok := req.Header("Transfer-Encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		req.HasBody = true
		req.Body = httputil.NewChunkedReader(br)
		return
	}

	if cl, ok := req.Header("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err == nil && n > 0 {
			req.HasBody = true
			req.Body = io.LimitReader(br, n)
			return
		}
	}

	req.HasBody = false
	req.Body = http.NoBody
}

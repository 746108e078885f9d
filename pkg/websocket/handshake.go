package websocket

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/httpcore-go/httpcore/pkg/conn"
	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/headers"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

// websocketGUID is the magic constant RFC 6455 §1.3 defines for computing
// Sec-WebSocket-Accept from the client's Sec-WebSocket-Key.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// performHandshake writes the HTTP/1.1 GET Upgrade request and validates the
// 101 response, returning the negotiated subprotocol (if any).
func performHandshake(ctx context.Context, c *conn.Connection, u *urlutil.URL, subprotocols []string, extraHeaders map[string]string) (string, *bufio.Reader, error) {
	if dl, ok := ctx.Deadline(); ok {
		c.SetDeadline(dl)
		defer c.SetDeadline(time.Time{})
	}

	key, err := generateKey()
	if err != nil {
		return "", nil, errors.NewWebSocketError("handshake", "generating Sec-WebSocket-Key", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "GET %s HTTP/1.1\r\n", u.RequestTarget())
	fmt.Fprintf(&sb, "Host: %s\r\n", u.HostHeader())
	sb.WriteString("Upgrade: websocket\r\n")
	sb.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&sb, "Sec-WebSocket-Key: %s\r\n", key)
	sb.WriteString("Sec-WebSocket-Version: 13\r\n")
	if len(subprotocols) > 0 {
		fmt.Fprintf(&sb, "Sec-WebSocket-Protocol: %s\r\n", strings.Join(subprotocols, ", "))
	}
	for name, value := range extraHeaders {
		if headers.ContainsControlChars(value) {
			return "", nil, errors.NewValidationError("header value contains control characters: " + name)
		}
		fmt.Fprintf(&sb, "%s: %s\r\n", name, value)
	}
	sb.WriteString("\r\n")

	if _, err := c.Write([]byte(sb.String())); err != nil {
		return "", nil, errors.NewIOError("writing handshake request", err)
	}

	br := bufio.NewReader(c)
	statusLine, err := br.ReadString('\n')
	if err != nil {
		return "", nil, errors.NewWebSocketError("handshake", "reading status line", err)
	}
	statusLine = strings.TrimRight(statusLine, "\r\n")
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return "", nil, errors.NewWebSocketError("handshake", "malformed status line: "+statusLine, nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, errors.NewWebSocketError("handshake", "malformed status code: "+parts[1], nil)
	}
	if code != 101 {
		return "", nil, errors.NewWebSocketError("handshake", fmt.Sprintf("server refused upgrade (status %d)", code), nil)
	}

	respHeaders := headers.New()
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return "", nil, errors.NewWebSocketError("handshake", "reading response headers", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return "", nil, errors.NewWebSocketError("handshake", "malformed header line: "+line, nil)
		}
		respHeaders.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	if !strings.EqualFold(respHeaders.Get(headers.Upgrade), "websocket") {
		return "", nil, errors.NewWebSocketError("handshake", "missing or invalid Upgrade header", nil)
	}
	if !strings.EqualFold(respHeaders.Get(headers.Connection), "upgrade") {
		return "", nil, errors.NewWebSocketError("handshake", "missing or invalid Connection header", nil)
	}

	want := acceptKey(key)
	got := respHeaders.Get(headers.SecWebSocketAccept)
	if got != want {
		return "", nil, errors.NewWebSocketError("handshake", "Sec-WebSocket-Accept mismatch", nil)
	}

	// br may have buffered bytes past the blank line if the server's first
	// frame arrived in the same TCP segment as the handshake response;
	// the caller must keep reading frames from br, not directly from c.
	return respHeaders.Get(headers.SecWebSocketProtocol), br, nil
}

func generateKey() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func acceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

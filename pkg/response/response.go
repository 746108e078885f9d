// Package response implements the caller-facing Response type: lazy
// Text/JSON decoding, line/chunk iteration over a streamed body, and the
// redirect History chain, backed by pkg/buffer so a large body never has to
// live entirely in memory.
package response

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/httpcore-go/httpcore/pkg/buffer"
	"github.com/httpcore-go/httpcore/pkg/conn"
	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/headers"
	"github.com/httpcore-go/httpcore/pkg/timing"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

// Response is the result of one HTTP exchange (the final hop of a redirect
// chain; earlier hops are in History).
type Response struct {
	StatusCode int
	Reason     string
	Headers    *headers.Headers
	URL        *urlutil.URL
	History    []*Response // earlier hops, oldest first; empty if no redirects occurred

	Metrics          timing.Metrics
	Conn             conn.Metadata
	ConnectionReused bool

	body     *buffer.Buffer
	bodyRead bool
}

// New constructs a Response whose body has already been drained into buf.
func New(statusCode int, reason string, h *headers.Headers, u *urlutil.URL, buf *buffer.Buffer) *Response {
	return &Response{StatusCode: statusCode, Reason: reason, Headers: h, URL: u, body: buf}
}

// Body returns the full response body. An in-memory body is returned
// directly; a body that spilled to disk is read back from its temp file on
// every call.
func (r *Response) Body() ([]byte, error) {
	if r.body == nil {
		return nil, nil
	}
	if b := r.body.Bytes(); !r.body.IsSpilled() {
		return b, nil
	}
	rc, err := r.body.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Text returns the body decoded as a string.
func (r *Response) Text() (string, error) {
	b, err := r.Body()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	b, err := r.Body()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.NewProtocolError("decoding JSON response body", err)
	}
	return nil
}

// IterContent streams the body in chunkSize pieces via yield; iteration
// stops early if yield returns false. Each call opens a fresh reader over
// the buffered body, so it may be called more than once.
func (r *Response) IterContent(chunkSize int, yield func([]byte, error) bool) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	rc, err := r.body.Reader()
	if err != nil {
		yield(nil, err)
		return
	}
	defer rc.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !yield(chunk, nil) {
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(nil, errors.NewIOError("reading response body", err))
			return
		}
	}
}

// IterLines streams the body split on newlines via yield, stripping the
// trailing line terminator.
func (r *Response) IterLines(yield func([]byte, error) bool) {
	rc, err := r.body.Reader()
	if err != nil {
		yield(nil, err)
		return
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		if !yield(scanner.Bytes(), nil) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		yield(nil, errors.NewIOError("scanning response body", err))
	}
}

// Close releases the underlying buffer's resources (temp file, if spilled).
// Safe to call multiple times.
func (r *Response) Close() error {
	if r.body == nil {
		return nil
	}
	return r.body.Close()
}

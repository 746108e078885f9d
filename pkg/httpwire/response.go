package httpwire

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/headers"
)

// Limits bounds how much of a response this parser will accept before
// failing with a protocol error, matching the external-interface defaults.
type Limits struct {
	MaxHeaderSize int // total bytes across all header lines
	MaxFieldCount int // number of header lines
	MaxBodySize   int64
}

// parserState names the states of the response state machine.
type parserState int

const (
	stateStatusLine parserState = iota
	stateHeaders
	stateBody
	stateDone
)

// Response is the parsed wire-level response: status line, headers, and a
// body reader that has already had chunked-decoding and content-encoding
// applied.
type Response struct {
	StatusCode int
	Reason     string
	HTTPMajor  int
	HTTPMinor  int
	Headers    *headers.Headers
	Body       io.Reader
}

// ParseResponse reads one HTTP/1.1 response from r, driving the
// STATUS_LINE -> HEADERS -> BODY state machine. method is the request
// method that produced this response (HEAD suppresses a body regardless of
// headers); limits bounds header and body size.
func ParseResponse(r *bufio.Reader, method string, limits Limits) (*Response, error) {
	state := stateStatusLine
	resp := &Response{Headers: headers.New()}

	for state != stateDone {
		switch state {
		case stateStatusLine:
			line, err := readLine(r, limits.MaxHeaderSize)
			if err != nil {
				return nil, errors.NewProtocolError("reading status line", err)
			}
			if err := parseStatusLine(line, resp); err != nil {
				return nil, err
			}
			state = stateHeaders

		case stateHeaders:
			if err := readHeaders(r, resp.Headers, limits); err != nil {
				return nil, err
			}
			state = stateBody

		case stateBody:
			body, err := readBody(r, resp, method, limits)
			if err != nil {
				return nil, err
			}
			resp.Body = body
			state = stateDone
		}
	}

	return resp, nil
}

func readLine(r *bufio.Reader, maxSize int) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if maxSize > 0 && len(line) > maxSize {
		return "", errors.NewProtocolError("header line exceeds maximum size", nil)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseStatusLine(line string, resp *Response) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return errors.NewProtocolError("malformed status line: "+line, nil)
	}
	major, minor := 1, 1
	fmt.Sscanf(parts[0], "HTTP/%d.%d", &major, &minor)
	resp.HTTPMajor, resp.HTTPMinor = major, minor

	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 599 {
		return errors.NewProtocolError("invalid status code: "+parts[1], err)
	}
	resp.StatusCode = code
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}
	return nil
}

// readHeaders reads header lines until the blank line terminator, enforcing
// total size and field-count limits. Obsolete header-line folding (a
// continuation line starting with SP/HT) is rejected rather than tolerated:
// RFC 7230 deprecates it and this engine does not parse it.
func readHeaders(r *bufio.Reader, h *headers.Headers, limits Limits) error {
	totalSize := 0
	count := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return errors.NewProtocolError("reading header line", err)
		}
		totalSize += len(line)
		if limits.MaxHeaderSize > 0 && totalSize > limits.MaxHeaderSize {
			return errors.NewProtocolError("response headers exceed maximum size", nil)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			return errors.NewProtocolError("obsolete header folding is not supported", nil)
		}

		count++
		if limits.MaxFieldCount > 0 && count > limits.MaxFieldCount {
			return errors.NewProtocolError("response has too many header fields", nil)
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return errors.NewProtocolError("malformed header line: "+line, nil)
		}
		name := textproto.TrimString(line[:idx])
		value := textproto.TrimString(line[idx+1:])
		h.Add(name, value)
	}
}

func hasBody(statusCode int, method string) bool {
	if method == "HEAD" {
		return false
	}
	if statusCode >= 100 && statusCode < 200 {
		return false
	}
	if statusCode == 204 || statusCode == 304 {
		return false
	}
	return true
}

func readBody(r *bufio.Reader, resp *Response, method string, limits Limits) (io.Reader, error) {
	if !hasBody(resp.StatusCode, method) {
		return strings.NewReader(""), nil
	}

	var raw io.Reader
	te := strings.ToLower(resp.Headers.Get(headers.TransferEncoding))
	switch {
	case strings.Contains(te, "chunked"):
		raw = newChunkedReader(r, limits.MaxBodySize)
	case resp.Headers.Has(headers.ContentLength):
		n, err := strconv.ParseInt(resp.Headers.Get(headers.ContentLength), 10, 64)
		if err != nil || n < 0 {
			return nil, errors.NewProtocolError("invalid Content-Length", err)
		}
		if limits.MaxBodySize > 0 && n > limits.MaxBodySize {
			return nil, errors.NewProtocolError("Content-Length exceeds maximum body size", nil)
		}
		raw = io.LimitReader(r, n)
	default:
		raw = &boundedReader{r: r, max: limits.MaxBodySize}
	}

	return applyContentEncoding(raw, resp.Headers.Get(headers.ContentEncoding))
}

// boundedReader reads until EOF (connection close framing) while still
// enforcing max_body_size.
type boundedReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.max > 0 && b.n >= b.max {
		return 0, errors.NewProtocolError("response body exceeds maximum body size", nil)
	}
	if b.max > 0 && int64(len(p)) > b.max-b.n {
		p = p[:b.max-b.n]
	}
	n, err := b.r.Read(p)
	b.n += int64(n)
	return n, err
}

func applyContentEncoding(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.NewProtocolError("invalid gzip body", err)
		}
		return gr, nil
	case "deflate":
		return flate.NewReader(r), nil
	default:
		// Unknown encodings are left untouched rather than rejected.
		return r, nil
	}
}

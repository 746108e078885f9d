package httpwire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/httpcore-go/httpcore/pkg/errors"
)

// ChunkedWriter chunk-encodes data written to it (RFC 7230 §4.1). It is the
// request-side mirror of the chunked reader this codec uses for responses.
type ChunkedWriter struct {
	w      io.Writer
	closed bool
}

// NewChunkedWriter wraps w so that every Write call emits one chunk.
func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

func (cw *ChunkedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := fmt.Fprintf(cw.w, "%x\r\n", len(p)); err != nil {
		return 0, err
	}
	if _, err := cw.w.Write(p); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(cw.w, "\r\n"); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close writes the terminating zero-length chunk and empty trailer.
func (cw *ChunkedWriter) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	_, err := io.WriteString(cw.w, "0\r\n\r\n")
	return err
}

// chunkedReader decodes a chunked transfer-coded body (RFC 7230 §4.1),
// tolerating chunk extensions (ignored) and trailer headers (discarded).
type chunkedReader struct {
	r      *bufio.Reader
	max    int64
	total  int64
	remain int64 // bytes remaining in the current chunk
	err    error
}

func newChunkedReader(r *bufio.Reader, max int64) *chunkedReader {
	return &chunkedReader{r: r, max: max}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.remain == 0 {
		if err := c.nextChunk(); err != nil {
			c.err = err
			return 0, err
		}
		if c.remain == 0 {
			c.err = io.EOF
			return 0, io.EOF
		}
	}

	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.r.Read(p)
	c.remain -= int64(n)
	c.total += int64(n)
	if c.max > 0 && c.total > c.max {
		c.err = errors.NewProtocolError("chunked body exceeds maximum body size", nil)
		return n, c.err
	}
	if err != nil && err != io.EOF {
		c.err = errors.NewIOError("reading chunked body", err)
		return n, c.err
	}
	if c.remain == 0 {
		// consume the trailing CRLF after the chunk data
		if _, err := c.r.Discard(2); err != nil {
			c.err = errors.NewIOError("reading chunk terminator", err)
			return n, c.err
		}
	}
	return n, nil
}

func (c *chunkedReader) nextChunk() error {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return errors.NewProtocolError("reading chunk size", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx] // discard chunk extensions
	}
	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if err != nil || size < 0 {
		return errors.NewProtocolError("malformed chunk size", err)
	}
	c.remain = size
	if size == 0 {
		return c.readTrailer()
	}
	return nil
}

// readTrailer discards any trailer headers after the terminating
// zero-length chunk, up to the final blank line.
func (c *chunkedReader) readTrailer() error {
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return errors.NewProtocolError("reading chunk trailer", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}

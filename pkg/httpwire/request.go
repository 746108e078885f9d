// Package httpwire implements the HTTP/1.1 wire codec: request
// serialization and the response parser state machine (status line ->
// headers -> body -> done), including chunked transfer-coding and the
// size limits the engine enforces while reading.
package httpwire

import (
	"fmt"
	"io"
	"strconv"

	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/headers"
)

// Request is the wire-level request this codec serializes. Target is the
// request-line target (origin-form path?query, already resolved by the
// caller — this codec does not know about proxies or absolute-form
// targets).
type Request struct {
	Method        string
	Target        string
	Headers       *headers.Headers
	Body          io.Reader
	ContentLength int64 // -1 means unknown length (forces chunked)
}

// WriteHeader writes the request line and header block (terminated by the
// blank line) to w. The caller is responsible for writing the body
// afterward, through a ChunkedWriter if ContentLength is -1.
func WriteHeader(w io.Writer, req *Request) error {
	if headers.ContainsControlChars(req.Method) || headers.ContainsControlChars(req.Target) {
		return errors.NewValidationError("request method or target contains control characters")
	}
	if _, err := fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", req.Method, req.Target); err != nil {
		return errors.NewIOError("writing request line", err)
	}

	wroteContentLength := false
	wroteTransferEncoding := false
	var writeErr error
	req.Headers.EachLine(func(name, value string) {
		if writeErr != nil {
			return
		}
		if headers.ContainsControlChars(value) {
			writeErr = errors.NewValidationError("header value for " + name + " contains control characters")
			return
		}
		if name == headers.ContentLength {
			wroteContentLength = true
		}
		if name == headers.TransferEncoding {
			wroteTransferEncoding = true
		}
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", name, value); err != nil {
			writeErr = errors.NewIOError("writing header line", err)
		}
	})
	if writeErr != nil {
		return writeErr
	}

	if !wroteContentLength && !wroteTransferEncoding {
		if req.ContentLength >= 0 {
			if _, err := fmt.Fprintf(w, "%s: %d\r\n", headers.ContentLength, req.ContentLength); err != nil {
				return errors.NewIOError("writing content-length header", err)
			}
		} else if req.Body != nil {
			if _, err := fmt.Fprintf(w, "%s: chunked\r\n", headers.TransferEncoding); err != nil {
				return errors.NewIOError("writing transfer-encoding header", err)
			}
		}
	}

	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return errors.NewIOError("writing header terminator", err)
	}
	return nil
}

// WriteBody copies req.Body to w, chunk-encoding it when ContentLength is
// unknown (-1) and writing it raw otherwise.
func WriteBody(w io.Writer, req *Request) error {
	if req.Body == nil {
		return nil
	}
	if req.ContentLength < 0 {
		cw := NewChunkedWriter(w)
		if _, err := io.Copy(cw, req.Body); err != nil {
			return errors.NewIOError("writing chunked body", err)
		}
		return cw.Close()
	}
	n, err := io.CopyN(w, req.Body, req.ContentLength)
	if err != nil && err != io.EOF {
		return errors.NewIOError("writing body", err)
	}
	if n != req.ContentLength {
		return errors.NewValidationError(
			"body shorter than declared Content-Length: wrote " + strconv.FormatInt(n, 10) +
				" of " + strconv.FormatInt(req.ContentLength, 10))
	}
	return nil
}

package session

import (
	"context"
	"io"

	"github.com/httpcore-go/httpcore/pkg/response"
)

// ReqOption customizes a Request built by one of the convenience methods.
type ReqOption func(*Request)

// WithBody sets a streaming body of unknown length (chunk-encoded).
func WithBody(body io.Reader) ReqOption {
	return func(r *Request) {
		r.Body = body
		r.ContentLength = -1
	}
}

// WithBodyBytes sets a fixed-length body.
func WithBodyBytes(body []byte) ReqOption {
	return func(r *Request) {
		r.Body = byteReader(body)
		r.ContentLength = int64(len(body))
	}
}

func byteReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b []byte
	i int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.i:])
	s.i += n
	return n, nil
}

func apply(req *Request, opts []ReqOption) *Request {
	for _, opt := range opts {
		opt(req)
	}
	return req
}

func (s *Session) do(ctx context.Context, method, url string, opts []ReqOption) (*response.Response, error) {
	req := apply(&Request{Method: method, URL: url}, opts)
	return s.Send(ctx, req)
}

func (s *Session) Get(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "GET", url, opts)
}

func (s *Session) Head(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "HEAD", url, opts)
}

func (s *Session) Post(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "POST", url, opts)
}

func (s *Session) Put(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "PUT", url, opts)
}

func (s *Session) Patch(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "PATCH", url, opts)
}

func (s *Session) Delete(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "DELETE", url, opts)
}

func (s *Session) Options(ctx context.Context, url string, opts ...ReqOption) (*response.Response, error) {
	return s.do(ctx, "OPTIONS", url, opts)
}

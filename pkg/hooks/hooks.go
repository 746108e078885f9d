// Package hooks defines the pre-request and post-response hook types and
// the ordered registry a Session drives them through. Go has no
// sync/async function coloring, so there is no separate "async hook"
// variant to model — a hook that needs to do async work simply spawns its
// own goroutine before returning.
package hooks

import (
	"github.com/httpcore-go/httpcore/pkg/headers"
	"github.com/httpcore-go/httpcore/pkg/response"
)

// RequestView is the view of an outgoing request passed to each PreHook
// before it is sent. Changes a hook makes to Headers are sent; Method and
// URL are for inspection only, and changing them does not change the
// method or URL of the request that is sent.
type RequestView struct {
	Method  string
	URL     string
	Headers *headers.Headers
}

// PreHook runs before a request is sent (and again before each redirect
// hop). Returning an error aborts the request.
type PreHook func(*RequestView) error

// PostHook runs after a response is fully parsed (headers available; body
// may still be unread). Returning an error surfaces as the Send error,
// discarding the response.
type PostHook func(*response.Response) error

// Registry holds ordered hook lists, run in registration order.
type Registry struct {
	pre  []PreHook
	post []PostHook
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// AddPreRequest appends h to the pre-request hook list.
func (r *Registry) AddPreRequest(h PreHook) {
	r.pre = append(r.pre, h)
}

// AddPostResponse appends h to the post-response hook list.
func (r *Registry) AddPostResponse(h PostHook) {
	r.post = append(r.post, h)
}

// RunPreRequest runs every registered PreHook in order, stopping at the
// first error.
func (r *Registry) RunPreRequest(v *RequestView) error {
	for _, h := range r.pre {
		if err := h(v); err != nil {
			return err
		}
	}
	return nil
}

// RunPostResponse runs every registered PostHook in order, stopping at the
// first error.
func (r *Registry) RunPostResponse(resp *response.Response) error {
	for _, h := range r.post {
		if err := h(resp); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a shallow copy whose hook slices are independent (appending
// to the clone never affects the original registry), matching the
// snapshot-at-composition-time policy used for headers and cookies.
func (r *Registry) Clone() *Registry {
	return &Registry{
		pre:  append([]PreHook(nil), r.pre...),
		post: append([]PostHook(nil), r.post...),
	}
}

// Package cookiejar implements a minimal, origin-scoped cookie jar. Unlike
// the standard library's net/http/cookiejar (domain/path matching against
// the public-suffix list), this jar buckets cookies by exact origin
// (scheme+host+port) — the narrower scoping this engine's session model
// calls for, grounded on the same "bucket by origin" idiom the teacher uses
// to key its connection pool.
package cookiejar

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

// Cookie is one stored cookie.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Expires  time.Time // zero means session cookie (no Expires/Max-Age)
	Secure   bool
	HTTPOnly bool
}

func (c Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && now.After(c.Expires)
}

// Jar stores cookies per origin.
type Jar struct {
	mu      sync.Mutex
	byOrigin map[urlutil.Origin]map[string]Cookie
}

// New returns an empty Jar.
func New() *Jar {
	return &Jar{byOrigin: make(map[urlutil.Origin]map[string]Cookie)}
}

// Store parses and stores the Set-Cookie header values from a response to
// u's origin.
func (j *Jar) Store(u *urlutil.URL, setCookieValues []string) {
	if len(setCookieValues) == 0 {
		return
	}
	origin := u.Origin()

	j.mu.Lock()
	defer j.mu.Unlock()
	bucket := j.byOrigin[origin]
	if bucket == nil {
		bucket = make(map[string]Cookie)
		j.byOrigin[origin] = bucket
	}

	for _, raw := range setCookieValues {
		c, ok := parseSetCookie(raw)
		if !ok {
			continue
		}
		if c.expired(time.Now()) {
			delete(bucket, c.Name)
			continue
		}
		bucket[c.Name] = c
	}
}

// CookiesFor returns the Cookie header value to send for a request to u,
// or "" if there are none. Expired cookies are silently skipped rather than
// proactively evicted here, so reads never mutate jar state.
func (j *Jar) CookiesFor(u *urlutil.URL) string {
	origin := u.Origin()
	now := time.Now()

	j.mu.Lock()
	bucket := j.byOrigin[origin]
	var names []string
	var values []string
	for _, c := range bucket {
		if c.expired(now) {
			continue
		}
		if c.Secure && u.Scheme != "https" && u.Scheme != "wss" {
			continue
		}
		if c.Path != "" && !strings.HasPrefix(u.Path, c.Path) {
			continue
		}
		names = append(names, c.Name)
		values = append(values, c.Value)
	}
	j.mu.Unlock()

	if len(names) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := range names {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(names[i])
		sb.WriteByte('=')
		sb.WriteString(values[i])
	}
	return sb.String()
}

// Clear removes every cookie from the jar.
func (j *Jar) Clear() {
	j.mu.Lock()
	j.byOrigin = make(map[urlutil.Origin]map[string]Cookie)
	j.mu.Unlock()
}

func parseSetCookie(raw string) (Cookie, bool) {
	parts := strings.Split(raw, ";")
	if len(parts) == 0 {
		return Cookie{}, false
	}
	nv := strings.SplitN(strings.TrimSpace(parts[0]), "=", 2)
	if len(nv) != 2 || nv[0] == "" {
		return Cookie{}, false
	}
	c := Cookie{Name: strings.TrimSpace(nv[0]), Value: strings.TrimSpace(nv[1])}

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		kv := strings.SplitN(attr, "=", 2)
		key := strings.ToLower(kv[0])
		switch key {
		case "path":
			if len(kv) == 2 {
				c.Path = kv[1]
			}
		case "expires":
			if len(kv) == 2 {
				if t, err := time.Parse(time.RFC1123, kv[1]); err == nil {
					c.Expires = t
				}
			}
		case "max-age":
			if len(kv) == 2 {
				if secs, err := strconv.ParseInt(kv[1], 10, 64); err == nil {
					if secs <= 0 {
						c.Expires = time.Unix(0, 0)
					} else {
						c.Expires = time.Now().Add(time.Duration(secs) * time.Second)
					}
				}
			}
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		}
	}
	return c, true
}

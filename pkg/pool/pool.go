// Package pool implements the connection pool: a per-origin LIFO idle
// stack, bounded by two permit layers (per-host and global total), with a
// prune operation that evicts stale or dead idle connections.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/httpcore-go/httpcore/pkg/conn"
	"github.com/httpcore-go/httpcore/pkg/constants"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

// Config controls pool sizing and idle-connection lifetime.
type Config struct {
	MaxConnectionsPerHost int
	MaxTotalConnections   int
	MaxIdleTime           time.Duration
	// WaitTimeout bounds how long Acquire blocks for a permit before giving
	// up; zero means wait indefinitely (bounded only by ctx).
	WaitTimeout time.Duration
}

// DefaultConfig matches the external-interface defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnectionsPerHost: constants.DefaultMaxConnectionsPerHost,
		MaxTotalConnections:   constants.DefaultMaxTotalConnections,
		MaxIdleTime:           constants.DefaultMaxIdleTime,
	}
}

type idleEntry struct {
	conn     *conn.Connection
	lastUsed time.Time
}

// hostPool tracks idle connections and the number checked out for a single
// origin; permits is a buffered channel sized to MaxConnectionsPerHost that
// Acquire blocks on exactly like the pool's global permit, so a caller waits
// for a slot instead of racing a condition variable.
type hostPool struct {
	mu        sync.Mutex
	idle      []*idleEntry
	numActive int
	permits   chan struct{}
}

func newHostPool(cfg Config) *hostPool {
	hp := &hostPool{}
	if cfg.MaxConnectionsPerHost > 0 {
		hp.permits = make(chan struct{}, cfg.MaxConnectionsPerHost)
	}
	return hp
}

// Stats is a read-only snapshot of pool state, used by callers (and tests)
// to assert the pool-conservation invariant.
type Stats struct {
	ActiveConns  int
	IdleConns    int
	TotalReused  uint64
	TotalCreated uint64
	WaitTimeouts uint64
	Hosts        map[string]HostStats
}

// HostStats is the per-origin breakdown within Stats.
type HostStats struct {
	ActiveConns int
	IdleConns   int
}

// Pool owns a set of per-origin hostPools plus a global semaphore bounding
// the total number of checked-out connections across all origins.
type Pool struct {
	cfg    Config
	hosts  sync.Map // origin string -> *hostPool
	global chan struct{}

	reused  uint64
	created uint64
	waitTos uint64
}

// New creates a Pool with cfg, applying DefaultConfig for zero fields.
func New(cfg Config) *Pool {
	if cfg.MaxConnectionsPerHost <= 0 {
		cfg.MaxConnectionsPerHost = constants.DefaultMaxConnectionsPerHost
	}
	if cfg.MaxIdleTime <= 0 {
		cfg.MaxIdleTime = constants.DefaultMaxIdleTime
	}
	p := &Pool{cfg: cfg}
	if cfg.MaxTotalConnections > 0 {
		p.global = make(chan struct{}, cfg.MaxTotalConnections)
	}
	return p
}

func (p *Pool) hostPoolFor(origin urlutil.Origin) *hostPool {
	key := origin.String()
	if v, ok := p.hosts.Load(key); ok {
		return v.(*hostPool)
	}
	hp := newHostPool(p.cfg)
	actual, _ := p.hosts.LoadOrStore(key, hp)
	return actual.(*hostPool)
}

// Dialer creates a brand new connection to origin; the pool calls this only
// when no idle connection is available and a permit has been granted.
type Dialer func(ctx context.Context) (*conn.Connection, error)

// Acquire returns a connection for origin: an idle one if available and
// still fresh, otherwise a freshly dialed one once a permit is available.
// The returned bool is true when the connection was reused from the idle
// pool.
func (p *Pool) Acquire(ctx context.Context, origin urlutil.Origin, dial Dialer) (*conn.Connection, bool, error) {
	if err := p.acquireGlobalPermit(ctx); err != nil {
		return nil, false, err
	}

	hp := p.hostPoolFor(origin)
	if err := p.acquireHostPermit(ctx, hp); err != nil {
		p.releaseGlobalPermit()
		atomic.AddUint64(&p.waitTos, 1)
		return nil, false, err
	}

	hp.mu.Lock()
	if c := p.popFreshIdle(hp); c != nil {
		hp.numActive++
		hp.mu.Unlock()
		atomic.AddUint64(&p.reused, 1)
		return c, true, nil
	}
	hp.numActive++
	hp.mu.Unlock()

	c, err := dial(ctx)
	if err != nil {
		p.releasePermitsOnFailure(hp)
		return nil, false, err
	}
	atomic.AddUint64(&p.created, 1)
	return c, false, nil
}

// popFreshIdle pops entries off the idle LIFO stack until it finds one that
// is neither stale nor dead, closing any it discards along the way.
// Caller holds hp.mu.
func (p *Pool) popFreshIdle(hp *hostPool) *conn.Connection {
	for len(hp.idle) > 0 {
		n := len(hp.idle)
		e := hp.idle[n-1]
		hp.idle = hp.idle[:n-1]

		if time.Since(e.lastUsed) > p.cfg.MaxIdleTime {
			e.conn.Close()
			continue
		}
		if !conn.IsAlive(e.conn.Conn) {
			e.conn.Close()
			continue
		}
		return e.conn
	}
	return nil
}

// acquireHostPermit blocks until a per-host slot is available, bounded by
// ctx and p.cfg.WaitTimeout, mirroring acquireGlobalPermit exactly (no lock
// held here; hp.mu only guards the idle stack and numActive bookkeeping).
func (p *Pool) acquireHostPermit(ctx context.Context, hp *hostPool) error {
	if hp.permits == nil {
		return nil
	}

	var timeout <-chan time.Time
	if p.cfg.WaitTimeout > 0 {
		t := time.NewTimer(p.cfg.WaitTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case hp.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return context.DeadlineExceeded
	}
}

func (p *Pool) releaseHostPermit(hp *hostPool) {
	if hp.permits == nil {
		return
	}
	select {
	case <-hp.permits:
	default:
	}
}

func (p *Pool) releasePermitsOnFailure(hp *hostPool) {
	hp.mu.Lock()
	hp.numActive--
	if hp.numActive < 0 {
		hp.numActive = 0
	}
	hp.mu.Unlock()
	p.releaseHostPermit(hp)
	p.releaseGlobalPermit()
}

func (p *Pool) acquireGlobalPermit(ctx context.Context) error {
	if p.global == nil {
		return nil
	}

	var timeout <-chan time.Time
	if p.cfg.WaitTimeout > 0 {
		t := time.NewTimer(p.cfg.WaitTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case p.global <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return context.DeadlineExceeded
	}
}

func (p *Pool) releaseGlobalPermit() {
	if p.global == nil {
		return
	}
	select {
	case <-p.global:
	default:
	}
}

// Release always returns c to origin's idle stack for reuse (it never closes
// c); the per-host permit is what bounds how many connections an origin has.
func (p *Pool) Release(origin urlutil.Origin, c *conn.Connection) {
	hp := p.hostPoolFor(origin)
	hp.mu.Lock()
	hp.numActive--

	if hp.numActive < 0 {
		hp.numActive = 0
	}

	c.LastUsedAt = time.Now()
	hp.idle = append(hp.idle, &idleEntry{conn: c, lastUsed: c.LastUsedAt})
	hp.mu.Unlock()
	p.releaseHostPermit(hp)
	p.releaseGlobalPermit()
}

// Discard marks c as no longer usable (protocol error, caller-requested
// close) and closes it rather than returning it to the idle stack.
func (p *Pool) Discard(origin urlutil.Origin, c *conn.Connection) {
	hp := p.hostPoolFor(origin)
	hp.mu.Lock()
	hp.numActive--
	if hp.numActive < 0 {
		hp.numActive = 0
	}
	hp.mu.Unlock()
	c.Close()
	p.releaseHostPermit(hp)
	p.releaseGlobalPermit()
}

// Prune closes idle connections older than MaxIdleTime as of now. Exposed
// directly (rather than only run from a background ticker) so tests can
// assert eviction deterministically.
func (p *Pool) Prune(now time.Time) {
	p.hosts.Range(func(_, v any) bool {
		hp := v.(*hostPool)
		hp.mu.Lock()
		fresh := hp.idle[:0]
		for _, e := range hp.idle {
			if now.Sub(e.lastUsed) > p.cfg.MaxIdleTime {
				e.conn.Close()
				continue
			}
			fresh = append(fresh, e)
		}
		hp.idle = fresh
		hp.mu.Unlock()
		return true
	})
}

// Stats returns a read-only snapshot of pool state.
func (p *Pool) Stats() Stats {
	s := Stats{
		TotalReused:  atomic.LoadUint64(&p.reused),
		TotalCreated: atomic.LoadUint64(&p.created),
		WaitTimeouts: atomic.LoadUint64(&p.waitTos),
		Hosts:        make(map[string]HostStats),
	}
	p.hosts.Range(func(k, v any) bool {
		hp := v.(*hostPool)
		hp.mu.Lock()
		hs := HostStats{ActiveConns: hp.numActive, IdleConns: len(hp.idle)}
		hp.mu.Unlock()
		s.Hosts[k.(string)] = hs
		s.ActiveConns += hs.ActiveConns
		s.IdleConns += hs.IdleConns
		return true
	})
	return s
}

// Close closes every idle connection across every origin. In-flight
// (checked-out) connections are unaffected — their owners must Release or
// Discard them normally.
func (p *Pool) Close() error {
	p.hosts.Range(func(_, v any) bool {
		hp := v.(*hostPool)
		hp.mu.Lock()
		for _, e := range hp.idle {
			e.conn.Close()
		}
		hp.idle = nil
		hp.mu.Unlock()
		return true
	})
	return nil
}

package ratelimiter

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultCacheTTL = 5 * time.Minute

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	CacheTTL         time.Duration
	SourceHeaderKey  string
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per source. Buckets idle for longer
// than the cache TTL are dropped.
type RateLimiter struct {
	limit           rate.Limit
	maxBurst        int
	cacheTTL        time.Duration
	sourceHeaderKey string

	mu      sync.Mutex
	sources map[string]*entry

	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

func New(options Options) *RateLimiter {
	if options.MaxBurst <= 0 {
		options.MaxBurst = 1
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = defaultCacheTTL
	}

	rl := &RateLimiter{
		limit:           rate.Limit(options.MaxRatePerSecond),
		maxBurst:        options.MaxBurst,
		cacheTTL:        options.CacheTTL,
		sourceHeaderKey: options.SourceHeaderKey,
		sources:         make(map[string]*entry),
		cleanupTick:     time.NewTicker(options.CacheTTL),
		done:            make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *RateLimiter) get(sourceKey string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.sources[sourceKey]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.limit, rl.maxBurst)}
		rl.sources[sourceKey] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	return rl.get(sourceKey).Allow()
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	tokens := int(rl.get(sourceKey).Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

// GetSourceKey uses the first address of the configured header, falling back
// to the remote host.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.sourceHeaderKey != "" {
		if v := r.Header.Get(rl.sourceHeaderKey); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup(time.Now())
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.sources {
		if now.Sub(e.lastSeen) > rl.cacheTTL {
			delete(rl.sources, key)
		}
	}
}

func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}

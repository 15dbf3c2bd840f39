package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxEntries = 10000

// IPRateLimiter manages rate limiters per client IP address.
type IPRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*limiterEntry
	rate           rate.Limit
	burst          int
	cleanup        time.Duration
	trustedProxies []*net.IPNet
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewIPRateLimiter creates a per-IP limiter allowing r requests per second
// with the given burst. Stale entries are dropped on the cleanup interval.
// Forwarding headers are honored only for requests arriving from
// trustedProxies (CIDRs or single IPs); an empty list trusts all proxies.
func NewIPRateLimiter(r rate.Limit, burst int, cleanup time.Duration, trustedProxies []string) *IPRateLimiter {
	l := &IPRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
		cleanup:  cleanup,
	}

	for _, cidr := range trustedProxies {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			if ip := net.ParseIP(cidr); ip != nil {
				if ip.To4() != nil {
					_, ipnet, _ = net.ParseCIDR(cidr + "/32")
				} else {
					_, ipnet, _ = net.ParseCIDR(cidr + "/128")
				}
			}
		}
		if ipnet != nil {
			l.trustedProxies = append(l.trustedProxies, ipnet)
		}
	}

	go l.cleanupStale()
	return l
}

// Middleware rejects over-limit requests with 429.
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.ClientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow reports whether a request from ip fits in its budget.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= maxEntries {
			l.evictOldestLocked()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// ClientIP resolves the originating client address, honoring
// X-Forwarded-For / X-Real-IP only when the peer is a trusted proxy.
func (l *IPRateLimiter) ClientIP(r *http.Request) string {
	remoteIP := parseIP(r.RemoteAddr)

	if len(l.trustedProxies) > 0 {
		trusted := false
		for _, ipnet := range l.trustedProxies {
			if remoteIP != nil && ipnet.Contains(remoteIP) {
				trusted = true
				break
			}
		}
		if !trusted {
			return remoteIP.String()
		}
	}

	// X-Forwarded-For lists client, proxy1, proxy2; the leftmost entry is
	// the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if parsed := net.ParseIP(xri); parsed != nil {
			return parsed.String()
		}
	}
	if remoteIP == nil {
		return r.RemoteAddr
	}
	return remoteIP.String()
}

func (l *IPRateLimiter) evictOldestLocked() {
	var oldestIP string
	var oldestTime time.Time
	for ip, entry := range l.limiters {
		if oldestIP == "" || entry.lastAccess.Before(oldestTime) {
			oldestIP = ip
			oldestTime = entry.lastAccess
		}
	}
	if oldestIP != "" {
		delete(l.limiters, oldestIP)
	}
}

func (l *IPRateLimiter) cleanupStale() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.cleanup * 2)
		for ip, entry := range l.limiters {
			if entry.lastAccess.Before(cutoff) {
				delete(l.limiters, ip)
			}
		}
		l.mu.Unlock()
	}
}

func parseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

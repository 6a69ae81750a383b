// Package ratelimit provides a per-IP token bucket limiter for the control
// API. Start/stop and the journal endpoints are cheap, but a misbehaving
// client hammering them would still drown the capture loop's logs.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter rations requests per remote IP over a fixed window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit  int
	window time.Duration

	exemptIPs  map[string]bool
	exemptNets []*net.IPNet
}

type bucket struct {
	remaining int
	windowEnd time.Time
}

// New creates a Limiter allowing limit requests per window per IP.
// exempt entries may be bare IPs or CIDRs; they always pass.
// limit <= 0 disables limiting entirely.
func New(limit int, window time.Duration, exempt []string) *Limiter {
	l := &Limiter{
		buckets:   make(map[string]*bucket),
		limit:     limit,
		window:    window,
		exemptIPs: make(map[string]bool),
	}
	for _, entry := range exempt {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil {
				l.exemptNets = append(l.exemptNets, network)
			}
			continue
		}
		l.exemptIPs[entry] = true
	}
	return l
}

// Allow reports whether a request from addr (ip or ip:port) may proceed.
func (l *Limiter) Allow(addr string) bool {
	if l.limit <= 0 {
		return true
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if l.isExempt(host) {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[host]
	if !ok || now.After(b.windowEnd) {
		l.buckets[host] = &bucket{remaining: l.limit - 1, windowEnd: now.Add(l.window)}
		return true
	}
	if b.remaining > 0 {
		b.remaining--
		return true
	}
	return false
}

func (l *Limiter) isExempt(host string) bool {
	if l.exemptIPs[host] {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range l.exemptNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware enforces the limit on every request.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.RemoteAddr) {
			http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Prune drops buckets whose window expired before cutoffAge ago.
// Call periodically; without it the map grows with every unique client IP.
func (l *Limiter) Prune(cutoffAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-cutoffAge)
	for host, b := range l.buckets {
		if b.windowEnd.Before(cutoff) {
			delete(l.buckets, host)
		}
	}
}

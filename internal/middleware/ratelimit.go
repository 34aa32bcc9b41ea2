package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// strictPrefixes are public endpoints that accept credentials or form posts
// and share the tighter per-IP budget.
var strictPrefixes = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/api/v1/contact",
	"/api/v1/newsletter/subscribe",
}

var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type clientLimiter struct {
	general  *rate.Limiter
	strict   *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies per-client token buckets to inbound requests.
// A negative general RPM disables the general bucket.
type RateLimitMiddleware struct {
	generalRPM int
	strictRPM  int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

func NewRateLimitMiddleware(generalRPM int, strictRPM int) *RateLimitMiddleware {
	if generalRPM == 0 {
		generalRPM = 100
	}
	if strictRPM <= 0 {
		strictRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		strictRPM:  strictRPM,
		clients:    map[string]*clientLimiter{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.getLimiter(ClientIP(r))

		target := limiter.general
		retryAfter := time.Minute / time.Duration(max(m.generalRPM, 1))
		if isStrictPath(r.URL.Path) {
			target = limiter.strict
			retryAfter = time.Minute / time.Duration(m.strictRPM)
		}

		if target != nil && !target.Allow() {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = now
		return limiter
	}

	created := &clientLimiter{
		strict:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.strictRPM)), m.strictRPM),
		lastSeen: now,
	}
	if m.generalRPM > 0 {
		created.general = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.generalRPM)), m.generalRPM)
	}
	m.clients[clientIP] = created
	m.gcLocked(now)

	return created
}

func (m *RateLimitMiddleware) gcLocked(now time.Time) {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := now.Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func isStrictPath(path string) bool {
	path = strings.ToLower(path)
	for _, prefix := range strictPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ClientIP returns the first forwarded address, then X-Real-IP, then the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

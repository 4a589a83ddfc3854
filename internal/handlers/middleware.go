package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/web"
)

// Response headers that tie an HTTP exchange to a fill pass.
const (
	headerRequestID = "X-Request-Id"
	headerPassID    = "X-Pass-Id"
)

// httpMetrics counts requests. Fill requests, the ones that ran a pass,
// are also counted on their own.
type httpMetrics struct {
	total       atomic.Uint64
	failed      atomic.Uint64
	latencyMs   atomic.Uint64
	rateLimited atomic.Uint64
	fills       atomic.Uint64
	fillMs      atomic.Uint64
}

func (m *httpMetrics) snapshot() map[string]any {
	avg := func(sum, n uint64) float64 {
		if n == 0 {
			return 0
		}
		return float64(sum) / float64(n)
	}
	total, fills := m.total.Load(), m.fills.Load()
	return map[string]any{
		"requestsTotal":    total,
		"requestsFailed":   m.failed.Load(),
		"avgLatencyMs":     avg(m.latencyMs.Load(), total),
		"rateLimited":      m.rateLimited.Load(),
		"fillRequests":     fills,
		"avgFillLatencyMs": avg(m.fillMs.Load(), fills),
	}
}

var requestMetrics httpMetrics

// LoggingMiddleware logs one line per request. A request that ran a fill
// pass is logged with its pass id.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &web.StatusWriter{ResponseWriter: w, Code: 200}
		next.ServeHTTP(sw, r)
		ms := uint64(time.Since(start).Milliseconds())

		requestMetrics.total.Add(1)
		requestMetrics.latencyMs.Add(ms)
		if sw.Code >= 400 {
			requestMetrics.failed.Add(1)
		}
		attrs := []any{
			"requestId", w.Header().Get(headerRequestID),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Code,
			"ms", ms,
		}
		if pass := w.Header().Get(headerPassID); pass != "" {
			requestMetrics.fills.Add(1)
			requestMetrics.fillMs.Add(ms)
			attrs = append(attrs, "passId", pass)
		}
		slog.Info("request", attrs...)
	})
}

func AuthMiddleware(cfg *config.RuntimeConfig, next http.Handler) http.Handler {
	want := []byte("Bearer " + cfg.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		code := ""
		switch {
		case auth == "":
			code = "missing_token"
		case subtle.ConstantTimeCompare([]byte(auth), want) != 1:
			code = "bad_token"
		}
		if code != "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="typeless", error="`+code+`"`)
			web.ErrorCode(w, 401, code, "unauthorized", false, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CorsMiddleware lets browser clients call the API and read the headers
// that identify a pass.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+headerRequestID)
		h.Set("Access-Control-Expose-Headers", headerRequestID+", "+headerPassID)
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware assigns every request an id, echoes it and tags the
// request context so a fill pass logs and reports it.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(headerRequestID)
		if rid == "" {
			b := make([]byte, 8)
			_, _ = rand.Read(b)
			rid = hex.EncodeToString(b)
		}
		w.Header().Set(headerRequestID, rid)
		next.ServeHTTP(w, r.WithContext(autofill.WithRequestID(r.Context(), rid)))
	})
}

// Budgets per client and window. A fill drives a browser tab, so fill
// routes get a tighter budget than the rest of the API.
const (
	rateWindow  = 10 * time.Second
	rateMax     = 120
	rateFillMax = 30
)

// RateLimiter keeps a sliding window of request times per client and
// route class.
type RateLimiter struct {
	window time.Duration
	mu     sync.Mutex
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{window: window, hits: make(map[string][]time.Time), now: time.Now}
}

// Allow records a hit for key unless max hits already fall in the window.
func (l *RateLimiter) Allow(key string, max int) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	if len(kept) >= max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

func isFillRoute(r *http.Request) bool {
	p := strings.TrimSuffix(r.URL.Path, "/")
	return r.Method == http.MethodPost && (p == "/fill" || (strings.HasPrefix(p, "/tabs/") && strings.HasSuffix(p, "/fill")))
}

func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/metrics", "/events":
			next.ServeHTTP(w, r)
			return
		}
		class, max := "api", rateMax
		if isFillRoute(r) {
			class, max = "fill", rateFillMax
		}
		if !l.Allow(class+"|"+clientKey(r), max) {
			requestMetrics.rateLimited.Add(1)
			web.ErrorCode(w, 429, "rate_limited", "too many requests", true, map[string]any{
				"windowSec": int(l.window.Seconds()),
				"max":       max,
				"class":     class,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

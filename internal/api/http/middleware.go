package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"reservas-backend/internal/config"
	"reservas-backend/internal/logger"
	"reservas-backend/internal/metrics"
	"reservas-backend/internal/security"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

var errMissingToken = errors.New("authorization token is not provided")

// AuthMiddleware authenticates requests according to the security level of
// the matched route.
type AuthMiddleware struct {
	verifier     security.IdentityVerifier
	tokenManager security.TokenManager
}

func NewAuthMiddleware(verifier security.IdentityVerifier, tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, tokenManager: tm}
}

func (a *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeName(r)
		level := config.GetSecurityLevel(route)

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractToken(r)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, err.Error())
			return
		}

		var p Principal
		switch level {
		case config.SecurityUser:
			p, err = a.verifyUser(r.Context(), token)
		case config.SecurityUserOrService:
			p, err = a.verifyService(token)
			if err != nil {
				p, err = a.verifyUser(r.Context(), token)
			}
		default:
			p, err = a.verifyService(token)
		}
		if err != nil {
			logger.Warn("Rejected request token", "route", route, "error", err)
			writeFailure(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func (a *AuthMiddleware) verifyUser(ctx context.Context, token string) (Principal, error) {
	if a.verifier == nil {
		return Principal{}, security.ErrInvalidToken
	}
	id, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: id.UID}, nil
}

func (a *AuthMiddleware) verifyService(token string) (Principal, error) {
	claims, err := a.tokenManager.ValidateServiceToken(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Service: claims.Service}, nil
}

func extractToken(r *http.Request) (string, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return "", errMissingToken
	}
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return token, nil
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP. Limiters idle longer than the
// configured TTL are dropped on the next sweep.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	trusted   []*net.IPNet
	now       func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	trusted, err := cfg.TrustedNets()
	if err != nil {
		logger.Warn("Ignoring trusted proxies, forwarding headers will not be honored", "error", err)
	}
	idleTTL := cfg.IdleTTL()
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		idleTTL:  idleTTL,
		trusted:  trusted,
		now:      time.Now,
	}
}

func (l *RateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		for key, entry := range l.limiters {
			if now.Sub(entry.lastSeen) >= l.idleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, l.trusted)
		if !l.getLimiter(ip).Allow() {
			logger.Warn("Rate limit exceeded", "ip", ip, "route", routeName(r))
			writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the connection peer unless the peer is a trusted proxy. Behind
// one, it is the rightmost X-Forwarded-For hop that is not itself trusted.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !isTrustedProxy(peer, trusted) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !isTrustedProxy(hop, trusted) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func isTrustedProxy(addr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request counts and latencies by route template.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.ObserveHTTPRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

func routeName(r *http.Request) string {
	if cr := mux.CurrentRoute(r); cr != nil {
		return cr.GetName()
	}
	return ""
}

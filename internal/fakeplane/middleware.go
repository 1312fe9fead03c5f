package fakeplane

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// authMiddleware rejects requests without the expected bearer key
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && bearerToken(r) != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Invalid or missing API key",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware enforces the per-key limit when one is configured
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		limiter := s.limiter
		s.mu.Unlock()

		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := bearerToken(r)
		if !limiter.Allow(key) {
			// seconds until one token refills, at least 1
			wait := 1
			if rate := float64(limiter.GetLimiter(key).Limit()); rate > 0 {
				wait = int(math.Ceil((1 - limiter.Tokens(key)) / rate))
				if wait < 1 {
					wait = 1
				}
			}
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"message": "Rate limit exceeded",
			})
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens(key))))
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the credential from the Authorization header
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

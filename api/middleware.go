package api

import (
	"log/slog"
	"net/http"

	"github.com/hazyhaar/pageprobe/idgen"
	"github.com/hazyhaar/pageprobe/kit"
)

// requestID tags each request with an ID in the context, the X-Request-ID
// response header and the access log line.
func requestID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = idgen.New()
			}
			w.Header().Set("X-Request-ID", id)
			logger.Info("api: request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			ctx := kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// securityHeaders applies to every response. Snapshot sources are served
// as captured, so the CSP blocks their scripts and subresources.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// maxBody caps request bodies.
func maxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

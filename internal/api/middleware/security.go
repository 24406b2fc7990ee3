package middleware

import "net/http"

// SecurityHeaders sets response headers for a server that only returns JSON
// and voice XML. Strict-Transport-Security is sent only on requests that
// arrived over TLS, directly or through a proxy setting X-Forwarded-Proto.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		// Nothing served here is a document a browser should render.
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Flow records and voice documents change on every step.
		h.Set("Cache-Control", "no-store")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

package transport

import (
	"fmt"
	"net/http"

	"github.com/gobwas/glob"
)

// CORS returns middleware that allows cross-origin reads from origins
// matching any of the given glob patterns (e.g. "http://localhost:*").
// A lone "*" allows every origin.
func CORS(patterns []string) (func(http.Handler) http.Handler, error) {
	allowAll := false
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if p == "*" {
			allowAll = true
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid CORS origin pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}

	allowed := func(origin string) bool {
		if allowAll {
			return true
		}
		for _, g := range globs {
			if g.Match(origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !allowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			if allowAll {
				header.Set("Access-Control-Allow-Origin", "*")
			} else {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				header.Set("Access-Control-Allow-Headers", "Content-Type")
				header.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

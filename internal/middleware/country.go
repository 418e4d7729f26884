package middleware

import (
	"context"
	"net/http"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra/geoip"
)

const countryKey contextKey = "country"

// Country annotates the context with the client's ISO country code when a
// GeoIP database is configured. Lookups are best effort and never block a
// request; the code only feeds audit logging.
func Country(resolver geoip.CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver != nil {
				if code, err := resolver.CountryCode(clientIP(r)); err == nil && code != "" {
					r = r.WithContext(context.WithValue(r.Context(), countryKey, code))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CountryFromContext returns the resolved country code, or "".
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryKey).(string); ok {
		return v
	}
	return ""
}

package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsAuthMiddleware guards the Prometheus scrape endpoint with HTTP
// basic auth. With no credentials configured it lets every request through.
type MetricsAuthMiddleware struct {
	user    [sha256.Size]byte
	pass    [sha256.Size]byte
	enabled bool
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
func NewMetricsAuthMiddleware(username, password string) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		user:    sha256.Sum256([]byte(username)),
		pass:    sha256.Sum256([]byte(password)),
		enabled: username != "" || password != "",
	}
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.enabled && !m.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MetricsHandler serves gatherer in the Prometheus exposition format behind
// basic auth.
func (m *MetricsAuthMiddleware) MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return m.Handler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// authorized compares digests so neither value's length leaks through timing.
func (m *MetricsAuthMiddleware) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	userOK := subtle.ConstantTimeCompare(u[:], m.user[:]) == 1
	passOK := subtle.ConstantTimeCompare(p[:], m.pass[:]) == 1
	return userOK && passOK
}

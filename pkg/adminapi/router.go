// Package adminapi implements the read-only HTTP introspection surface
// (disc registry, logged-on sessions, interlock entries, bulk-transfer
// count) described in the expanded spec's ambient stack, grounded on the
// teacher's pkg/api: a chi router with the same request-id/recover/timeout
// middleware stack, reporting through the same Response envelope shape.
package adminapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/protocol/econet/handlers"
)

// NewRouter builds the admin HTTP handler for server.
//
// Routes:
//   - GET /healthz    - liveness probe
//   - GET /discs      - configured disc registry
//   - GET /sessions   - logged-on stations
//   - GET /interlocks - open interlock entries
//   - GET /bulk       - in-flight bulk-transfer count
func NewRouter(server *handlers.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	h := NewHandlers(server)
	r.Get("/healthz", h.Healthz)
	r.Get("/discs", h.Discs)
	r.Get("/sessions", h.Sessions)
	r.Get("/interlocks", h.Interlocks)
	r.Get("/bulk", h.Bulk)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("admin API request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}

func stationString(st econet.Station) string {
	return fmt.Sprintf("%d.%d", st.Net, st.Stn)
}

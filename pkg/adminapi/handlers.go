package adminapi

import (
	"net/http"

	"github.com/econet-fs/efsd/internal/protocol/econet/handlers"
)

// Handlers exposes the read-only introspection endpoints over the server's
// live state: configured discs, logged-on sessions, and interlock entries.
// A thin wrapper around collaborators it never mutates.
type Handlers struct {
	server *handlers.Server
}

// NewHandlers constructs the admin handlers for server.
func NewHandlers(server *handlers.Server) *Handlers {
	return &Handlers{server: server}
}

// Healthz handles GET /healthz: a liveness probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"service": "efsd"}))
}

type discInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Root  string `json:"root"`
}

// Discs handles GET /discs: the configured disc registry.
func (h *Handlers) Discs(w http.ResponseWriter, r *http.Request) {
	all := h.server.Discs.All()
	out := make([]discInfo, 0, len(all))
	for _, d := range all {
		out = append(out, discInfo{Index: d.Index, Name: d.Name, Root: d.Root})
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

type sessionInfo struct {
	Station   string `json:"station"`
	Username  string `json:"username"`
	Disc      string `json:"disc"`
	LoggedOn  string `json:"logged_on"`
	OpenFiles int    `json:"open_files"`
}

// Sessions handles GET /sessions: every currently logged-on station.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	all := h.server.Sessions.All()
	out := make([]sessionInfo, 0, len(all))
	for _, sess := range all {
		out = append(out, sessionInfo{
			Station:   stationString(sess.Station),
			Username:  sess.Username,
			Disc:      sess.DiscName,
			LoggedOn:  sess.LoggedOn.UTC().Format("2006-01-02T15:04:05Z"),
			OpenFiles: len(sess.Handles.All()),
		})
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

type interlockInfo struct {
	Path    string `json:"path"`
	Readers int    `json:"readers"`
	Writers int    `json:"writers"`
}

// Interlocks handles GET /interlocks: the current reader/writer refcounts
// for every path with an open interlock entry.
func (h *Handlers) Interlocks(w http.ResponseWriter, r *http.Request) {
	paths := h.server.Interlock.Paths()
	out := make([]interlockInfo, 0, len(paths))
	for _, p := range paths {
		readers, writers := h.server.Interlock.Stat(p)
		out = append(out, interlockInfo{Path: p, Readers: readers, Writers: writers})
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

type bulkInfo struct {
	InFlight int `json:"in_flight_transfers"`
}

// Bulk handles GET /bulk: a count of in-flight ancillary-port transfers.
func (h *Handlers) Bulk(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(bulkInfo{InFlight: h.server.Bulk.Len()}))
}

package session

import (
	"sync"
	"time"

	"github.com/econet-fs/efsd/internal/protocol/econet"
)

// Session is one logged-on station: the user identity, the
// three anchor handles every login resolves (root, current, library), and
// the per-session handle table.
type Session struct {
	Station  econet.Station
	UserID   int
	Username string
	Privilege Privilege
	BootOpt  econet.BootOption
	DiscName string

	// RootHandle, CurrentHandle, and LibraryHandle are the handle numbers
	// (into Handles) of the three anchors login resolves and opens.
	RootHandle    int
	CurrentHandle int
	LibraryHandle int

	Handles   HandleTable
	LoggedOn  time.Time
}

// Manager is the server-wide session table, keyed by station. Exactly one Session may exist per station at a time; a second
// login from the same station displaces the first.
type Manager struct {
	mu       sync.Mutex
	sessions map[econet.Station]*Session
}

// NewManager constructs an empty session table.
func NewManager() *Manager {
	return &Manager{sessions: make(map[econet.Station]*Session)}
}

// Get returns the session logged on at st, if any.
func (m *Manager) Get(st econet.Station) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[st]
	return s, ok
}

// Replace installs sess as the session for its station, returning whatever
// session previously occupied that station (nil if none). The caller is
// responsible for releasing the displaced session's handles and interlock
// entries — Manager itself only tracks identity, matching the
// single-threaded dispatch loop's ownership of all other state.
func (m *Manager) Replace(sess *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.sessions[sess.Station]
	m.sessions[sess.Station] = sess
	return old
}

// Remove deletes the session at st, returning it (nil if none existed).
// Used by BYE and by forced-logoff.
func (m *Manager) Remove(st econet.Station) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[st]
	delete(m.sessions, st)
	return s
}

// All returns every currently logged-on session, for READUSERSLOGGEDON and
// the admin introspection surface.
func (m *Manager) All() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Count reports how many stations currently hold a session.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// FindByUsername returns the first session logged on as username, if any —
// used by FLOG to find the station to force off.
func (m *Manager) FindByUsername(username string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if UsernameEquals(s.Username, username) {
			return s, true
		}
	}
	return nil, false
}

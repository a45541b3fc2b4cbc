// Package server wires the core components (resolver, session manager,
// interlock table, bulk engine, request dispatcher) and the ambient stack
// (attrs backend selection, admin API, metrics, bulk-transfer garbage
// collection) into one runnable efsd instance.
package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/attrs/badgerstore"
	"github.com/econet-fs/efsd/internal/attrs/xattr"
	"github.com/econet-fs/efsd/internal/bulk"
	"github.com/econet-fs/efsd/internal/interlock"
	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/protocol/econet/handlers"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
	"github.com/econet-fs/efsd/pkg/adminapi"
	"github.com/econet-fs/efsd/pkg/metrics"
	promMetrics "github.com/econet-fs/efsd/pkg/metrics/prometheus"
)

// Server is one running efsd instance: the dispatcher, the bulk-transfer
// garbage collector, and (optionally) the admin introspection server.
// Transport (pkg/transport/udp) is a separate collaborator that calls
// Dispatch/DispatchBulk; Server owns everything below that boundary.
type Server struct {
	Dispatch *handlers.Server

	cfg     Config
	metrics metrics.DispatchMetrics
	admin   *adminapi.Server
	attrs   attrs.Store

	gcDone chan struct{}
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// New constructs a Server from cfg, scanning ServerRoot for disc trees,
// opening the selected attrs backend, and loading the user store.
func New(cfg Config) (*Server, error) {
	cfg.applyDefaults()

	discs, err := resolver.Scan(cfg.ServerRoot)
	if err != nil {
		return nil, fmt.Errorf("server: scanning discs: %w", err)
	}

	store, err := openAttrsStore(cfg, discs)
	if err != nil {
		return nil, fmt.Errorf("server: opening attrs store: %w", err)
	}

	users, err := session.OpenUserStore(filepath.Join(cfg.ServerRoot, "Passwords"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("server: opening user store: %w", err)
	}

	if err := bootstrapUsers(users, cfg.Bootstrap); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("server: bootstrapping users: %w", err)
	}

	res := resolver.New(discs, store)
	dispatch := handlers.New(session.NewManager(), users, discs, res, interlock.New(), bulk.New(), cfg.SevenBitDates)

	if cfg.DefaultDisc != "" {
		if d, ok := discs.ByName(cfg.DefaultDisc); ok {
			dispatch.DefaultDiscIndex = d.Index
		}
	}

	if cfg.Metrics {
		metrics.InitRegistry()
	}
	dispatchMetrics := promMetrics.NewDispatchMetrics()

	s := &Server{
		Dispatch: dispatch,
		cfg:      cfg,
		metrics:  dispatchMetrics,
		attrs:    store,
		gcDone:   make(chan struct{}),
	}

	if cfg.Admin.IsEnabled() {
		s.admin = adminapi.NewServer(cfg.Admin, dispatch)
	}

	return s, nil
}

// bootstrapUsers creates the configured bootstrap accounts if the user
// store is currently empty, so a fresh deployment comes up with a working
// SYST login instead of requiring a manual NEWUSER session against an
// empty Passwords file.
func bootstrapUsers(users *session.UserStore, bootstrap []BootstrapUser) error {
	if len(bootstrap) == 0 {
		return nil
	}
	existing, err := users.All()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, b := range bootstrap {
		id, err := users.AllocateSlot()
		if err != nil {
			return err
		}
		priv := session.PrivUser
		if b.System {
			priv |= session.PrivSystem
		}
		if err := users.Put(session.User{
			ID:        id,
			Username:  b.Username,
			Password:  b.Password,
			Privilege: priv,
			Home:      b.Home,
			Library:   b.Library,
			HomeDisc:  b.HomeDisc,
		}); err != nil {
			return err
		}
		logger.Info("bootstrap user created", "username", b.Username, "system", b.System)
	}
	return nil
}

func openAttrsStore(cfg Config, discs *resolver.Discs) (attrs.Store, error) {
	if cfg.Attrs == AttrsXattr {
		return xattr.New(), nil
	}

	multi := newMultiAttrs(xattr.New())
	for _, d := range discs.All() {
		dbDir := filepath.Join(cfg.BadgerDir, d.Name)
		store, err := badgerstore.Open(dbDir, d.Root)
		if err != nil {
			_ = multi.Close()
			return nil, fmt.Errorf("opening badger store for disc %q: %w", d.Name, err)
		}
		multi.add(d.Root, store)
	}
	return multi, nil
}

// DispatchTimed wraps handlers.Server.Dispatch with request-duration,
// error-code, and interlock-contention metrics. A transport should call
// this instead of s.Dispatch.Dispatch directly.
func (s *Server) DispatchTimed(station econet.Station, payload []byte) []byte {
	start := time.Now()
	reply := s.Dispatch.Dispatch(station, payload)

	fsop := "unknown"
	if req, err := econet.ParseRequest(station, payload); err == nil {
		fsop = fmt.Sprintf("0x%02X", req.Fsop)
	}

	errCode := "none"
	if len(reply) >= 2 && reply[0] == 0x00 {
		errCode = fmt.Sprintf("0x%02X", reply[1])
		if reply[1] == byte(econet.ErrAlreadyOpen) {
			s.metrics.RecordInterlockContention(fsop)
		}
	}

	s.metrics.RecordRequest(fsop, time.Since(start), errCode)
	s.metrics.SetActiveSessions(s.Dispatch.Sessions.Count())
	return reply
}

// Start runs the bulk-transfer garbage collector and (if enabled) the admin
// API until ctx is cancelled, then shuts both down. It blocks until shutdown
// completes.
func (s *Server) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.runBulkGC(ctx)

	if s.admin == nil {
		<-ctx.Done()
		return s.Stop(context.Background())
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.admin.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errChan:
		stopErr := s.Stop(context.Background())
		if err != nil {
			return err
		}
		return stopErr
	}
}

// Stop releases the server's resources. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		close(s.gcDone)
		s.wg.Wait()

		if s.admin != nil {
			if err := s.admin.Stop(ctx); err != nil {
				stopErr = err
			}
		}
		if err := s.attrs.Close(); err != nil && stopErr == nil {
			stopErr = err
		}
	})
	return stopErr
}

func (s *Server) runBulkGC(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.BulkGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcDone:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired := s.Dispatch.Bulk.Sweep(now, s.cfg.BulkGCIdle)
			for range expired {
				s.metrics.RecordBulkReclaim()
			}
			if len(expired) > 0 {
				logger.Debug("bulk-transfer GC reclaimed idle contexts", "count", len(expired))
			}
		}
	}
}

package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/cache"
	"github.com/cuemby/omg/pkg/config"
	"github.com/cuemby/omg/pkg/handler"
	"github.com/cuemby/omg/pkg/index"
	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/metrics"
	"github.com/cuemby/omg/pkg/pkv"
	"github.com/cuemby/omg/pkg/status"
	"github.com/rs/zerolog"
)

// DefaultMaxConnections bounds total concurrently-accepted connections.
const DefaultMaxConnections = 1024

// Server owns the domain socket, the pidfile lock, and the lifecycle of
// every long-lived component (PKV, PIX, SAG, handlers) composing one
// running daemon instance.
type Server struct {
	cfg       *config.Config
	store     *pkv.BoltStore
	idx       *index.Index
	be        backend.Backend
	cache     *cache.TTLCache
	agg       *status.Aggregator
	handlers  *handler.Handlers
	collector *metrics.Collector
	logger    zerolog.Logger

	pidfile  *PidFile
	listener *net.UnixListener

	connSem chan struct{}
	connWG  sync.WaitGroup

	drainCtx    context.Context
	drainCancel context.CancelFunc

	shutdownOnce sync.Once
	stopped      chan struct{}
}

// New wires a Server from a resolved configuration and backend. store
// is opened by Start, not New, so that a storage failure surfaces
// through Start's error return rather than a constructor panic.
func New(cfg *config.Config, be backend.Backend) *Server {
	drainCtx, drainCancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		be:          be,
		logger:      log.WithComponent("daemon"),
		connSem:     make(chan struct{}, DefaultMaxConnections),
		drainCtx:    drainCtx,
		drainCancel: drainCancel,
		stopped:     make(chan struct{}),
	}
}

// Start acquires the pidfile lock, opens PKV, builds the initial index,
// starts the status aggregator, and binds the domain socket. It does
// not accept connections; call Run for that. Returning ErrAlreadyRunning
// is the caller's cue to exit with code 2.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("daemon: create data dir: %w", err)
	}

	pf, holderPid, err := AcquirePidFile(s.cfg.PidfilePath)
	if err != nil {
		if holderPid > 0 {
			return fmt.Errorf("%w: held by pid %d", ErrAlreadyRunning, holderPid)
		}
		return fmt.Errorf("%w: %v", ErrAlreadyRunning, err)
	}
	s.pidfile = pf
	if err := s.pidfile.Write(os.Getpid()); err != nil {
		s.pidfile.Release()
		return fmt.Errorf("daemon: write pidfile: %w", err)
	}

	store, err := pkv.Open(s.cfg.DataDir)
	if err != nil {
		s.pidfile.Release()
		return fmt.Errorf("daemon: open storage: %w", err)
	}
	s.store = store
	metrics.Report(metrics.ComponentStorage, true, "open")

	s.idx = index.New(s.store)
	restored := s.idx.LoadPersisted()
	if _, _, err := s.idx.Rebuild(ctx, s.be); err != nil {
		if restored {
			s.logger.Warn().Err(err).Msg("backend unavailable, serving the restored index")
		} else {
			s.logger.Warn().Err(err).Msg("initial index build failed, starting with an empty index")
		}
	}

	s.cache = cache.New(0)
	s.agg = status.New(s.idx, s.be, s.store, s.cfg.StatusPath, s.cfg.StatusInterval)
	s.agg.Start(ctx)

	s.collector = metrics.NewCollector(s.idx, s.cache)
	s.collector.Start()

	s.handlers = handler.New(s.idx, s.be, s.cache, s.store, s.agg)
	s.handlers.ShutdownFunc = s.Shutdown

	os.Remove(s.cfg.SocketPath)
	addr, err := net.ResolveUnixAddr("unix", s.cfg.SocketPath)
	if err != nil {
		s.teardownAfterFailedStart()
		return fmt.Errorf("daemon: resolve socket address: %w", err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		s.teardownAfterFailedStart()
		return fmt.Errorf("daemon: bind socket: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0700); err != nil {
		listener.Close()
		s.teardownAfterFailedStart()
		return fmt.Errorf("daemon: chmod socket: %w", err)
	}
	s.listener = listener

	s.logger.Info().Str("socket", s.cfg.SocketPath).Msg("daemon started")
	return nil
}

func (s *Server) teardownAfterFailedStart() {
	if s.collector != nil {
		s.collector.Stop()
	}
	if s.agg != nil {
		s.agg.Stop()
	}
	if s.store != nil {
		s.store.Close()
	}
	s.pidfile.Release()
}

// Run accepts connections until the listener closes (triggered by
// Shutdown), returning nil once every connection has drained.
func (s *Server) Run(ctx context.Context) error {
	for {
		rawConn, err := s.listener.AcceptUnix()
		if err != nil {
			select {
			case <-s.drainCtx.Done():
				s.connWG.Wait()
				return nil
			default:
				return fmt.Errorf("daemon: accept: %w", err)
			}
		}

		select {
		case s.connSem <- struct{}{}:
		default:
			// At capacity: refuse immediately rather than queue.
			rawConn.Close()
			metrics.ConnectionsRejectedTotal.Inc()
			continue
		}

		metrics.ConnectionsActive.Inc()
		s.connWG.Add(1)
		go func() {
			defer s.connWG.Done()
			defer func() { <-s.connSem }()
			defer metrics.ConnectionsActive.Dec()
			c := newConn(rawConn, s.handlers, s.cfg.RateLimit, s.logger)
			c.serve(s.drainCtx)
		}()
	}
}

// Shutdown stops accepting new connections, waits up to
// cfg.DrainDeadline for in-flight handlers, then force-closes
// everything and removes the socket and pidfile. Safe to call more
// than once and from any goroutine (signal handler, Shutdown RPC).
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info().Msg("draining")
		s.drainCancel()
		if s.listener != nil {
			s.listener.Close()
		}

		done := make(chan struct{})
		go func() {
			s.connWG.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(s.cfg.DrainDeadline):
			s.logger.Warn().Msg("drain deadline exceeded, forcing close")
		}

		if s.collector != nil {
			s.collector.Stop()
		}
		if s.agg != nil {
			s.agg.Stop()
		}
		if s.store != nil {
			s.store.Close()
		}
		os.Remove(s.cfg.SocketPath)
		if s.pidfile != nil {
			s.pidfile.Release()
		}
		close(s.stopped)
	})
}

// Stopped is closed once Shutdown has finished tearing everything down.
func (s *Server) Stopped() <-chan struct{} {
	return s.stopped
}

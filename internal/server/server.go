package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kstaniek/go-tcan-bench/internal/command"
	"github.com/kstaniek/go-tcan-bench/internal/device"
	"github.com/kstaniek/go-tcan-bench/internal/hub"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// Server is the control API. Handlers only touch the shared state and the
// command queue; they never perform bus I/O.
type Server struct {
	mu    sync.RWMutex
	addr  string
	State *device.State
	Queue *command.Queue
	Hub   *hub.Hub

	flushInterval   time.Duration
	batchSize       int
	pingInterval    time.Duration
	shutdownTimeout time.Duration
	maxMonitors     int
	readyOnce       sync.Once
	readyCh         chan struct{}
	monitorsMu      sync.Mutex
	monitors        map[*hub.Client]func()
	closing         bool // set by Shutdown under monitorsMu; no monitor starts after it
	wg              sync.WaitGroup
	logger          *slog.Logger
	nextConnID      atomic.Uint64
	totalMonitors   atomic.Uint64
	totalRequests   atomic.Uint64
}

const (
	defaultFlushInterval   = 20 * time.Millisecond
	defaultBatchSize       = 64
	defaultPingInterval    = 15 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

type ServerOption func(*Server)

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		flushInterval:   defaultFlushInterval,
		batchSize:       defaultBatchSize,
		pingInterval:    defaultPingInterval,
		shutdownTimeout: defaultShutdownTimeout,
		readyCh:         make(chan struct{}),
		monitors:        make(map[*hub.Client]func()),
		logger:          logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	if s.State == nil {
		s.State = device.NewState()
	}
	if s.Queue == nil {
		s.Queue = command.NewQueue(nil)
	}
	return s
}

func WithListenAddr(a string) ServerOption    { return func(s *Server) { s.addr = a } }
func WithState(st *device.State) ServerOption { return func(s *Server) { s.State = st } }
func WithQueue(q *command.Queue) ServerOption { return func(s *Server) { s.Queue = q } }
func WithHub(hb *hub.Hub) ServerOption        { return func(s *Server) { s.Hub = hb } }
func WithMaxMonitors(n int) ServerOption      { return func(s *Server) { s.maxMonitors = n } }

func WithFlushInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

func WithBatchSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithPingInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func (s *Server) Addr() string           { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }
func (s *Server) setAddr(a string)       { s.mu.Lock(); s.addr = a; s.mu.Unlock() }
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Post("/enter_mode/{mode}", s.handleEnterMode)
	r.Post("/set_axis", s.handleSetAxis)
	r.Post("/autocal", s.handleAutocal)
	r.Post("/command/{token}", s.handleCommand)
	r.Get("/state", s.handleState)
	r.Get("/ws/frames", s.handleFrames)
	return r
}

// requestLog logs each request at debug level and counts it by route pattern.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.totalRequests.Add(1)
		metrics.IncRequest(route)
		s.logger.Debug("http_request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"dur", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Serve listens on the configured address and serves until ctx ends, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		return wrap
	}
	s.setAddr(ln.Addr().String())
	hs := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("http_listen", "addr", s.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		wrap := fmt.Errorf("%w: %v", ErrServe, err)
		metrics.IncError(mapErrToMetric(wrap))
		return wrap
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	_ = hs.Shutdown(sctx)
	return s.Shutdown(sctx)
}

// Shutdown disconnects monitor clients and waits for their writers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.monitorsMu.Lock()
	s.closing = true
	for cl, closeConn := range s.monitors {
		closeConn()
		cl.Close()
	}
	s.monitorsMu.Unlock()
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown timeout: %v", ErrContext, ctx.Err())
	case <-done:
		s.logger.Info("shutdown_summary", "requests", s.totalRequests.Load(), "monitors", s.totalMonitors.Load())
		return nil
	}
}

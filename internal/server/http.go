package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/session"
)

// StatusSource is read by the status endpoint.
type StatusSource interface {
	Status() session.Status
}

type statusView struct {
	Trial        int             `json:"trial"`
	Total        int             `json:"total"`
	Scene        string          `json:"scene"`
	Device       string          `json:"device"`
	Task         string          `json:"task"`
	Overridden   bool            `json:"overridden"`
	Finished     bool            `json:"finished"`
	SelectedTime float64         `json:"selected_time"`
	Target       experiment.Vec3 `json:"target"`
	Engine       bool            `json:"engine_connected"`
}

// HTTPServer exposes the engine websocket and a JSON status endpoint.
type HTTPServer struct {
	addr     string
	server   *http.Server
	listener net.Listener
	bridge   *EngineBridge
	status   StatusSource
	logger   log.Log

	mu      sync.Mutex
	running bool
	// serveErr carries a Serve failure other than a graceful shutdown.
	serveErr chan error
}

const shutdownTimeout = 5 * time.Second

func NewHTTPServer(addr, enginePath string, bridge *EngineBridge, status StatusSource, logger log.Log) *HTTPServer {
	s := &HTTPServer{
		addr:     addr,
		bridge:   bridge,
		status:   status,
		logger:   logger.With(log.String("component", "http")),
		serveErr: make(chan error, 1),
	}
	mux := http.NewServeMux()
	mux.Handle(enginePath, bridge)
	mux.HandleFunc("/status", s.handleStatus)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background.
func (s *HTTPServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.running = true

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", log.Error(err))
			s.serveErr <- err
		}
	}()
	s.logger.Info("listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Serve starts the server and blocks until ctx is done, then shuts it down
// gracefully. It returns early with the error if serving fails.
func (s *HTTPServer) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case err := <-s.serveErr:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("serve %s: %w", s.Addr(), err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrServerNotRunning
	}
	s.running = false
	return s.server.Shutdown(ctx)
}

// Addr is the bound address, useful when listening on port 0.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var st session.Status
	s.bridge.Do(func() { st = s.status.Status() })

	view := statusView{
		Trial:        st.Trial,
		Total:        st.Total,
		Scene:        st.SceneLabel(),
		Device:       st.Device.String(),
		Task:         st.TaskLabel(),
		Overridden:   st.Overridden,
		Finished:     st.Finished,
		SelectedTime: st.SelectedTime,
		Target:       st.Target,
		Engine:       s.bridge.Connected(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.logger.Warn("status encode failed", log.Error(err))
	}
}

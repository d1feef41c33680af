// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrBusy is reported to a client connecting while another is attached
	ErrBusy = errors.New("link: client already connected")
	// ErrNoClient is returned by Write when no client is attached
	ErrNoClient = errors.New("link: no client connected")
)

// DefaultWebSocketPath is the endpoint served by ListenAndServe
const DefaultWebSocketPath = "/slcan"

// WebSocketConfig configures a WebSocketServer
type WebSocketConfig struct {
	Username     string // optional, checked only when Password is set
	Password     string // enables HTTP Basic auth when non-empty
	WriteTimeout time.Duration
	OnLineState  LineStateFunc
	Logger       *slog.Logger
}

// WebSocketServer is a channel that sends each write as one text message to
// a single attached client. A connected client counts as a ready host.
type WebSocketServer struct {
	cfg      WebSocketConfig
	upgrader websocket.Upgrader

	mu   sync.Mutex
	busy bool
	conn *websocket.Conn
}

// NewWebSocketServer creates a server with cfg
func NewWebSocketServer(cfg WebSocketConfig) *WebSocketServer {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.OnLineState == nil {
		cfg.OnLineState = func(bool, bool) {}
	}
	return &WebSocketServer{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *WebSocketServer) authorized(r *http.Request) bool {
	if s.cfg.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := s.cfg.Username == "" || subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password)) == 1
	return userOK && passOK
}

// ServeHTTP upgrades the request and holds the client until it disconnects
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="canlink"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.cfg.Logger.Warn("rejecting websocket client", "remote", r.RemoteAddr, "error", ErrBusy)
		http.Error(w, ErrBusy.Error(), http.StatusConflict)
		return
	}
	s.busy = true
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.cfg.Logger.Info("websocket client connected", "remote", r.RemoteAddr)
	s.cfg.OnLineState(true, true)

	// Incoming messages are ignored; reading detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.cfg.OnLineState(false, false)
	s.mu.Lock()
	s.conn = nil
	s.busy = false
	s.mu.Unlock()
	conn.Close()
	s.cfg.Logger.Info("websocket client disconnected", "remote", r.RemoteAddr)
}

func (s *WebSocketServer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, ErrNoClient
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush is a no-op; every Write is sent as a complete message
func (s *WebSocketServer) Flush() error {
	return nil
}

// Connected reports whether a client is attached
func (s *WebSocketServer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// closeClient drops the attached client, if any
func (s *WebSocketServer) closeClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(s.cfg.WriteTimeout))
		s.conn.Close()
	}
}

// ListenAndServe serves the endpoint at path on addr until ctx ends
func (s *WebSocketServer) ListenAndServe(ctx context.Context, addr, path string) error {
	if path == "" {
		path = DefaultWebSocketPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, s)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.closeClient()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.cfg.Logger.Info("websocket server listening", "addr", ln.Addr().String(), "path", path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

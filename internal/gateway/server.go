// Package gateway is the dialbridge HTTP + WebSocket server: the REST
// control surface for originating and inspecting calls, and the media
// stream endpoint the telephony provider connects to.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dialbridge/dialbridge/internal/bridge"
	"github.com/dialbridge/dialbridge/internal/config"
	"github.com/dialbridge/dialbridge/internal/logging"
	"github.com/dialbridge/dialbridge/internal/prompts"
	"github.com/dialbridge/dialbridge/internal/store"
	"github.com/dialbridge/dialbridge/internal/telephony"
	"github.com/dialbridge/dialbridge/internal/version"
)

// Server is the dialbridge gateway server.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	sessions *bridge.Registry
	prompts  *prompts.Registry
	version  string

	// Call control API (optional: nil disables originate/hangup endpoints).
	calls telephony.CallAPI

	// Call record store (optional: nil disables call history endpoints).
	records  *store.CallStore
	recorder bridge.Recorder

	dialer bridge.AdapterDialer

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithCallAPI sets the telephony call-control client.
func WithCallAPI(api telephony.CallAPI) ServerOption {
	return func(s *Server) {
		s.calls = api
	}
}

// WithCallStore sets the call-record store.
func WithCallStore(cs *store.CallStore) ServerOption {
	return func(s *Server) {
		s.records = cs
		s.recorder = store.NewRecorder(cs)
	}
}

// WithAdapterDialer sets how media sessions reach the speech service.
func WithAdapterDialer(d bridge.AdapterDialer) ServerOption {
	return func(s *Server) {
		s.dialer = d
	}
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.Sub("gateway"),
		sessions: bridge.NewRegistry(log.Sub("sessions")),
		prompts:  prompts.NewRegistry(),
		version:  version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The media stream peer is a server-side telephony client, not a
			// browser; origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Prompts returns the prompt registry so callers can pre-register objectives.
func (s *Server) Prompts() *prompts.Registry {
	return s.prompts
}

// Sessions returns the live media session registry.
func (s *Server) Sessions() *bridge.Registry {
	return s.sessions
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := withMiddleware(mux, s.log)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
		// No WriteTimeout: media stream websockets are long-lived.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("publicHost", s.cfg.Server.PublicHost).
		Msg("gateway server ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.sessions.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleMedia upgrades the telephony media stream connection and runs its
// read loop. One websocket connection is one bridge session.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("media stream upgrade failed")
		return
	}

	session := bridge.NewSession(
		conn,
		bridge.Config{
			DefaultObjective: s.cfg.Agent.DefaultObjective,
			Grace:            time.Duration(s.cfg.Agent.GraceSeconds) * time.Second,
		},
		s.prompts,
		s.dialer,
		s.recorder,
		s.log,
		func(sess *bridge.Session) { s.sessions.Remove(sess.ID) },
	)
	s.sessions.Add(session)

	s.log.Debug().Str("remote", r.RemoteAddr).Str("sessionId", session.ID).Msg("media stream connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("sessionId", session.ID).Msg("media stream closed by peer")
			} else {
				s.log.Debug().Err(err).Str("sessionId", session.ID).Msg("media stream read ended")
			}
			break
		}
		session.HandleTelephonyMessage(raw)
	}

	session.TelephonyClosed()
}

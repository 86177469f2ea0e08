package server

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/config"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/connection"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/presence"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
)

// Server accepts WebTransport sessions and owns their life-cycle: auth first,
// then the frame loop, then the disconnect cleanup. The registry and the
// presence tracker see connect/disconnect in the same logical step as the
// session events that caused them.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *connection.Registry
	tracker  *presence.Tracker
	handler  *protocol.Handler
	wtServer *webtransport.Server
	wg       sync.WaitGroup
}

// New creates a server around an existing registry, tracker and session
// handler.
func New(cfg *config.Config, registry *connection.Registry, tracker *presence.Tracker, handler *protocol.Handler, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		tracker:  tracker,
		handler:  handler,
	}
}

// Start listens and serves until the listener is closed.
func (s *Server) Start(ctx context.Context) error {
	tlsConfig, err := s.loadTLSConfig()
	if err != nil {
		return err
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:        s.cfg.QUIC.MaxIdleTimeout,
		KeepAlivePeriod:       s.cfg.QUIC.KeepAlivePeriod,
		MaxIncomingStreams:    s.cfg.QUIC.MaxIncomingStreams,
		MaxIncomingUniStreams: s.cfg.QUIC.MaxIncomingUniStreams,
		Allow0RTT:             s.cfg.QUIC.Allow0RTT,
		EnableDatagrams:       true, // required by WebTransport
	}

	s.wtServer = &webtransport.Server{
		H3: http3.Server{
			Addr:       s.cfg.Server.Addr,
			TLSConfig:  tlsConfig,
			QUICConfig: quicConfig,
		},
		CheckOrigin: func(r *http.Request) bool {
			// TODO: restrict Origin once the web client's domain is fixed
			return true
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webtransport", func(w http.ResponseWriter, r *http.Request) {
		session, err := s.wtServer.Upgrade(w, r)
		if err != nil {
			s.logger.Error("WebTransport upgrade failed", "error", err)
			return
		}
		s.wg.Add(1)
		go s.handleSession(ctx, session)
	})

	s.wtServer.H3.Handler = mux

	s.logger.Info("WebTransport server starting", "addr", s.cfg.Server.Addr)
	return s.wtServer.ListenAndServe()
}

// handleSession runs one connection from accept to cleanup.
func (s *Server) handleSession(ctx context.Context, session *webtransport.Session) {
	defer s.wg.Done()

	c := connection.NewFromWebTransport(session, s.logger)
	defer func() {
		c.Close()
		if c.UserID() > 0 {
			last := s.registry.Unregister(c.UserID(), c.ID())
			if last {
				s.tracker.HandleDisconnect(ctx, c.UserID())
			}
		}
	}()

	// the first stream carries the auth handshake and then all client traffic
	firstStream, err := session.AcceptStream(ctx)
	if err != nil {
		return
	}

	if err := s.handler.HandleFirstFrame(ctx, c, firstStream); err != nil {
		s.logger.Warn("Auth failed, closing session", "conn_id", c.ID(), "error", err)
		if err := session.CloseWithError(4001, "auth failed"); err != nil {
			s.logger.Error("Failed to close session", "conn_id", c.ID(), "error", err)
		}
		return
	}

	// blocks until the stream closes, then the deferred cleanup runs
	s.handler.HandleStream(ctx, c, firstStream)
}

func (s *Server) loadTLSConfig() (*tls.Config, error) {
	if s.cfg.QUIC.CertFile != "" && s.cfg.QUIC.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.QUIC.CertFile, s.cfg.QUIC.KeyFile)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Loaded TLS certificate",
			"cert_file", s.cfg.QUIC.CertFile,
			"key_file", s.cfg.QUIC.KeyFile)
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h3", "webtransport"},
			MinVersion:   tls.VersionTLS13,
		}, nil
	}

	s.logger.Warn("No TLS certificate configured, using self-signed certificate")
	return generateSelfSignedTLSConfig()
}

// Registry exposes the connection registry (health checks).
func (s *Server) Registry() *connection.Registry {
	return s.registry
}

// Shutdown closes the listener and waits for sessions to drain.
func (s *Server) Shutdown() {
	if s.wtServer != nil {
		s.wtServer.Close()
	}
	s.wg.Wait()
}

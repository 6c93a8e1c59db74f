// Package api exposes the agent over HTTP: an inbound message webhook, a
// conversation read endpoint and a health probe.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

type Config struct {
	Address string `envconfig:"ADDRESS" default:":8080"`
}

// Sender processes one inbound lead message.
type Sender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

type Server struct {
	mux          *http.ServeMux
	agent        Sender
	leads        contractx.LeadStore
	conversation contractx.ConversationStore
	maxHistory   int
}

func NewServer(agent Sender, leads contractx.LeadStore, conversation contractx.ConversationStore, maxHistory int) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		agent:        agent,
		leads:        leads,
		conversation: conversation,
		maxHistory:   maxHistory,
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /conversation/{phone}", s.handleConversation)
	s.mux.HandleFunc("GET /lead/{phone}", s.handleLead)
	s.mux.HandleFunc("POST /message", s.handleMessage)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting http server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

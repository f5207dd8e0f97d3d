package main

import (
	"context"
	"net/http"
	"time"

	"warelay/internal/config"
	"warelay/internal/constants"
	"warelay/internal/database"
	"warelay/internal/ingress"
	"warelay/internal/middleware"
	"warelay/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg    *config.Config
	router *mux.Router
	logger *logrus.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, db *database.Database, factory service.GatewayFactory, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logger,
	}

	handler := ingress.NewHandler(db, db, logger)
	s.setupRoutes(handler)
	return s
}

func (s *Server) setupRoutes(handler *ingress.Handler) {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	// gateway webhook callbacks, one URL per channel
	s.router.HandleFunc("/whatsapp/{uuid:[a-z0-9-]+}/", handler.ServeWebhook).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(constants.DefaultIdleTimeoutSec) * time.Second,
	}

	s.logger.WithField("addr", s.server.Addr).Info("Starting webhook server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

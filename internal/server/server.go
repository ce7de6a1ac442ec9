// Package server assembles the broker from its configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"proxichat/broker/internal/broker"
	"proxichat/broker/internal/config"
	"proxichat/broker/internal/database"
	"proxichat/broker/internal/handlers"
	"proxichat/broker/internal/history"
	"proxichat/broker/internal/queue"
	"proxichat/broker/internal/registry"
	"proxichat/broker/internal/routes"
	"proxichat/broker/internal/users"
	"proxichat/broker/internal/utils"
	ws "proxichat/broker/internal/websocket"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

type Server struct {
	cfg config.Config
	app *fiber.App
	hub *ws.Hub
	log *slog.Logger

	// released in reverse order by Close
	closers []func() error
}

// New opens the configured stores and builds the HTTP application. Close
// must be called to release the stores, even when New fails halfway.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	var badgerDB *badger.DB
	if cfg.NeedsBadger() {
		db, err := database.OpenBadger(cfg.BadgerPath, log)
		if err != nil {
			return s, err
		}
		badgerDB = db
		s.closers = append(s.closers, db.Close)
	}

	q, err := queue.New(cfg.QueueBackend, badgerDB, log)
	if err != nil {
		return s, err
	}
	if bq, ok := q.(*queue.BadgerQueue); ok {
		s.closers = append(s.closers, bq.Close)
	}

	h, err := history.New(cfg.HistoryBackend, badgerDB, log)
	if err != nil {
		return s, err
	}
	if bh, ok := h.(*history.BadgerStore); ok {
		s.closers = append(s.closers, bh.Close)
	}

	accounts, err := s.openAccounts(ctx)
	if err != nil {
		return s, err
	}

	var tokens *utils.TokenIssuer
	if cfg.AuthEnabled() {
		tokens = utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	} else {
		log.Warn("JWT_SECRET is not set, authentication is disabled")
	}

	reg := registry.New(log)
	s.hub = ws.NewHub(reg, q, h, log)
	service := broker.NewService(reg, s.hub, q, h, accounts, cfg.DefaultRadius, log)
	handler := handlers.New(service, s.hub, tokens, cfg.SendBuffer, log)

	s.app = fiber.New(fiber.Config{
		AppName:               "ProxiChat Broker",
		DisableStartupMessage: true,
	})
	s.app.Use(logger.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	routes.SetupRoutes(s.app, handler, tokens)

	log.Info("Broker ready",
		"queue_backend", cfg.QueueBackend,
		"history_backend", cfg.HistoryBackend,
		"auth", cfg.AuthEnabled())
	return s, nil
}

func (s *Server) openAccounts(ctx context.Context) (users.Store, error) {
	if s.cfg.DatabaseURL != "" {
		pool, err := database.ConnectPostgres(ctx, s.cfg.DatabaseURL, s.log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			pool.Close()
			return nil
		})
		return users.NewPostgresStore(pool), nil
	}

	db, err := database.OpenSQLite(ctx, s.cfg.SQLiteDSN(), s.log)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, db.Close)
	return users.NewSQLiteStore(db), nil
}

// App exposes the HTTP application
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured port until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub and serves HTTP on ln until ctx is cancelled, then shuts
// down: the hub first so live connections are closed, then the HTTP server.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		s.hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("Server starting", "addr", ln.Addr().String())
		serveErr <- s.app.Listener(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	stopHub()
	<-hubDone
	if err := s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases every store opened by New
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/todo/internal/db"
	"github.com/nkiryanov/todo/internal/handlers"
	"github.com/nkiryanov/todo/internal/logger"
	"github.com/nkiryanov/todo/internal/repository/postgres"
	"github.com/nkiryanov/todo/internal/service/auth"
	"github.com/nkiryanov/todo/internal/service/auth/google"
	"github.com/nkiryanov/todo/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/todo/internal/service/mailer"
	"github.com/nkiryanov/todo/internal/service/tokensweeper"
	"github.com/nkiryanov/todo/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool    *pgxpool.Pool
	sweeper *tokensweeper.Sweeper
	logger  logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Check keys before touching the database
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessKey:  c.AccessSecretKey,
		RefreshKey: c.RefreshSecretKey,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Emails are only logged when there is no smtp server configured
	var m auth.Mailer = mailer.NewLogMailer(logger)
	if c.SMTPHost != "" {
		m, err = mailer.NewSMTPMailer(mailer.Config{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		}, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("error while creating mailer. Err: %w", err)
		}
	}

	// Initialize services
	authService, err := auth.NewService(
		auth.Config{FrontendURL: c.FrontendURL},
		tokenManager,
		storage,
		google.NewClient(c.GoogleUserInfoURL, logger),
		m,
		logger,
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(storage)

	mux := handlers.NewRouter(authService, userService, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		pool:       pool,
		sweeper:    tokensweeper.New(c.TokenSweepInterval, storage.Token(), logger),
		logger:     logger,
	}, nil
}

// Run starts http server and token sweeper and stops them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Sweep(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}

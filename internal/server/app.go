// Package server wires the application together: storage, one-time code
// engine, token service, federated sign-in, avatar storage and the HTTP
// endpoint, with graceful shutdown on OS signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avdeev-dm/accountd/internal/dbx"
	"github.com/avdeev-dm/accountd/internal/logging"
	"github.com/avdeev-dm/accountd/internal/server/accounts"
	"github.com/avdeev-dm/accountd/internal/server/avatars"
	"github.com/avdeev-dm/accountd/internal/server/config"
	"github.com/avdeev-dm/accountd/internal/server/httpapi"
	"github.com/avdeev-dm/accountd/internal/server/notify"
	"github.com/avdeev-dm/accountd/internal/server/oauth"
	"github.com/avdeev-dm/accountd/internal/server/otp"
	"github.com/avdeev-dm/accountd/internal/server/password"
	"github.com/avdeev-dm/accountd/internal/server/shared/db"
	"github.com/avdeev-dm/accountd/internal/server/tokens"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	accountService *accounts.Service
}

func NewApp(cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	manager, err := db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	revoked, err := newRevocationRepository(cfg, manager)
	if err != nil {
		return nil, fmt.Errorf("revocation store init error: %w", err)
	}

	avatarStore, err := avatars.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("avatar store init error: %w", err)
	}

	otpEngine := otp.NewEngine(manager.Conn(), func(tx dbx.DBTX) otp.Repository {
		return otp.NewPostgresRepository(tx)
	}, cfg.OtpLifetime, cfg.OtpResendCooldown)

	tokenService := tokens.NewService(cfg.SecretKey, cfg.AccessTokenValidityDuration, revoked)

	provider := oauth.NewGoogleProvider(oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	})

	accountService := accounts.NewService(
		manager.Identities(),
		otpEngine,
		tokenService,
		notify.NewLogNotifier(logger),
		password.NewPolicy(cfg.BcryptCost),
		provider,
		avatarStore,
	)

	return &App{config: cfg, logger: logger, accountService: accountService}, nil
}

// newRevocationRepository picks the backing store for revoked tokens: Redis
// when an address is configured, PostgreSQL otherwise.
func newRevocationRepository(cfg *config.Config, manager db.RepositoryManager) (tokens.Repository, error) {
	if cfg.RedisAddr == "" {
		return manager.RevokedTokens(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return tokens.NewRedisRepository(client, cfg.AccessTokenValidityDuration)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	handler := httpapi.NewServer(app.accountService, app.logger, app.config.BaseURL).Router()

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, err.Error())
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}

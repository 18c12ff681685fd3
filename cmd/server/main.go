package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/friendshare/identity-server/email"
	"github.com/friendshare/identity-server/internal/config"
	"github.com/friendshare/identity-server/server"
	"github.com/friendshare/identity-server/users"
	"github.com/friendshare/identity-server/users/postgres"
	"github.com/friendshare/identity-server/users/repofake"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	displayAppname(cfg.GetAppName())

	repo, err := userRepo(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, repo, mailSender(cfg))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// userRepo picks the account store: postgres when a DSN is configured, the
// in-memory fake otherwise (DEV only).
func userRepo(cfg config.Config) (users.UserRepo, error) {
	if dsn := cfg.GetDatabaseDSN(); dsn != "" {
		repo, err := postgres.Open(context.Background(), dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres.Open: %w", err)
		}
		return repo, nil
	}
	if cfg.GetEnv() != "DEV" {
		return nil, errors.New("DATABASE_DSN is required outside DEV")
	}
	log.Warn().Msg("no DATABASE_DSN set, using in-memory account store")
	return repofake.NewFakeUserRepo(), nil
}

func mailSender(cfg config.Config) email.Sender {
	if cfg.GetSMTPAccount() == "" {
		log.Warn().Msg("no SMTP_ACCOUNT set, logging emails instead of sending")
		return email.NewLogSender()
	}
	return email.NewSMTPSender(cfg)
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

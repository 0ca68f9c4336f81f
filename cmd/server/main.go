package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/config"
	"github.com/hongminglow/lms-be/internal/logger"
	"github.com/hongminglow/lms-be/internal/mail"
	"github.com/hongminglow/lms-be/internal/server"
	postgres "github.com/hongminglow/lms-be/internal/storage/postgres"
	"github.com/hongminglow/lms-be/internal/users"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if envErr != nil {
		log.Debug().Msg("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	userStore, err := postgres.NewUserStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("init database")
	}
	defer userStore.Close()

	transport, closeTransport, err := newTransport(cfg.Mail, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init mail transport")
	}
	defer closeTransport()
	dispatcher := mail.NewDispatcher(transport, cfg.Mail.QueueSize, cfg.Mail.Workers, log)
	mailer := mail.NewMailer(dispatcher, cfg.FrontendBaseURL, cfg.VerificationTokenTTL, cfg.ResetTokenTTL)

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAlgorithm, auth.TokenTTLs{
		Access:       cfg.AccessTokenTTL,
		Verification: cfg.VerificationTokenTTL,
		Reset:        cfg.ResetTokenTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init token manager")
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	directory := users.NewDirectory(userStore, hasher)

	srv := server.New(cfg, server.Deps{
		Auth:      auth.NewService(directory, tokens, hasher, mailer, log),
		Gate:      auth.NewGate(tokens, directory),
		Directory: directory,
	}, log)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddress()).Str("mail_transport", transport.Name()).Msg("LMS backend listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := dispatcher.Close(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("mail queue not drained before shutdown")
	}
	log.Info().Msg("server stopped")
}

func newTransport(cfg config.MailConfig, log zerolog.Logger) (mail.Transport, func(), error) {
	switch cfg.Transport {
	case config.MailTransportSMTP:
		t, err := mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.Server,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
			FromName: cfg.FromName,
		})
		return t, func() {}, err
	case config.MailTransportAMQP:
		t, err := mail.NewAMQPTransport(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return t, func() { _ = t.Close() }, nil
	default:
		return mail.NewLogTransport(log), func() {}, nil
	}
}

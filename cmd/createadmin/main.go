// Command createadmin seeds an active, verified admin account.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/config"
	"github.com/hongminglow/lms-be/internal/logger"
	"github.com/hongminglow/lms-be/internal/models"
	postgres "github.com/hongminglow/lms-be/internal/storage/postgres"
	"github.com/hongminglow/lms-be/internal/users"
)

func main() {
	_ = godotenv.Load()

	email := flag.String("email", "", "admin email (required)")
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", "", "admin password (required)")
	fullName := flag.String("full-name", "", "optional display name")
	flag.Parse()

	log := logger.New(os.Getenv("LOG_LEVEL"), "console", os.Stderr)
	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadStore()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.NewUserStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("init database")
	}
	defer store.Close()

	in := users.NewUser{
		Email:      *email,
		Username:   *username,
		Password:   *password,
		Role:       models.RoleAdmin,
		IsActive:   true,
		IsVerified: true,
	}
	if *fullName != "" {
		in.FullName = fullName
	}

	dir := users.NewDirectory(store, auth.NewBcryptHasher(cfg.BcryptCost))
	u, err := dir.Create(ctx, in)
	if apperr.Is(err, apperr.KindConflict) {
		log.Warn().Str("email", *email).Msg("admin already exists; nothing to do")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("create admin")
	}
	log.Info().Str("user_id", u.ID.String()).Str("email", u.Email).Msg("admin created")
}

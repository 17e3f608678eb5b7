package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/multimail/multimail/pkg/config"
	"github.com/multimail/multimail/pkg/hook"
	"github.com/multimail/multimail/pkg/hook/bridge"
	"github.com/multimail/multimail/pkg/identity"
	"github.com/multimail/multimail/pkg/notification"
	"github.com/multimail/multimail/pkg/ratelimit"
	"github.com/multimail/multimail/pkg/secondarymail"
	"github.com/multimail/multimail/pkg/secondarymail/api"
)

type Config struct {
	DbConfig    config.DatabaseConfig
	EmailConfig config.EmailConfig
	MailConfig  config.MailConfig
	JwtConfig   config.JwtConfig
}

// loadEnvFile loads a .env file if one exists in the working directory.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Warn("Failed to load .env file", "err", err)
		} else {
			slog.Info("Loaded environment variables from .env file")
		}
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	rateLimitConfig := config.NewRateLimitConfigFromEnv()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	rateLimitMiddleware := ratelimit.NewMiddleware(rateLimitConfig.ToMiddlewareConfig())

	var (
		repoConfig secondarymail.RepositoryConfig
		resolver   identity.Resolver
		users      identity.UserStore
	)

	switch cfg.MailConfig.PersistenceType {
	case "postgres":
		pool, err := dbutils.NewDbPool(context.Background(), cfg.DbConfig.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database,
				"host", cfg.DbConfig.Host, "port", cfg.DbConfig.Port, "err", err)
			os.Exit(-1)
		}
		repoConfig.WritePool = pool

		if cfg.DbConfig.HasReplica() {
			readPool, err := dbutils.NewDbPool(context.Background(), cfg.DbConfig.ToReplicaDbConfig())
			if err != nil {
				slog.Error("Failed creating replica dbpool", "host", cfg.DbConfig.ReplicaHost, "err", err)
				os.Exit(-1)
			}
			repoConfig.ReadPool = readPool
		}

		identityRepo := identity.NewPostgresIdentityRepository(pool)
		resolver, users = identityRepo, identityRepo
	default:
		repoConfig.DataDir = cfg.MailConfig.DataDir

		// The file backend is for single-process setups without an
		// identity database; users live in memory.
		store := identity.NewInMemIdentityStore()
		resolver, users = store, store
	}

	repo, err := secondarymail.NewEmailRepository(cfg.MailConfig.PersistenceType, repoConfig)
	if err != nil {
		slog.Error("Failed creating email repository", "type", cfg.MailConfig.PersistenceType, "err", err)
		os.Exit(-1)
	}

	notificationManager, err := notification.NewManager(
		notification.WithSMTP(cfg.EmailConfig.ToSMTPConfig()),
		notification.WithSecondaryConfirmationTemplate(),
		notification.WithPrimaryChangedTemplate(),
	)
	if err != nil {
		slog.Error("Failed initializing notification manager", "err", err)
		os.Exit(-1)
	}

	hookRunner := hook.NewRunner()

	mailService := secondarymail.NewMailService(repo, resolver, users, notificationManager,
		secondarymail.WithEmailAuthentication(cfg.MailConfig.EmailAuthentication),
		secondarymail.WithTokenExpiry(cfg.MailConfig.TokenExpiry),
		secondarymail.WithBaseURL(cfg.MailConfig.BaseURL),
		secondarymail.WithRateLimiter(rateLimitConfig.NewActionLimiter()),
		secondarymail.WithHookRunner(hookRunner),
	)

	bridge.New(mailService).Register(hookRunner)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)
	handle := api.NewHandle(mailService, users)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		// After Verifier so the per-user limit can key on the JWT subject.
		r.Use(rateLimitMiddleware.Handler)
		r.Use(jwtauth.Authenticator(tokenAuth))
		api.Routes(r, handle)
	})

	slog.Info("Starting multimail",
		"persistence", cfg.MailConfig.PersistenceType,
		"email_authentication", cfg.MailConfig.EmailAuthentication,
		"token_expiry", cfg.MailConfig.TokenExpiry)

	server.Run()
}

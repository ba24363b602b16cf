package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-accounts/internal/config"
	delivery "github.com/FilipeAphrody/sentinel-accounts/internal/delivery/http"
	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/internal/mailer"
	"github.com/FilipeAphrody/sentinel-accounts/internal/repository"
	"github.com/FilipeAphrody/sentinel-accounts/internal/storage"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
	"github.com/FilipeAphrody/sentinel-accounts/pkg/security"
)

// stores bundles the persistence layer selected by STORE_DRIVER.
type stores struct {
	users    domain.UserRepository
	profiles domain.ProfileRepository
	activity domain.ActivityLog
	db       *sql.DB
}

func main() {
	ctx := context.Background()

	// 1. Load Configuration from Environment
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSON(os.Stderr, "error").Error(ctx, "invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.NewJSON(os.Stdout, cfg.LogLevel)
	if cfg.UsesDefaultSecret() {
		log.Warn(ctx, "JWT_SECRET is the development default; tokens are forgeable by anyone who has read the source")
	}

	// 2. Initialize Infrastructure (Persistence)
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise storage", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Sessions fail closed until Redis is reachable; /health reports it.
		log.Warn(ctx, "redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	var photos domain.PhotoStorage
	if cfg.S3.Bucket != "" {
		s3Photos, err := storage.NewS3PhotoStorage(ctx, cfg.S3)
		if err != nil {
			log.Warn(ctx, "photo storage disabled", "error", err)
		} else {
			photos = s3Photos
		}
	}

	// 3. Initialize Business Logic (Usecases)
	authUsecase := usecase.NewAuthUsecase(usecase.AuthDeps{
		Users:    st.users,
		Sessions: repository.NewRedisSessionRepo(rdb),
		Profiles: st.profiles,
		Activity: st.activity,
		Mailer:   mailer.New(cfg.Mail, log),
		Codec:    security.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Hasher:   security.NewPasswordHasher(cfg.Argon2),
		MFA:      security.NewMFAProvider(cfg.Auth.MFAIssuer),
		Logger:   log,
	}, cfg.Auth)

	profileUsecase := usecase.NewProfileUsecase(usecase.ProfileDeps{
		Profiles: st.profiles,
		Users:    st.users,
		Cache:    repository.NewRedisProfileCache(rdb, cfg.ProfileCacheTTL),
		Photos:   photos,
		Activity: st.activity,
		History:  st.activity,
		Logger:   log,
	})

	// 4. Register Delivery Handlers (Routes)
	checks := map[string]func(context.Context) error{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if st.db != nil {
		checks["postgres"] = st.db.PingContext
	}
	e := delivery.NewRouter(delivery.RouterDeps{
		Auth:     authUsecase,
		Profiles: profileUsecase,
		Logger:   log,
		Checks:   checks,
	})

	// 5. Start Server with Graceful Shutdown
	go func() {
		log.Info(ctx, "starting sentinel accounts server", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "shutting down the server due to error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", "error", err)
	}

	log.Info(ctx, "server exiting")
}

func openStores(ctx context.Context, cfg config.Config, log logging.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn(ctx, "using in-memory store; data is lost on restart")
		return stores{
			users:    repository.NewMemoryUserRepo(),
			profiles: repository.NewMemoryProfileRepo(),
			activity: repository.NewMemoryActivityRepo(),
		}, nil
	}

	db, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return stores{}, err
	}

	return stores{
		users:    repository.NewPostgresUserRepo(db),
		profiles: repository.NewPostgresProfileRepo(db),
		activity: repository.NewPostgresActivityRepo(db),
		db:       db,
	}, nil
}

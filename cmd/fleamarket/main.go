package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fleamarket/config"
	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/cache"
	"fleamarket/infrastructure/checkout"
	httpserver "fleamarket/infrastructure/http"
	"fleamarket/infrastructure/logger"
	"fleamarket/infrastructure/provision"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/shortcode"
	"fleamarket/infrastructure/sqlite"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.IsDevelopment(),
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	db, err := sqlite.OpenDB(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	// An empty MIGRATIONS_DIR applies the embedded migrations.
	if err := sqlite.ApplyMigrations(context.Background(), db, cfg.SQLite.MigrationsDir); err != nil {
		appLogger.Fatal("apply migrations", zap.Error(err))
	}

	svc := checkout.NewService(db, appLogger,
		checkout.WithShortCodes(shortcode.New(cfg.ShortCode.Length, cfg.ShortCode.Attempts)),
		checkout.WithProvisionLookup(provision.ConfigLookup{}),
	)

	rbacCache := cache.NewRbacRolesCache()
	env := &api.Env{
		DB:           db,
		Sessions:     cache.NewClerkSessionCache(),
		Counters:     cache.NewCounterCache(),
		Roles:        rbacCache,
		Checkout:     svc,
		Log:          appLogger,
		SessionTTL:   time.Duration(cfg.Session.TTLHours) * time.Hour,
		SecureCookie: cfg.Session.SecureCookie,
	}

	server := httpserver.NewServer(cfg.Server.Addr, env, rbac.New(rbacCache))
	if err := server.Start(); err != nil {
		appLogger.Fatal("start server", zap.Error(err))
	}
	appLogger.Info("fleamarket checkout listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("env", cfg.Server.AppEnv),
		zap.String("db", cfg.SQLite.Path))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := server.Stop(); err != nil {
		appLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wichananm65/user-directory-backend/internal/cache"
	"github.com/wichananm65/user-directory-backend/internal/config"
	"github.com/wichananm65/user-directory-backend/internal/database"
	"github.com/wichananm65/user-directory-backend/internal/logger"
	"github.com/wichananm65/user-directory-backend/internal/middleware"
	"github.com/wichananm65/user-directory-backend/internal/response"
	"github.com/wichananm65/user-directory-backend/internal/upload"
	"github.com/wichananm65/user-directory-backend/internal/user"
)

// multipart framing on top of the profile image itself
const bodyOverhead = 1 << 20

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis unavailable, serving without user cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			repo = user.NewCachedRepository(repo, rdb, cfg.CacheTTL, log)
			log.Info("user cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	files, err := upload.NewStore(upload.Options{
		Dir:          cfg.UploadDir,
		URLPrefix:    cfg.UploadURLPrefix,
		MaxBytes:     cfg.MaxUploadBytes,
		MaxDimension: cfg.ProfileMaxDimension,
	}, log)
	if err != nil {
		return err
	}

	userService := user.NewService(repo, files, user.ExportOptions{
		Location:   cfg.ExportLocation,
		DateLayout: cfg.ExportDateLayout,
	}, log)
	userHandler := user.NewHandler(userService)

	app := fiber.New(fiber.Config{
		AppName:               "user-directory",
		ErrorHandler:          response.ErrorHandler(log),
		BodyLimit:             int(cfg.MaxUploadBytes) + bodyOverhead,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})
	app.Use(recover.New())
	setupCORS(app, cfg.CORSAllowOrigins)
	app.Use(middleware.RequestLogger(log))

	// make uploaded profile images public
	app.Static(cfg.UploadURLPrefix, cfg.UploadDir)

	app.Get("/health", func(c *fiber.Ctx) error {
		return response.JSON(c, fiber.StatusOK, "OK", nil)
	})
	userHandler.RegisterRoutes(app.Group("/api"))

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	userService.Wait()
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (user.Repository, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory user store; records are lost on restart")
		return user.NewInMemoryRepository(nil), func() {}, nil
	}

	dialect, err := user.DialectFor(cfg.StoreDriver)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Warn("close database", zap.Error(err))
		}
	}

	repo := user.NewSQLRepository(db, dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	return repo, closeDB, nil
}

func setupCORS(app *fiber.App, origins string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
}

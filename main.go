package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/gastos-backend/database"
	"github.com/Ananth-NQI/gastos-backend/internal/config"
	"github.com/Ananth-NQI/gastos-backend/internal/events"
	"github.com/Ananth-NQI/gastos-backend/internal/handlers"
	"github.com/Ananth-NQI/gastos-backend/internal/jobs"
	"github.com/Ananth-NQI/gastos-backend/internal/routes"
	"github.com/Ananth-NQI/gastos-backend/internal/services"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	var publisher services.ExpensePublisher
	if cfg.AMQPURL != "" {
		p, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect event publisher: %w", err)
		}
		defer p.Close()
		publisher = p
		slog.Info("publishing expense events", "exchange", cfg.AMQPExchange)
	}

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	loc := cfg.Location()
	sessions := services.NewSessionManager(store, services.SystemClock{}, cfg.SessionTimeout)
	engine := services.NewDialogEngine(
		store,
		sessions,
		services.NewCatalogService(store, cfg.CatalogPageSize),
		services.NewExpenseService(store, publisher),
		services.NewQueryService(store, loc),
		services.DialogOptions{
			Location:     loc,
			HomeCurrency: cfg.HomeCurrency,
		},
	)

	app := fiber.New(fiber.Config{
		AppName: "Gastos Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg,
		handlers.NewWhatsAppHandler(engine, sender, cfg.VerifyToken),
		handlers.NewHealthHandler(version, cfg.Channel, store),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("gastos backend starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage", storageType(cfg),
			"channel", cfg.Channel,
			"timezone", loc.String(),
			"session_timeout", cfg.SessionTimeout)
		return app.Listen(":" + cfg.Port)
	})

	g.Go(func() error {
		return jobs.NewRetentionJob(store, cfg.RetentionDays).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("gracefully shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Warn("server shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.UseMemoryStore {
		slog.Warn("using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), nil
	}

	slog.Info("running database migrations")
	if err := database.RunMigrations(cfg.DatabaseDSN()); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewDatabaseStore(db), nil
}

func newSender(cfg *config.Config) (services.Sender, error) {
	switch cfg.Channel {
	case config.ChannelTwilio:
		return services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
	case config.ChannelMeta:
		return services.NewMetaSender(cfg.WhatsAppToken, cfg.PhoneNumberID, cfg.GraphAPIVersion)
	default:
		slog.Warn("CHANNEL=log, replies are written to the log only")
		return services.NewLogSender(), nil
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "gastos-backend")
}

func storageType(cfg *config.Config) string {
	if cfg.UseMemoryStore {
		return "memory"
	}
	return "postgres"
}

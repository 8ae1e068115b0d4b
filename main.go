package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"duka/internal/config"
	"duka/internal/handlers"
	"duka/internal/metrics"
	"duka/internal/middleware"
	"duka/internal/models"
	"duka/internal/repositories"
	"duka/internal/services"
	"duka/pkg/mpesa"
	"duka/pkg/rabbitmq"
)

func main() {
	log := newLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// --- Database ---
	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if err := migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// --- Payment gateway ---
	var tokens mpesa.TokenCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		tokens = mpesa.NewRedisTokenCache(rdb, "duka:mpesa:token")
	}
	gateway, err := mpesa.NewClient(mpesa.Config{
		BaseURL:         cfg.Mpesa.BaseURL,
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		ShortCode:       cfg.Mpesa.ShortCode,
		PassKey:         cfg.Mpesa.PassKey,
		CallbackURL:     cfg.Mpesa.CallbackURL,
		TransactionType: cfg.Mpesa.TransactionType,
		Timeout:         cfg.Mpesa.Timeout,
	}, tokens, log.With(zap.String("component", "mpesa")))
	if err != nil {
		log.Fatal("Failed to initialize M-Pesa client", zap.Error(err))
	}

	// --- Order events ---
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var events services.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL}, log.With(zap.String("component", "rabbitmq")))
		if err != nil {
			log.Fatal("Failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		events = mqClient

		notifier := rabbitmq.NotificationHandler(log.With(zap.String("component", "notifications")))
		if err := mqClient.ConsumeOrderEvents(ctx, notifier); err != nil {
			log.Error("Failed to start RabbitMQ consumer", zap.Error(err))
		}
	} else {
		log.Info("RABBITMQ_URL not set, order events disabled")
	}

	app := newApp(appDeps{
		cfg:     cfg,
		db:      db,
		gateway: gateway,
		events:  events,
		logger:  log,
	})

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting server", zap.String("port", cfg.App.Port))
		if err := app.Listen(cfg.App.Port); err != nil {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down server...")
	stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Error during Fiber shutdown", zap.Error(err))
	}
	log.Info("Server gracefully stopped")
}

type appDeps struct {
	cfg     *config.Config
	db      *gorm.DB
	gateway services.PaymentGateway
	events  services.EventPublisher
	logger  *zap.Logger
}

// newApp wires repositories, services and handlers into a Fiber app.
func newApp(d appDeps) *fiber.App {
	component := func(name string) *zap.Logger { return d.logger.With(zap.String("component", name)) }

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(d.db)
	userRepo := repositories.NewGORMUserRepository(d.db)
	orderRepo := repositories.NewGORMOrderRepository(d.db)
	attemptRepo := repositories.NewGORMPaymentAttemptRepository(d.db)

	// --- Services ---
	authService := services.NewAuthService(userRepo, services.AuthConfig{
		JWTSecret:     d.cfg.Auth.JWTSecret,
		TokenTTL:      d.cfg.Auth.TokenTTL,
		AdminEmail:    d.cfg.Auth.AdminEmail,
		AdminPassword: d.cfg.Auth.AdminPassword,
	}, component("auth"))
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(userRepo)
	orderService := services.NewOrderService(
		orderRepo,
		attemptRepo,
		d.gateway,
		cartService,
		d.events,
		services.PaymentSettings{SettleDelay: d.cfg.Mpesa.SettleDelay},
		component("orders"),
	)

	// --- Fiber App ---
	app := fiber.New(fiber.Config{AppName: "duka"})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(metrics.Middleware())

	userAuth := middleware.AuthRequired(authService, component("auth"))
	adminAuth := middleware.AdminRequired(authService, component("auth"))

	handlers.NewUserHandler(authService, component("users")).RegisterRoutes(app)
	handlers.NewProductHandler(productService, component("products")).RegisterRoutes(app, adminAuth)
	handlers.NewCartHandler(cartService, component("cart")).RegisterRoutes(app, userAuth)
	handlers.NewOrderHandler(orderService, component("orders")).RegisterRoutes(app, userAuth, adminAuth)

	app.Get("/metrics", metrics.Handler())
	app.Get("/health", func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		database := "up"
		if err := pingDatabase(c.UserContext(), d.db); err != nil {
			d.logger.Warn("Health check database ping failed", zap.Error(err))
			status, code, database = "unhealthy", fiber.StatusServiceUnavailable, "down"
		}
		events := "disabled"
		if d.events != nil {
			events = "enabled"
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
			"events":   events,
		})
	})

	return app
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return log
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{}, &models.User{}, &models.Order{}, &models.PaymentAttempt{})
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

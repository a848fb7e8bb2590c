package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"threadline/internal/cache"
	"threadline/internal/config"
	"threadline/internal/handlers"
	"threadline/internal/payments"
	"threadline/internal/repositories"
	"threadline/internal/services"
	"threadline/pkg/logger"
	"threadline/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	db, err := repositories.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		zl.Fatal("database unavailable", zap.Error(err))
	}
	if err := repositories.Migrate(db); err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}

	ctx := context.Background()
	gateway, err := buildGateway(cfg, zl)
	if err != nil {
		zl.Fatal("payment gateway misconfigured", zap.Error(err))
	}

	// Messaging is optional; without it events are dropped and notifications are not sent.
	var publisher services.Publisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Logger: zl})
		if err != nil {
			zl.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		zl.Warn("RABBITMQ_URL not set, order events and notifications are disabled")
	}

	app, authService := newApp(cfg, dependencies{
		DB:        db,
		RateCache: buildRateCache(ctx, cfg, zl),
		Gateway:   gateway,
		Publisher: publisher,
		Logger:    zl,
	})

	if cfg.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			zl.Fatal("failed to seed admin user", zap.Error(err))
		}
	}

	if mqClient != nil {
		if err := mqClient.ConsumeNotifications(notificationHandler(zl)); err != nil {
			zl.Error("failed to start notification consumer", zap.Error(err))
		}
		if err := mqClient.ConsumeOrderEvents(orderEventHandler(zl)); err != nil {
			zl.Error("failed to start order event consumer", zap.Error(err))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zl.Info("starting server", zap.String("port", cfg.AppPort))
		if err := app.Listen(cfg.AppPort); err != nil {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zl.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Error("error during fiber shutdown", zap.Error(err))
	}
	zl.Info("server gracefully stopped")
}

type dependencies struct {
	DB        *gorm.DB
	RateCache cache.RateCache
	Gateway   payments.Gateway
	Publisher services.Publisher
	Logger    *zap.Logger
}

// newApp wires repositories, services and handlers into a Fiber app.
func newApp(cfg *config.Config, deps dependencies) (*fiber.App, *services.AuthService) {
	zl := logger.OrNop(deps.Logger)

	userRepo := repositories.NewGORMUserRepository(deps.DB)
	catalogRepo := repositories.NewGORMCatalogRepository(deps.DB)
	cartRepo := repositories.NewGORMCartRepository(deps.DB)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB)
	returnRepo := repositories.NewGORMReturnRepository(deps.DB)
	settingRepo := repositories.NewGORMSettingRepository(deps.DB)

	shippingService := services.NewShippingService(settingRepo, deps.RateCache, cfg.ShippingCacheTTL, zl)
	cartService := services.NewCartService(cartRepo, catalogRepo, shippingService, zl)
	authService := services.NewAuthService(userRepo, cartService, cfg.JWTSecret, zl)
	checkoutService := services.NewCheckoutService(cartService, orderRepo, shippingService, deps.Gateway, deps.Publisher,
		services.CheckoutConfig{
			Currency:      cfg.Currency,
			PublicBaseURL: cfg.PublicBaseURL,
			StatusRetries: cfg.StatusRetries,
		}, zl)
	orderService := services.NewOrderService(orderRepo, deps.Publisher, services.OrderServiceConfig{
		StatusRetries:  cfg.StatusRetries,
		BulkDeleteMode: services.BulkDeleteMode(cfg.BulkDeleteMode),
	}, zl)
	paymentService := services.NewPaymentService(orderRepo, deps.Gateway, deps.Publisher, services.PaymentServiceConfig{
		StatusRetries:  cfg.StatusRetries,
		VerifyWebhooks: cfg.WebhookSecret == "",
	}, zl)
	returnService := services.NewReturnService(orderRepo, returnRepo, zl)
	reportService := services.NewReportService(orderRepo, services.ReturnExclusion(cfg.ReturnExclusion))

	app := fiber.New()
	app.Use(fiberlogger.New())
	app.Get("/health", healthCheck(deps.DB))

	apiV1 := app.Group("/api/v1")
	handlers.Router{
		Auth:     handlers.NewAuthHandler(authService, zl),
		Cart:     handlers.NewCartHandler(cartService, shippingService, zl),
		Checkout: handlers.NewCheckoutHandler(checkoutService, zl),
		Orders:   handlers.NewOrderHandler(orderService, zl),
		Payments: handlers.NewPaymentHandler(paymentService, cfg.WebhookSecret, zl),
		Returns:  handlers.NewReturnHandler(returnService, zl),
		Admin:    handlers.NewAdminHandler(shippingService, reportService, zl),
	}.Mount(apiV1, authService, zl)

	return app, authService
}

func healthCheck(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		database := "up"
		status := fiber.StatusOK
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			database = "down"
			status = fiber.StatusServiceUnavailable
		}
		health := "healthy"
		if status != fiber.StatusOK {
			health = "unhealthy"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   health,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
		})
	}
}

// buildGateway returns nil when the selected provider has no credentials, which limits checkout
// to cash on delivery.
func buildGateway(cfg *config.Config, zl *zap.Logger) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		if cfg.StripeAPIKey == "" {
			zl.Warn("STRIPE_API_KEY not set, online payment disabled")
			return nil, nil
		}
		gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{APIKey: cfg.StripeAPIKey})
		if err != nil {
			return nil, err
		}
		return gateway, nil
	default:
		if cfg.GatewayBaseURL == "" {
			zl.Warn("GATEWAY_BASE_URL not set, online payment disabled")
			return nil, nil
		}
		gateway, err := payments.NewHostedGateway(payments.HostedGatewayConfig{
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
		})
		if err != nil {
			return nil, err
		}
		return gateway, nil
	}
}

// buildRateCache uses Redis when REDIS_URL is set and reachable, else a per-process cache.
func buildRateCache(ctx context.Context, cfg *config.Config, zl *zap.Logger) cache.RateCache {
	if cfg.RedisURL == "" {
		return cache.NewMemoryRateCache()
	}
	client, err := cache.Dial(ctx, cfg.RedisURL)
	if err != nil {
		zl.Warn("redis unavailable, using in-process rate cache", zap.Error(err))
		return cache.NewMemoryRateCache()
	}
	return cache.NewRedisRateCache(client)
}

// notificationHandler is where email and SMS delivery plugs in. Malformed messages are acked and
// dropped so they do not loop through the queue.
func notificationHandler(zl *zap.Logger) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		var n services.Notification
		if err := json.Unmarshal(msg.Body, &n); err != nil {
			zl.Error("dropping malformed notification", zap.Error(err))
			return nil
		}
		zl.Info("notification handed to delivery provider",
			zap.String("channel", n.Channel),
			zap.String("template", n.Template),
			zap.String("order_number", n.OrderNumber))
		return nil
	}
}

// orderEventHandler writes the order lifecycle to the audit log. Malformed events are acked and
// dropped like notifications.
func orderEventHandler(zl *zap.Logger) func(amqp.Delivery) error {
	audit := zl.Named("audit")
	return func(msg amqp.Delivery) error {
		var event services.OrderEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			zl.Error("dropping malformed order event", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
			return nil
		}
		fields := []zap.Field{
			zap.String("routing_key", msg.RoutingKey),
			zap.String("order_number", event.OrderNumber),
			zap.String("status", string(event.Status)),
			zap.String("payment_status", string(event.PaymentStatus)),
			zap.String("source", event.Source),
			zap.Time("occurred_at", event.OccurredAt),
		}
		if event.PreviousStatus != "" {
			fields = append(fields, zap.String("previous_status", string(event.PreviousStatus)))
		}
		audit.Info("order event", fields...)
		return nil
	}
}

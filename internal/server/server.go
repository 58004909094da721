package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/mansoorceksport/smmpanel/internal/config"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/handler"
	"github.com/mansoorceksport/smmpanel/internal/middleware"
	"github.com/mansoorceksport/smmpanel/internal/repository"
	"github.com/mansoorceksport/smmpanel/internal/service"
	"github.com/mansoorceksport/smmpanel/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	Logger      *zap.Logger
	// Gateway overrides the gateway selected from config (tests)
	Gateway service.PaymentGateway
	// Archive overrides the S3 payload archive selected from config
	Archive domain.PayloadArchive
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Initialize repositories
	txManager := repository.NewMongoTxManager(deps.MongoDB.Client())
	userRepo := repository.NewMongoUserRepository(deps.MongoDB)
	refreshTokenRepo := repository.NewMongoRefreshTokenRepository(deps.MongoDB)
	orderRepo := repository.NewMongoOrderRepository(deps.MongoDB)
	paymentRepo := repository.NewMongoPaymentRepository(deps.MongoDB)
	eventRepo := repository.NewMongoWebhookEventRepository(deps.MongoDB)
	statsRepo := repository.NewMongoStatsRepository(deps.MongoDB)
	cacheRepo := repository.NewRedisCacheRepository(deps.RedisClient)
	serviceRepo := repository.NewCachedServiceRepository(
		repository.NewMongoServiceRepository(deps.MongoDB),
		cacheRepo,
		cfg.Server.CatalogTTL,
	)

	gateway := deps.Gateway
	if gateway == nil {
		gateway = service.NewPaymentGateway(cfg.Chargily, cfg.App, logger)
	}

	archive := deps.Archive
	if archive == nil && cfg.S3.Bucket != "" {
		s3Archive, err := repository.NewS3PayloadArchive(context.Background(), cfg.S3)
		if err != nil {
			logger.Warn("webhook payload archive disabled", zap.Error(err))
		} else {
			archive = s3Archive
		}
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Warn("business metrics disabled", zap.Error(err))
	}

	// Initialize services
	ledgerService := service.NewLedgerService(userRepo, logger)
	catalogService := service.NewCatalogService(serviceRepo, logger)
	tokenService := service.NewTokenService(cfg.JWT, refreshTokenRepo, userRepo)
	authService := service.NewAuthService(userRepo, tokenService, logger)
	userService := service.NewUserService(userRepo, ledgerService, tokenService, logger)
	orderService := service.NewOrderService(txManager, orderRepo, paymentRepo, ledgerService, catalogService, metrics, logger)
	paymentService := service.NewPaymentService(
		txManager, paymentRepo, orderRepo, userRepo, eventRepo, ledgerService, gateway,
		service.PaymentURLs{FrontendURL: cfg.App.FrontendURL, BackendURL: cfg.App.BackendURL},
		metrics, logger,
	)
	if archive != nil {
		paymentService.WithArchive(archive)
	}
	dashboardService := service.NewDashboardService(statsRepo, cfg.App.Env)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	orderHandler := handler.NewOrderHandler(orderService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	webhookHandler := handler.NewWebhookHandler(paymentService)
	adminHandler := handler.NewAdminHandler(dashboardService, paymentService)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SMM Panel API",
		BodyLimit:    cfg.Server.BodyLimitKB * 1024,
		ErrorHandler: handler.ErrorHandler(logger, cfg.App.IsDevelopment()),
	})
	app.Hooks().OnShutdown(func() error {
		paymentService.Close()
		return nil
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(recover.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Idempotency-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "smm-panel-api",
		})
	})

	authed := middleware.Authenticate(authService)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)
	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL)

	api := app.Group("/api")

	// Auth endpoints
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", authed, authHandler.Me)

	// Users
	users := api.Group("/users")
	users.Get("/profile", authed, userHandler.GetProfile)
	users.Put("/profile", authed, userHandler.UpdateProfile)
	users.Get("/balance", authed, userHandler.GetBalance)
	users.Put("/password", authed, userHandler.ChangePassword)
	users.Get("/admin/all", authed, adminOnly, userHandler.ListUsers)
	users.Put("/:id/status", authed, adminOnly, userHandler.SetStatus)

	// Catalog: public read, admin write
	services := api.Group("/services")
	services.Get("/", catalogHandler.List)
	services.Get("/platforms", catalogHandler.Platforms)
	services.Get("/:id", catalogHandler.Get)
	services.Post("/", authed, adminOnly, catalogHandler.Create)
	services.Put("/:id", authed, adminOnly, catalogHandler.Update)
	services.Delete("/:id", authed, adminOnly, catalogHandler.Deactivate)

	// Orders
	orders := api.Group("/orders")
	orders.Post("/", authed, idempotent, orderHandler.Place)
	orders.Get("/", authed, orderHandler.List)
	orders.Get("/stats/dashboard", authed, orderHandler.Stats)
	orders.Get("/admin/all", authed, adminOnly, orderHandler.ListAll)
	orders.Put("/:id/status", authed, adminOnly, orderHandler.UpdateStatus)
	orders.Get("/:id", authed, orderHandler.Get)

	// Payments. The webhook is public: the signature is its only authentication.
	payments := api.Group("/payments")
	payments.Post("/webhook", webhookHandler.Chargily)
	payments.Post("/create", authed, idempotent, paymentHandler.Create)
	payments.Post("/add-funds", authed, idempotent, paymentHandler.AddFunds)
	payments.Get("/history", authed, paymentHandler.History)
	payments.Post("/:id/sync", authed, paymentHandler.Sync)
	payments.Get("/:id", authed, paymentHandler.Get)

	// Admin
	admin := api.Group("/admin", authed, adminOnly)
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/analytics", adminHandler.Analytics)
	admin.Get("/system/info", adminHandler.SystemInfo)
	admin.Get("/gateway/balance", adminHandler.GatewayBalance)
	admin.Post("/services/seed", catalogHandler.Seed)

	return app
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"marketing-backend/internal/ai"
	"marketing-backend/internal/config"
	"marketing-backend/internal/database"
	"marketing-backend/internal/event"
	"marketing-backend/internal/handler"
	"marketing-backend/internal/mail"
	"marketing-backend/internal/metrics"
	"marketing-backend/internal/middleware"
	"marketing-backend/internal/outbound"
	"marketing-backend/internal/repository"
	"marketing-backend/internal/router"
	"marketing-backend/internal/service"
	"marketing-backend/internal/websocket"
)

type App struct {
	cfg          *config.Config
	server       *http.Server
	hub          *websocket.Hub
	delivery     *service.Delivery
	cleanupFuncs []func()
}

type stores struct {
	principals  service.PrincipalStore
	documents   service.DocumentStore
	subscribers service.SubscriberStore
	analytics   service.AnalyticsStore
	ping        func(ctx context.Context) error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	st, err := a.openStores(ctx)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	window, err := a.openRateWindow(ctx)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	m := metrics.New()
	policy := cfg.OutboundPolicy()
	executor := outbound.NewExecutor(window, policy, outbound.WithObserver(m), outbound.WithLogger(slog.Default().With("component", "outbound")))
	transport := outbound.NewHTTPTransport(&http.Client{})

	aiClient := ai.NewClient(ai.Config{
		BaseURL:     cfg.AIAPIURL,
		APIKey:      cfg.AIAPIKey,
		Model:       cfg.AIModel,
		Temperature: 0.7,
	}, transport, executor)
	if !aiClient.Configured() {
		slog.Warn("AI_API_KEY not set, content generation will answer 503")
	}
	generator := ai.NewGenerator(aiClient, cfg.SiteName)

	renderer, err := mail.NewRenderer(cfg.SiteName, cfg.SiteURL)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}
	mailClient := mail.NewClient(mail.Config{
		BaseURL: cfg.EmailAPIURL,
		APIKey:  cfg.EmailAPIKey,
		From:    cfg.EmailFrom,
	}, transport, executor)
	if cfg.EmailAPIKey == "" {
		slog.Warn("EMAIL_API_KEY not set, outgoing email is disabled")
	}
	mailer := mail.NewMailer(mailClient, renderer, cfg.EmailAdminTo, cfg.SiteName)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	a.hub = hub

	authService := service.NewAuthService(st.principals, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	authService.SetFailureObserver(m)
	authService.SetEventBus(bus)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := authService.EnsureDefaultAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to seed admin: %w", err)
		}
		if created {
			slog.Info("default admin created", "email", cfg.AdminEmail)
		}
	}

	// Best-effort email runs detached from the request; the request waits at
	// most EmailReplyWait for the outcome it reports as email_sent.
	a.delivery = service.NewDelivery(policy.WorstCaseLatency(), cfg.EmailReplyWait)

	contentService := service.NewContentService(st.documents, bus)
	contactService := service.NewContactService(st.documents, mailer, bus)
	contactService.SetDelivery(a.delivery)
	newsletterService := service.NewNewsletterService(st.subscribers, mailer, bus)
	newsletterService.SetDelivery(a.delivery)
	analyticsService := service.NewAnalyticsService(st.analytics)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	wsHandler := websocket.NewHandler(hub, cfg.CORSOrigins, func(r *http.Request) (string, bool) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			return "", false
		}
		return claims.PrincipalID, true
	})

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		User:       handler.NewUserHandler(authService),
		Content:    handler.NewContentHandler(contentService),
		Contact:    handler.NewContactHandler(contactService),
		Newsletter: handler.NewNewsletterHandler(newsletterService),
		Analytics:  handler.NewAnalyticsHandler(analyticsService),
		AI:         handler.NewAIHandler(generator, bus),
		Health:     handler.NewHealthHandler(st.ping),
		Websocket:  wsHandler,
	}, m)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory stores; data is lost on restart")
		return stores{
			principals:  repository.NewMemoryPrincipalStore(),
			documents:   repository.NewMemoryDocumentStore(),
			subscribers: repository.NewMemorySubscriberStore(),
			analytics:   repository.NewMemoryAnalyticsStore(),
		}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready")

	return stores{
		principals:  repository.NewPrincipalRepository(db.Pool),
		documents:   repository.NewDocumentRepository(db.Pool),
		subscribers: repository.NewSubscriberRepository(db.Pool),
		analytics:   repository.NewAnalyticsRepository(db.Pool),
		ping:        db.Health,
	}, nil
}

func (a *App) openRateWindow(ctx context.Context) (outbound.RateWindow, error) {
	limits := map[string]outbound.Limit{
		ai.Target:   {Calls: a.cfg.AIRateLimit, Window: a.cfg.AIRateWindow},
		mail.Target: {Calls: a.cfg.EmailRateLimit, Window: a.cfg.EmailRateWindow},
	}
	fallback := limits[ai.Target]

	if a.cfg.RateWindowBackend != config.WindowBackendRedis {
		return outbound.NewSlidingWindow(fallback, limits), nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	slog.Info("outbound rate window shared through redis")

	return outbound.NewRedisWindow(client, "", fallback, limits), nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if err := a.delivery.Wait(shutdownCtx); err != nil {
		slog.Warn("pending email deliveries abandoned at shutdown", "error", err)
	}

	hubCancel()
	<-hubDone
	a.cleanup()

	if runErr == nil {
		slog.Info("server stopped")
	}
	return runErr
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

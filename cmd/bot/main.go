package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-bot/internal/api/http"
	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/bot"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/telegram"
	"github.com/spec-kit/support-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	identityRepo := repository.NewIdentityRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)

	store := session.NewRedisStore(redis.Client)
	roster := domain.NewAdminRoster(map[domain.Category][]int64{
		domain.CategoryIT:  cfg.Admins.ITAdmins,
		domain.CategoryAHO: cfg.Admins.AHOAdmins,
	})
	catalog := domain.NewOrgCatalog(buildOrgs(cfg.Orgs))

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	gateway := telegram.NewClient(cfg.Telegram, logger)

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		RequestRepo:  requestRepo,
		IdentityRepo: identityRepo,
		Roster:       roster,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	dialogueService := service.NewDialogueService(service.DialogueDependencies{
		RequestRepo: requestRepo,
		Store:       store,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	registrationService := service.NewRegistrationService(service.RegistrationDependencies{
		IdentityRepo: identityRepo,
		Store:        store,
		Catalog:      catalog,
		Roster:       roster,
		Logger:       logger,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		IdentityRepo: identityRepo,
		Store:        store,
		Lifecycle:    lifecycleService,
		Logger:       logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Gateway:     gateway,
		RequestRepo: requestRepo,
		Roster:      roster,
		Metrics:     metrics,
		Logger:      logger,
	})
	worker.StartNotificationWorker(notificationService, dispatcher)

	router := bot.NewRouter(bot.RouterDependencies{
		Store:        store,
		IdentityRepo: identityRepo,
		Lifecycle:    lifecycleService,
		Dialogue:     dialogueService,
		Registration: registrationService,
		Intake:       intakeService,
		Gateway:      gateway,
		Roster:       roster,
		Metrics:      metrics,
		Logger:       logger,
	})

	if err := gateway.SetCommands(ctx, telegram.Commands()); err != nil {
		logger.Warn("failed to publish command menu", zap.Error(err))
	}
	announceStartup(ctx, gateway, roster, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics)
	webhookHandler := handlers.NewWebhookHandler(router, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        healthHandler,
		Webhook:       webhookHandler,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// announceStartup tells every admin the bot is back up. Best effort: an
// admin who blocked the bot must not prevent startup.
func announceStartup(ctx context.Context, gateway telegram.Gateway, roster *domain.AdminRoster, logger *zap.Logger) {
	for _, adminID := range roster.All() {
		if _, err := gateway.SendMessage(ctx, adminID, "The bot is operational", nil); err != nil {
			logger.Warn("startup announcement failed", zap.Int64("chat_id", adminID), zap.Error(err))
		}
	}
}

func buildOrgs(cfg config.OrgConfig) []domain.Organization {
	withOffice := make(map[string]bool, len(cfg.RequiringOffice))
	for _, name := range cfg.RequiringOffice {
		withOffice[name] = true
	}
	orgs := make([]domain.Organization, 0, len(cfg.Names))
	for _, name := range cfg.Names {
		orgs = append(orgs, domain.Organization{Name: name, RequiresOffice: withOffice[name]})
	}
	return orgs
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// Package app wires configuration, storage, the provider and the services
// shared by the server and the cronjob binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	httpapi "peer-rental-core/internal/api/http"
	"peer-rental-core/internal/config"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/repository"
	"peer-rental-core/internal/repository/memory"
	"peer-rental-core/internal/repository/postgres"
	"peer-rental-core/internal/security"
	"peer-rental-core/internal/service"
)

// Repositories is the storage backend selected by database.driver.
type Repositories struct {
	Users         repository.UserRepository
	Items         repository.ItemRepository
	Bookings      repository.BookingRepository
	Reports       repository.ConditionReportRepository
	Relations     repository.RelationRepository
	Events        repository.ProviderEventRepository
	Notifications repository.NotificationRepository
}

type App struct {
	Config      *config.Config
	Tokens      security.TokenManager
	Services    httpapi.Services
	Maintenance service.BookingMaintenance
	db          *sql.DB
}

// Policy converts the configured policy constants.
func Policy(cfg *config.Config) service.Policy {
	return service.Policy{
		DisputeGrace:  time.Duration(cfg.Policy.DisputeGraceHours) * time.Hour,
		RequestExpiry: time.Duration(cfg.Policy.RequestExpiryHours) * time.Hour,
		ProviderRetry: service.RetryPolicy{
			MaxAttempts: cfg.Policy.ProviderMaxAttempts,
			BaseDelay:   time.Duration(cfg.Policy.ProviderBaseDelayMS) * time.Millisecond,
		},
		ConflictRetry: service.RetryPolicy{
			MaxAttempts: cfg.Policy.ConflictMaxAttempts,
			BaseDelay:   time.Duration(cfg.Policy.ConflictBaseDelayMS) * time.Millisecond,
		},
	}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	repos, db, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var pp service.PaymentProvider
	if cfg.Provider.BaseURL == "" {
		logger.Warn("Provider base URL not set, using the in-process sandbox")
		pp = provider.NewSandbox()
	} else {
		logger.Info("Provider configuration", "base_url", cfg.Provider.BaseURL, "timeout_seconds", cfg.Provider.TimeoutSeconds)
		pp = provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, time.Duration(cfg.Provider.TimeoutSeconds)*time.Second)
	}

	var push service.PushSender
	if cfg.Firebase.Enabled {
		push, err = service.NewPushSender(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
	}
	email := service.NewEmailSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	notifier := service.NewNotifier(repos.Notifications, email, push)

	policy := Policy(cfg)
	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	gate := service.NewGatekeeper(repos.Users)
	engine := service.NewBookingEngine(service.BookingRepos{
		Bookings: repos.Bookings,
		Items:    repos.Items,
		Users:    repos.Users,
		Reports:  repos.Reports,
		Events:   repos.Events,
	}, gate, pp, notifier, policy)

	return &App{
		Config: cfg,
		Tokens: tokens,
		Services: httpapi.Services{
			Auth:           service.NewAuthService(repos.Users, tokens),
			Users:          service.NewUserService(repos.Users, policy),
			Verification:   service.NewVerificationService(repos.Users, repos.Events, pp, notifier, policy),
			PaymentMethods: service.NewPaymentMethodService(repos.Users, policy),
			Items:          service.NewItemService(repos.Items, repos.Users, gate),
			Bookings:       engine,
			Disputes:       engine,
			Relations:      service.NewRelationService(repos.Relations),
			Notifications:  service.NewNotificationService(repos.Notifications),
		},
		Maintenance: engine,
		db:          db,
	}, nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func openRepositories(ctx context.Context, cfg *config.Config) (Repositories, *sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return Repositories{
			Users:         store.Users(),
			Items:         store.Items(),
			Bookings:      store.Bookings(),
			Reports:       store.Reports(),
			Relations:     store.Relations(),
			Events:        store.ProviderEvents(),
			Notifications: store.Notifications(),
		}, nil, nil
	}

	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return Repositories{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return Repositories{}, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return Repositories{}, nil, err
		}
	}

	store := postgres.NewStore(db)
	return Repositories{
		Users:         store.UserRepository,
		Items:         store.ItemRepository,
		Bookings:      store.BookingRepository,
		Reports:       store.ConditionReportRepository,
		Relations:     store.RelationRepository,
		Events:        store.ProviderEventRepository,
		Notifications: store.NotificationRepository,
	}, db, nil
}

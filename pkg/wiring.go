package pkg

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/auth"
	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/config"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/mail"
	"github.com/yolymatics/tutoring-service/internal/repositories/casdoor"
	"github.com/yolymatics/tutoring-service/internal/repositories/postgres"
	"github.com/yolymatics/tutoring-service/internal/storage"
)

// NewRepositoryConfig maps the service configuration onto the repository layer.
func NewRepositoryConfig(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, cm *cache.CacheManager) postgres.RepositoryConfig {
	return postgres.RepositoryConfig{
		DB:               db,
		RedisClient:      redisClient,
		CacheManager:     cm,
		AuthProviderName: cfg.Auth.Provider,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
		Tokens: auth.NewTokenIssuer(
			cfg.Auth.JWTSecret,
			cfg.Auth.JWTIssuer,
			cfg.Auth.AccessTokenTTL,
			cfg.Auth.RefreshTokenTTL,
			cfg.Auth.ConfirmTokenTTL,
		),
		RequireEmailConfirmation: cfg.Auth.RequireEmailConfirmation,
	}
}

// NewEventBus returns the in-process bus, forwarding to Kafka when brokers are configured.
func NewEventBus(cfg *config.Config, logger *slog.Logger) (*events.Bus, error) {
	if !cfg.Kafka.Enabled() {
		return events.NewBus(logger), nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Forwarding domain events to Kafka", "brokers", cfg.Kafka.Brokers, "prefix", cfg.Kafka.TopicPrefix)
	return events.NewBus(logger, events.WithForwarder(publisher, cfg.Kafka.TopicPrefix)), nil
}

func NewMailer(cfg *config.Config, logger *slog.Logger) mail.Mailer {
	if cfg.SendGrid.APIKey == "" {
		logger.Warn("SendGrid not configured, emails will only be logged")
		return mail.NewLogMailer(logger)
	}
	return mail.NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.FromName, cfg.SendGrid.FromEmail, logger)
}

func NewStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	return storage.New(storage.Config{
		CloudinaryURL: cfg.Cloudinary.URL,
		Folder:        cfg.Cloudinary.Folder,
		LocalDir:      cfg.Upload.Dir,
		BaseURL:       cfg.Upload.BaseURL,
	}, logger)
}

package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Nordur12/SmartAquaria/common/database"
	"github.com/Nordur12/SmartAquaria/common/mqtt"
	rediscommon "github.com/Nordur12/SmartAquaria/common/redis"
	"github.com/Nordur12/SmartAquaria/internal/config"
	"github.com/Nordur12/SmartAquaria/internal/consumer"
	"github.com/Nordur12/SmartAquaria/internal/evaluator"
	"github.com/Nordur12/SmartAquaria/internal/httpapi"
	"github.com/Nordur12/SmartAquaria/internal/notifier"
	"github.com/Nordur12/SmartAquaria/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AlarmService wires the alert engine: source, evaluator, dispatcher, poll loop and trigger API
type AlarmService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	stateStore   consumer.StateStore
	evaluator    *evaluator.Evaluator
	pollConsumer *consumer.PollConsumer
	server       *httpapi.Server
}

// NewAlarmService connects the backing services and builds every layer
func NewAlarmService(cfg *config.Config, logger *zap.Logger) (*AlarmService, error) {
	if cfg.Source.DatabaseURL == "" {
		return nil, fmt.Errorf("FIREBASE_DATABASE_URL is required")
	}

	s := &AlarmService{
		config: cfg,
		logger: logger,
	}

	// 1. PostgreSQL (aquariums, users, notifications)
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	s.db = db

	// 2. Redis, only when a component needs it
	if cfg.Alarm.State.Backend == config.StateBackendRedis || cfg.Notifier.Kind == config.NotifierStream {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), s.redisClient); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	// 3. Repository layer
	aquariumRepo := repository.NewAquariumRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	notificationRepo := repository.NewNotificationRepository(db, logger)

	// 4. Notifier
	n, err := s.buildNotifier()
	if err != nil {
		s.Stop()
		return nil, err
	}
	dispatcher := NewAlertDispatcher(userRepo, n, notificationRepo, logger)

	// 5. State store
	if cfg.Alarm.State.Backend == config.StateBackendRedis {
		s.stateStore = consumer.NewRedisStateStore(cfg, s.redisClient, logger)
	} else {
		s.stateStore = consumer.NewMemoryStateStore()
	}

	// 6. Evaluator
	s.evaluator = evaluator.NewEvaluator(
		evaluator.DefaultRules(),
		s.stateStore,
		aquariumRepo,
		dispatcher,
		cfg.Alarm.DedupMode,
		logger,
	)

	// 7. Poll consumer
	source := consumer.NewFirebaseReadingSource(cfg.Source.DatabaseURL, cfg.Source.AuthToken, cfg.Source.Timeout, logger)
	s.pollConsumer = consumer.NewPollConsumer(cfg, source, s.evaluator, logger)

	// 8. Trigger API
	s.server = httpapi.New(cfg, s.evaluator, s.pollConsumer, s.stateStore, logger)

	return s, nil
}

func (s *AlarmService) buildNotifier() (notifier.Notifier, error) {
	cfg := s.config
	switch cfg.Notifier.Kind {
	case config.NotifierMQTT:
		client, err := mqtt.NewClient(&cfg.MQTT, s.logger)
		if err != nil {
			return nil, err
		}
		s.mqttClient = client
		return notifier.NewMQTTNotifier(client, cfg.Notifier.MQTTTopicPrefix, cfg.MQTT.QoS, s.logger), nil
	case config.NotifierStream:
		return notifier.NewStreamNotifier(s.redisClient, cfg.Notifier.StreamName, s.logger), nil
	default:
		return notifier.NewPushNotifier(cfg.Notifier.PushEndpoint, cfg.Notifier.PushServerKey, cfg.Notifier.PushTimeout, s.logger), nil
	}
}

// Start runs the poll loop and the HTTP server until ctx is done or one of them fails
func (s *AlarmService) Start(ctx context.Context) error {
	s.logger.Info("Starting alarm service",
		zap.String("state_backend", s.config.Alarm.State.Backend),
		zap.String("notifier", s.config.Notifier.Kind),
		zap.String("dedup_mode", s.config.Alarm.DedupMode),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := s.pollConsumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("poll consumer: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		if err := s.server.Run(ctx); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	// first exit stops the other
	err := <-errCh
	cancel()
	if second := <-errCh; err == nil {
		err = second
	}
	return err
}

// Stop releases connections
func (s *AlarmService) Stop() error {
	s.logger.Info("Stopping alarm service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	return nil
}

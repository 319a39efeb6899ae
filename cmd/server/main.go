package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"chatcore/internal/config"
	"chatcore/internal/domain"
	"chatcore/internal/events"
	"chatcore/internal/httpserver"
	"chatcore/internal/metrics"
	"chatcore/internal/profiledirectory"
	"chatcore/internal/rooms"
	"chatcore/internal/security"
	"chatcore/internal/service"
	"chatcore/internal/store/postgres"
	"chatcore/internal/store/sqlite"
	"chatcore/internal/ws"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	verifier := security.NewTokenVerifier(cfg.JWTSecret)
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		log.WithError(err).Fatal("failed to initialize encryptor")
	}

	profiles := profiledirectory.NewClient(cfg.ProfileDirectoryURL, log.WithField("component", "profile-directory"))

	publisher := buildPublisher(cfg, log)
	defer publisher.Close()
	broadcaster := buildBroadcaster(cfg, log)

	collector := metrics.NewCollector()

	registry := rooms.NewRegistry(broadcaster, collector)

	conversations := service.NewConversationService(store)
	messages := service.NewMessageService(store, encryptor, publisher, registry, log.WithField("component", "message-pipeline"))
	conversations.SetMessageService(messages)
	readCursor := service.NewReadCursorService(store)
	users := service.NewUserDirectoryService(store, profiles)

	if cfg.EnableRetentionSweep {
		sweeper := service.NewRetentionSweeper(store, cfg.RetentionSweepInterval, log.WithField("component", "retention"))
		go sweeper.Run(context.Background())
	}

	wsDeps := ws.Deps{
		Registry:      registry,
		Conversations: conversations,
		Messages:      messages,
		ReadCursor:    readCursor,
		Heartbeat:     time.Duration(cfg.SocketHeartbeatSeconds) * time.Second,
		Metrics:       collector,
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Store:         store,
		Verifier:      verifier,
		Conversations: conversations,
		Messages:      messages,
		ReadCursor:    readCursor,
		Users:         users,
		Profiles:      profiles,
		Metrics:       collector,
		WSDeps:        wsDeps,
		CORSOrigins:   cfg.CORSOrigins,
		WSOrigins:     cfg.CORSOrigins,
		Log:           log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr()).Info("starting chatcore server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

func openStore(cfg *config.Config, log *logrus.Logger) (domain.Store, func(), error) {
	if cfg.StoreDriver == "postgres" {
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("using postgres store")
		return postgres.NewStore(db), closeFn(db), nil
	}

	db, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("using sqlite store")
	return sqlite.NewStore(db), closeFn(db), nil
}

func closeFn(db *sql.DB) func() {
	return func() { db.Close() }
}

func buildPublisher(cfg *config.Config, log *logrus.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NoopPublisher{}
	}
	log.WithField("brokers", cfg.KafkaBrokers).Info("publishing domain events to kafka")
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func buildBroadcaster(cfg *config.Config, log *logrus.Logger) events.Broadcaster {
	if cfg.RedisAddr == "" {
		return events.NewLocalBroadcaster()
	}
	log.WithField("addr", cfg.RedisAddr).Info("broadcasting room frames through redis")
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return events.NewRedisBroadcaster(client, log.WithField("component", "redis-broadcaster"))
}

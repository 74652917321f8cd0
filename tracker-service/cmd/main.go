package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pricetrack/pkg/logger"
	"pricetrack/pkg/similarity"
	"pricetrack/tracker-service/internal/app/tracker/collector"
	"pricetrack/tracker-service/internal/app/tracker/config"
	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/handler"
	"pricetrack/tracker-service/internal/app/tracker/processor"
	"pricetrack/tracker-service/internal/app/tracker/repository"
	"pricetrack/tracker-service/internal/app/tracker/service"
	"pricetrack/tracker-service/internal/app/tracker/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("tracker-service", cfg.LogLevel)

	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	if err := db.AutoMigrate(
		&entity.Product{},
		&entity.PriceObservation{},
		&entity.EquivalenceGroup{},
		&entity.GroupMember{},
		&entity.Favorite{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	catalogRepo := repository.NewCatalogRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	var groupCache service.GroupCache
	if cfg.Redis.Enabled {
		redisClient, err := util.NewRedisClient(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		groupCache = redisClient
		logger.Info().Str("addr", cfg.Redis.Address()).Msg("connected to redis")
	}

	var publisher service.MessagePublisher
	if cfg.Kafka.Enabled {
		kafkaProducer := util.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaProducer.Close()
		publisher = kafkaProducer
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka producer initialized")
	}

	catalogService := service.NewCatalogService(catalogRepo, favoriteRepo)
	matcherService := service.NewMatcherService(
		groupRepo,
		catalogRepo,
		similarity.NewTokenSortScorer(),
		groupCache,
		cfg.Matching.Threshold,
	)
	ingestService := service.NewIngestService(
		buildCollectors(cfg.Sources),
		catalogService,
		matcherService,
		publisher,
		cfg.Kafka.Topic,
		cfg.Matching.AutoMatch,
	)

	scheduler := processor.NewCronScheduler(ingestService)
	if err := scheduler.Start(context.Background(), cfg.Ingestion.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to start cron scheduler")
	}
	defer scheduler.Stop()

	if cfg.Ingestion.RunOnStart {
		go func() {
			logger.Info().Msg("startup ingestion run triggered")
			if _, err := ingestService.Run(context.Background()); err != nil {
				logger.Error().Err(err).Msg("startup ingestion run failed")
			}
		}()
	}

	trackerHandler := handler.NewTrackerHandler(catalogService, matcherService, ingestService)
	router := handler.SetupRoutes(trackerHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting tracker service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down tracker service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("tracker service stopped")
}

// buildCollectors wires one collector per enabled source.
func buildCollectors(sources config.SourcesConfig) []collector.Collector {
	var collectors []collector.Collector

	if sources.Mercadona.Enabled {
		client := collector.NewClient(collector.ClientConfig{
			RequestsPerSecond: sources.Mercadona.RequestsPerSecond,
			Timeout:           sources.Mercadona.Timeout,
		})
		collectors = append(collectors, collector.NewMercadonaCollector(client, sources.Mercadona.BaseURL))
	}

	if sources.Dia.Enabled {
		client := collector.NewClient(collector.ClientConfig{
			RequestsPerSecond: sources.Dia.RequestsPerSecond,
			Timeout:           sources.Dia.Timeout,
			Cookie:            sources.Dia.SessionCookie,
		})
		collectors = append(collectors, collector.NewDiaCollector(client, sources.Dia.BaseURL, sources.Dia.PageSize))
	}

	return collectors
}

// connectDB opens the configured backend. Postgres gets retries for the
// docker-compose case where the database is still warming up.
func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err == nil {
			return db, nil
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("database not ready, retrying")
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

package main

import (
	"brokerage/internal/directory"
	"brokerage/internal/visits/events"
	"brokerage/internal/visits/handler"
	"brokerage/internal/visits/repository"
	"brokerage/internal/visits/service"
	"brokerage/internal/visits/validator"
	"brokerage/pkg/app"
	"brokerage/pkg/config"
	"brokerage/pkg/contracts"
	"brokerage/pkg/kafka"
	kafka_config "brokerage/pkg/kafka/config"
	kafka_middleware "brokerage/pkg/kafka/middleware"
	"context"
)

const ServiceName = "visits"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetPostgres()
	cfg.SetRedis()

	cfg.Log.Info("Starting Visits service")
	serverApp := app.NewApplication()

	publisher := initPublisher(cfg, serverApp)
	visitService, dir := initServices(cfg, publisher)

	health := handler.NewHealthHandler(map[string]contracts.Pinger{
		"mongo": contracts.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, nil)
		}),
		"postgres": dir,
	}, cfg.Log)

	serverApp.SetApp(cfg, handler.NewVisitHandler(visitService, cfg.Log), health)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) (service.VisitService, *directory.PostgresDirectory) {
	pgDirectory := directory.NewPostgresDirectory(cfg.Client.Postgres)

	var dir directory.Directory = pgDirectory
	if cfg.Client.Redis != nil {
		dir = directory.NewCachedDirectory(dir, cfg.Client.Redis, cfg.DirectoryCacheTTL, cfg.Log)
	}
	dir = directory.NewBreakerDirectory(dir, directory.BreakerConfig{
		Name:             "directory",
		FailureThreshold: uint32(cfg.BreakerFailureThreshold),
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}, cfg.Log)

	visitService := service.NewVisitService(
		repository.NewMongoVisitRepository(cfg),
		repository.NewVisitLockRepository(cfg),
		dir,
		dir,
		validator.NewVisitValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Visit service initialized", "database", cfg.MongoDatabaseName)
	return visitService, pgDirectory
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, visit events will not be published")
		return events.NopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaVisitsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	serverApp.OnShutdown(func() {
		snapshot := metrics.Snapshot()
		cfg.Log.Info("Kafka producer metrics", "published", snapshot.MessagesPublished, "failed", snapshot.MessagesPublishedFailed, "avg_duration", snapshot.AvgPublishDuration)
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	return events.NewKafkaPublisher(producer, cfg.Log)
}

package main

import (
	"context"

	"ShareGate/config"
	"ShareGate/internal/event"
	"ShareGate/internal/handler"
	"ShareGate/internal/limiter"
	"ShareGate/internal/mq"
	"ShareGate/internal/repo"
	"ShareGate/internal/scheduler"
	"ShareGate/internal/service"
	"ShareGate/internal/storage"
	"ShareGate/router"
)

// main initializes services and starts the HTTP server.
func main() {
	config.InitConfig()
	cfg := &config.AppConfig

	repo.InitMysql()
	repo.InitRedis()
	storage.InitMinio()

	sinks := event.Sinks{event.LogSink{}}
	if cfg.EventsAMQP {
		sinks = append(sinks, mq.EventSink{})
	}

	linkRepo := repo.NewLinkRepository(repo.Db)
	counters := limiter.NewRedisCounterStore(repo.Redis)
	signer := service.NewSigner(cfg.SignedKey, cfg.SignedTTL)

	builder := service.NewBuilder(cfg, linkRepo, sinks)
	lifecycle := service.NewLifecycle(linkRepo, sinks)
	pipeline := service.NewPipeline(cfg, linkRepo, counters, signer, lifecycle, sinks)
	delivery := handler.NewDelivery(cfg, storage.Default, nil, sinks)

	scheduler.StartPruneLoop(context.Background(), cfg, lifecycle)

	r := router.InitRouter(cfg, linkRepo, builder, pipeline, lifecycle, signer, delivery)
	r.Run(":8000")
}

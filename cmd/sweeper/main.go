package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/database"
	"github.com/flowlab/flowlab_go_server/internal/pkg/cron"
	"github.com/flowlab/flowlab_go_server/internal/pkg/pubsub"
	"github.com/flowlab/flowlab_go_server/internal/repository"
	"github.com/flowlab/flowlab_go_server/internal/service"
)

// 独立的定时扫描进程：周期性轮询所有未完结的分析任务
// 与 API 服务分开部署，互不影响
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	analysisRepo := repository.NewAnalysisRepository(db)
	serverRepo := repository.NewServerRepository(db)

	registry := backend.NewRegistry(serverRepo, cfg)
	publisher := pubsub.NewPublisher(rdb)
	statusService := service.NewStatusService(analysisRepo, registry, publisher, cfg)

	sweeper := cron.NewService(statusService, cfg.Sweep.IntervalSeconds)
	sweeper.Start()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweeper.Stop()
	log.Println("Sweeper exited")
}

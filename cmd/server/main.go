package main

import (
	"context"
	"fmt"
	"log"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/api"
	"github.com/flowlab/flowlab_go_server/internal/api/handler"
	"github.com/flowlab/flowlab_go_server/internal/backend"
	"github.com/flowlab/flowlab_go_server/internal/database"
	"github.com/flowlab/flowlab_go_server/internal/pkg/pubsub"
	"github.com/flowlab/flowlab_go_server/internal/pkg/ws"
	"github.com/flowlab/flowlab_go_server/internal/repository"
	"github.com/flowlab/flowlab_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	serverRepo := repository.NewServerRepository(db)

	// 初始化后端注册表与消息
	registry := backend.NewRegistry(serverRepo, cfg)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	statusService := service.NewStatusService(analysisRepo, registry, publisher, cfg)
	launchService := service.NewLaunchService(analysisRepo, moduleRepo, datasetRepo, registry, cfg)
	analysisService := service.NewAnalysisService(analysisRepo, statusService)
	resultService := service.NewResultService(analysisRepo, registry, cfg)

	// 状态消息桥接：Redis 订阅 -> 用户的 WebSocket 连接
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.StatusMessage) {
			wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			})
		})
		if err != nil && err != context.Canceled {
			log.Printf("Status subscriber stopped: %v", err)
		}
	}()

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	analysisHandler := handler.NewAnalysisHandler(analysisService, launchService)
	resultHandler := handler.NewResultHandler(resultService)
	callbackHandler := handler.NewCallbackHandler(statusService, cfg.Callback.Token)
	catalogHandler := handler.NewCatalogHandler(moduleRepo, serverRepo)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		analysisHandler,
		resultHandler,
		callbackHandler,
		catalogHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

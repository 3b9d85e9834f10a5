package api

import (
	"github.com/gin-gonic/gin"

	"github.com/flowlab/flowlab_go_server/config"
	"github.com/flowlab/flowlab_go_server/internal/api/handler"
	"github.com/flowlab/flowlab_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	analysisHandler  *handler.AnalysisHandler
	resultHandler    *handler.ResultHandler
	callbackHandler  *handler.CallbackHandler
	catalogHandler   *handler.CatalogHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	analysisHandler *handler.AnalysisHandler,
	resultHandler *handler.ResultHandler,
	callbackHandler *handler.CallbackHandler,
	catalogHandler *handler.CatalogHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		analysisHandler:  analysisHandler,
		resultHandler:    resultHandler,
		callbackHandler:  callbackHandler,
		catalogHandler:   catalogHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 公开接口 - 分析服务器回调（无用户身份，凭任务号匹配）
		api.GET("/callback/job-status", r.callbackHandler.JobStatus)
		api.POST("/callback/job-status", r.callbackHandler.JobStatus)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/auth/me", r.authHandler.Me)

			// 目录
			authenticated.GET("/modules", r.catalogHandler.ListModules)
			authenticated.GET("/modules/:id", r.catalogHandler.GetModule)
			authenticated.GET("/servers", r.catalogHandler.ListServers)

			// 分析
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Submit)
				analyses.GET("", r.analysisHandler.List)
				analyses.GET("/:id", r.analysisHandler.Get)
				analyses.DELETE("/:id", r.analysisHandler.Delete)
				analyses.GET("/:id/job-status", r.analysisHandler.JobStatus)

				// 结果产物
				analyses.GET("/:id/result", r.resultHandler.Render)
				analyses.GET("/:id/result/file", r.resultHandler.File)
				analyses.GET("/:id/result/stderr", r.resultHandler.Stderr)
				analyses.GET("/:id/result/zip", r.resultHandler.Zip)
			}
		}
	}

	return engine
}

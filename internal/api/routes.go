package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/hrflow-gin/internal/config"
	"github.com/mautops/hrflow-gin/internal/service"
	"gorm.io/gorm"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Draft    *DraftController
	Category *CategoryController
	Balance  *BalanceController
	Query    *QueryController
}

// NewControllers 从服务层构建控制器集合
func NewControllers(
	draftSvc service.DraftService,
	categorySvc service.CategoryService,
	balanceSvc service.BalanceService,
	querySvc service.QueryService,
) *Controllers {
	return &Controllers{
		Draft:    NewDraftController(draftSvc),
		Category: NewCategoryController(categorySvc),
		Balance:  NewBalanceController(balanceSvc),
		Query:    NewQueryController(querySvc),
	}
}

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, db *gorm.DB, ctrl *Controllers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(CORSMiddleware(cfg.CORS.AllowedOrigins))
	if cfg.Server.RateLimitRPS > 0 {
		router.Use(RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	}

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// API v1 路由组,全部走认证
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg.Auth.Secret))
	{
		// 单据类型管理路由
		categories := v1.Group("/categories")
		{
			categories.POST("", ctrl.Category.Create)
			categories.GET("", ctrl.Category.List)
			categories.GET("/:id", ctrl.Category.Get)
			categories.PUT("/:id", ctrl.Category.Update)
			categories.DELETE("/:id", ctrl.Category.Delete)
		}

		// 单据管理路由
		drafts := v1.Group("/drafts")
		{
			drafts.POST("", ctrl.Draft.Create)
			drafts.GET("", ctrl.Query.ListDrafts)
			drafts.GET("/:id", ctrl.Draft.Get)
			drafts.PUT("/:id", ctrl.Draft.Update)
			drafts.DELETE("/:id", ctrl.Draft.Delete)
			drafts.POST("/:id/submit", ctrl.Draft.Submit)
			drafts.POST("/:id/cancel", ctrl.Draft.Cancel)
			drafts.POST("/:id/approve", ctrl.Draft.Approve)
			drafts.POST("/:id/reject", ctrl.Draft.Reject)
			drafts.POST("/:id/return", ctrl.Draft.Return)
			drafts.POST("/:id/forward", ctrl.Draft.Forward)
			drafts.GET("/:id/history", ctrl.Query.GetHistory)
		}

		// 查询路由
		v1.GET("/inbox", ctrl.Query.Inbox)
		v1.GET("/outbox", ctrl.Query.Outbox)

		// 额度管理路由
		balances := v1.Group("/balances")
		{
			balances.PUT("", ctrl.Balance.SetAllocation)
			balances.POST("/unwind", ctrl.Balance.Unwind)
			balances.GET("/:subject", ctrl.Balance.Get)
			balances.GET("/:subject/history", ctrl.Balance.History)
		}
	}

	return router
}

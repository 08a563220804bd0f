package container

import (
	"fmt"
	"time"

	"github.com/mautops/hrflow-gin/internal/api"
	"github.com/mautops/hrflow-gin/internal/config"
	"github.com/mautops/hrflow-gin/internal/database"
	"github.com/mautops/hrflow-gin/internal/directory"
	"github.com/mautops/hrflow-gin/internal/metrics"
	"github.com/mautops/hrflow-gin/internal/notify"
	"github.com/mautops/hrflow-gin/internal/repository"
	"github.com/mautops/hrflow-gin/internal/service"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库、核心工作流组件与服务层
type Container struct {
	db          *gorm.DB
	dir         workflow.Directory
	perms       *workflow.PermissionResolver
	manager     *workflow.DraftManager
	auditLogSvc service.AuditLogService
	draftSvc    service.DraftService
	categorySvc service.CategoryService
	balanceSvc  service.BalanceService
	querySvc    service.QueryService
	collector   *metrics.Collector
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := NewContainerWithDB(cfg, db)

	// 生产运行时才启动周期性指标采样
	c.collector = metrics.NewCollector(db, 30*time.Second)
	c.collector.Start()

	return c, nil
}

// NewContainerWithDB 用已有数据库连接构建容器
// 测试使用 sqlite 内存库时走这条路径,不启动指标采样
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) *Container {
	dir := directory.New(db)
	perms := workflow.NewPermissionResolver(dir, cfg.Permission.AdminRoles, cfg.Permission.OrgMaxDepth)
	notifier := notify.NewLogNotifier(api.GetLogger())
	manager := workflow.NewDraftManager(db, dir, perms, notifier)

	auditLogSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	draftSvc := service.NewDraftService(manager, auditLogSvc)
	categorySvc := service.NewCategoryService(db, dir, perms, auditLogSvc)
	balanceSvc := service.NewBalanceService(db, dir, perms, auditLogSvc)
	querySvc := service.NewQueryService(db, dir, perms)

	return &Container{
		db:          db,
		dir:         dir,
		perms:       perms,
		manager:     manager,
		auditLogSvc: auditLogSvc,
		draftSvc:    draftSvc,
		categorySvc: categorySvc,
		balanceSvc:  balanceSvc,
		querySvc:    querySvc,
	}
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Directory 获取用户目录
func (c *Container) Directory() workflow.Directory {
	return c.dir
}

// DraftManager 获取单据生命周期管理器
func (c *Container) DraftManager() *workflow.DraftManager {
	return c.manager
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogSvc
}

// DraftService 获取单据服务
func (c *Container) DraftService() service.DraftService {
	return c.draftSvc
}

// CategoryService 获取单据类型服务
func (c *Container) CategoryService() service.CategoryService {
	return c.categorySvc
}

// BalanceService 获取额度服务
func (c *Container) BalanceService() service.BalanceService {
	return c.balanceSvc
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.querySvc
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}

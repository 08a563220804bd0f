package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/hrflow-gin/internal/config"
	"github.com/mautops/hrflow-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// GetProductionPoolConfig 获取生产环境连接池配置
func GetProductionPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    20,
		MaxOpenConns:    200,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 300,  // 5 分钟（生产环境缩短空闲时间）
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数，如果没有配置则使用默认值
	poolConfig := resolvePoolConfig(cfg, GetPoolConfig())

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectProduction 连接数据库（生产环境配置）
func ConnectProduction(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolConfig := resolvePoolConfig(cfg, GetProductionPoolConfig())

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// resolvePoolConfig 合并配置值与默认值
func resolvePoolConfig(cfg config.DatabaseConfig, defaults *PoolConfig) *PoolConfig {
	if cfg.MaxIdleConns <= 0 && cfg.MaxOpenConns <= 0 {
		return defaults
	}
	poolConfig := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if poolConfig.MaxIdleConns == 0 {
		poolConfig.MaxIdleConns = defaults.MaxIdleConns
	}
	if poolConfig.MaxOpenConns == 0 {
		poolConfig.MaxOpenConns = defaults.MaxOpenConns
	}
	if poolConfig.ConnMaxLifetime == 0 {
		poolConfig.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if poolConfig.ConnMaxIdleTime == 0 {
		poolConfig.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	return poolConfig
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb 与 decimal,需要手动创建表
	// GORM SQLite dialector 的名称可能是 "sqlite" 或 "sqlite3"
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.UserModel{},
			&model.OrgUnitModel{},
			&model.CategoryModel{},
			&model.DraftModel{},
			&model.StepModel{},
			&model.BalanceRecordModel{},
			&model.AllocationHistoryModel{},
			&model.StatusHistoryModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb,NUMERIC 替代 decimal）
func createSQLiteTables(db *gorm.DB) error {
	// 创建 users 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			role VARCHAR(64),
			org_unit_id VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// 创建 org_units 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS org_units (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			parent_id VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create org_units table: %w", err)
	}

	// 创建 categories 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			form_schema TEXT,
			route_template TEXT,
			resource_type VARCHAR(32),
			auto_approve_limit NUMERIC,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			created_by VARCHAR(64),
			updated_by VARCHAR(64)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create categories table: %w", err)
	}

	// 创建 drafts 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			category_id VARCHAR(64) NOT NULL,
			requester VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			form_data TEXT,
			custom_route TEXT,
			status VARCHAR(32) NOT NULL,
			resource_type VARCHAR(32),
			period VARCHAR(16),
			quantity NUMERIC NOT NULL DEFAULT 0,
			approved_quantity NUMERIC,
			start_date DATETIME,
			submitted_at DATETIME,
			decided_at DATETIME,
			comments TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create drafts table: %w", err)
	}

	// 创建 steps 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS steps (
			id VARCHAR(64) PRIMARY KEY,
			draft_id VARCHAR(64) NOT NULL,
			step_order INTEGER NOT NULL,
			kind VARCHAR(32) NOT NULL,
			required BOOLEAN NOT NULL DEFAULT 1,
			approver VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			instructions TEXT,
			comments TEXT,
			approval_data TEXT,
			processed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create steps table: %w", err)
	}

	// 创建 balance_records 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS balance_records (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			subject VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			period VARCHAR(16) NOT NULL,
			allocated NUMERIC NOT NULL DEFAULT 0,
			used NUMERIC NOT NULL DEFAULT 0,
			pending NUMERIC NOT NULL DEFAULT 0,
			available NUMERIC NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create balance_records table: %w", err)
	}

	// 创建 allocation_history 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS allocation_history (
			id VARCHAR(64) PRIMARY KEY,
			balance_id VARCHAR(64) NOT NULL,
			old_allocated NUMERIC NOT NULL,
			new_allocated NUMERIC NOT NULL,
			reason TEXT,
			actor VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create allocation_history table: %w", err)
	}

	// 创建 status_history 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS status_history (
			id VARCHAR(64) PRIMARY KEY,
			draft_id VARCHAR(64) NOT NULL,
			from_status VARCHAR(32),
			to_status VARCHAR(32) NOT NULL,
			reason TEXT,
			actor VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create status_history table: %w", err)
	}

	// 创建 audit_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			actor_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			entity_type VARCHAR(32) NOT NULL,
			entity_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			changes TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// categories 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_categories_tenant ON categories(tenant_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_categories_tenant: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_categories_active ON categories(active)").Error; err != nil {
		return fmt.Errorf("failed to create idx_categories_active: %w", err)
	}

	// drafts 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_tenant_status ON drafts(tenant_id, status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_tenant_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_requester ON drafts(requester)").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_requester: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_category_id ON drafts(category_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_category_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_drafts_created_at: %w", err)
	}

	// steps 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_steps_draft_order ON steps(draft_id, step_order)").Error; err != nil {
		return fmt.Errorf("failed to create idx_steps_draft_order: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_steps_approver_status ON steps(approver, status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_steps_approver_status: %w", err)
	}

	// balance_records 表索引
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_balance_key ON balance_records(subject, resource_type, period)").Error; err != nil {
		return fmt.Errorf("failed to create idx_balance_key: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_balance_tenant ON balance_records(tenant_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_balance_tenant: %w", err)
	}

	// allocation_history 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_allocation_balance_id ON allocation_history(balance_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_allocation_balance_id: %w", err)
	}

	// status_history 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_draft_id ON status_history(draft_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_draft_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_created_at ON status_history(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_created_at: %w", err)
	}

	// audit_logs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(entity_type, entity_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_entity: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_logs(actor_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_actor_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_created_at: %w", err)
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_drafts_form_data_gin ON drafts USING GIN (form_data)").Error; err != nil {
			return fmt.Errorf("failed to create idx_drafts_form_data_gin: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_categories_schema_gin ON categories USING GIN (form_schema)").Error; err != nil {
			return fmt.Errorf("failed to create idx_categories_schema_gin: %w", err)
		}
	}

	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return false
	}

	return true
}

// Reconnect 重新连接数据库
func Reconnect(cfg config.DatabaseConfig, oldDB *gorm.DB) (*gorm.DB, error) {
	// 关闭旧连接
	if oldDB != nil {
		if sqlDB, err := oldDB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	// 重新连接
	return Connect(cfg)
}

package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mautops/hrflow-gin/internal/database"
	"github.com/mautops/hrflow-gin/internal/directory"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/repository"
	"github.com/mautops/hrflow-gin/internal/service"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixture 服务层测试环境: 内存库 + 全套服务
type fixture struct {
	db       *gorm.DB
	manager  *workflow.DraftManager
	drafts   service.DraftService
	category service.CategoryService
	balance  service.BalanceService
	query    service.QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	dir := directory.New(db)
	perms := workflow.NewPermissionResolver(dir, []string{"hr_admin"}, 3)
	manager := workflow.NewDraftManager(db, dir, perms, nil)
	auditSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	return &fixture{
		db:       db,
		manager:  manager,
		drafts:   service.NewDraftService(manager, auditSvc),
		category: service.NewCategoryService(db, dir, perms, auditSvc),
		balance:  service.NewBalanceService(db, dir, perms, auditSvc),
		query:    service.NewQueryService(db, dir, perms),
	}
}

// as 模拟认证中间件写入的用户身份
func as(user string) context.Context {
	//nolint:staticcheck
	return context.WithValue(context.Background(), "user_id", user)
}

func (f *fixture) seedUser(t *testing.T, id, tenant, role string) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.UserModel{
		ID: id, TenantID: tenant, Name: id, Role: role,
	}).Error)
}

func (f *fixture) seedCategory(t *testing.T, id, tenant, resourceType string, template []model.StepSpec) {
	t.Helper()
	var raw []byte
	if len(template) > 0 {
		var err error
		raw, err = json.Marshal(template)
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Create(&model.CategoryModel{
		ID: id, TenantID: tenant, Name: id,
		RouteTemplate: raw, ResourceType: resourceType, Active: true,
	}).Error)
}

func (f *fixture) allocate(t *testing.T, tenant, subject, resourceType, period, qty string) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.manager.Ledger().Allocate(tx, tenant, subject, resourceType, period, dec(t, qty), "grant", "hr")
		return err
	})
	require.NoError(t, err)
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

// seedLeaveWorld 常用场景: alice 申请,bob/carol 两级审批,hr 管理员
func (f *fixture) seedLeaveWorld(t *testing.T) {
	t.Helper()
	f.seedUser(t, "alice", "t1", "employee")
	f.seedUser(t, "bob", "t1", "manager")
	f.seedUser(t, "carol", "t1", "manager")
	f.seedUser(t, "hr", "t1", "hr_admin")
	f.seedCategory(t, "annual-leave", "t1", "annual_leave", []model.StepSpec{
		{Kind: model.StepKindApproval, Approver: "bob"},
		{Kind: model.StepKindApproval, Approver: "carol"},
	})
	f.allocate(t, "t1", "alice", "annual_leave", "2026", "10")
}

package workflow_test

import (
	"encoding/json"
	"testing"

	"github.com/mautops/hrflow-gin/internal/database"
	"github.com/mautops/hrflow-gin/internal/directory"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 创建内存数据库并迁移
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// directoryFor 基于数据库的用户目录
func directoryFor(db *gorm.DB) workflow.Directory {
	return directory.New(db)
}

// newManager 构建带数据库目录与默认权限配置的管理器
func newManager(db *gorm.DB) *workflow.DraftManager {
	dir := directoryFor(db)
	perms := workflow.NewPermissionResolver(dir, []string{"hr_admin"}, 3)
	return workflow.NewDraftManager(db, dir, perms, nil)
}

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func seedUser(t *testing.T, db *gorm.DB, id, tenant, role, orgUnit string) *model.UserModel {
	t.Helper()
	u := &model.UserModel{
		ID:        id,
		TenantID:  tenant,
		Name:      id,
		Role:      role,
		OrgUnitID: orgUnit,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedOrgUnit(t *testing.T, db *gorm.DB, id, tenant, parent string) {
	t.Helper()
	require.NoError(t, db.Create(&model.OrgUnitModel{
		ID:       id,
		TenantID: tenant,
		Name:     id,
		ParentID: parent,
	}).Error)
}

func seedCategory(t *testing.T, db *gorm.DB, id, tenant, resourceType string, template []model.StepSpec) *model.CategoryModel {
	t.Helper()
	var raw []byte
	if len(template) > 0 {
		var err error
		raw, err = json.Marshal(template)
		require.NoError(t, err)
	}
	c := &model.CategoryModel{
		ID:            id,
		TenantID:      tenant,
		Name:          id,
		RouteTemplate: raw,
		ResourceType:  resourceType,
		Active:        true,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// allocate 为主体设置额度,走台账入口保证不变式
func allocate(t *testing.T, db *gorm.DB, m *workflow.DraftManager, tenant, subject, resourceType, period, qty string) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := m.Ledger().Allocate(tx, tenant, subject, resourceType, period, d(t, qty), "annual grant", "admin")
		return err
	})
	require.NoError(t, err)
}

func getBalance(t *testing.T, db *gorm.DB, m *workflow.DraftManager, tenant, subject, resourceType, period string) *model.BalanceRecordModel {
	t.Helper()
	rec, err := m.Ledger().Get(db, tenant, subject, resourceType, period)
	require.NoError(t, err)
	require.NoError(t, rec.CheckInvariant())
	return rec
}

func requireBalance(t *testing.T, rec *model.BalanceRecordModel, allocated, used, pending, available string) {
	t.Helper()
	require.True(t, rec.Allocated.Equal(d(t, allocated)), "allocated: got %s want %s", rec.Allocated, allocated)
	require.True(t, rec.Used.Equal(d(t, used)), "used: got %s want %s", rec.Used, used)
	require.True(t, rec.Pending.Equal(d(t, pending)), "pending: got %s want %s", rec.Pending, pending)
	require.True(t, rec.Available.Equal(d(t, available)), "available: got %s want %s", rec.Available, available)
}

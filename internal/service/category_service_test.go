package service_test

import (
	"testing"

	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/service"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryServiceCreate(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)

	category, err := f.category.Create(as("hr"), &service.CreateCategoryRequest{
		Name:         "Sick Leave",
		Description:  "paid sick leave",
		ResourceType: "sick_leave",
		RouteTemplate: []model.StepSpec{
			{Kind: model.StepKindApproval, Approver: "bob"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", category.TenantID)
	assert.True(t, category.Active)
	assert.Equal(t, "hr", category.CreatedBy)

	specs, err := category.Template()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "bob", specs[0].Approver)
}

func TestCategoryServiceAdminOnly(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)

	_, err := f.category.Create(as("alice"), &service.CreateCategoryRequest{Name: "Nope"})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))

	err = f.category.Delete(as("alice"), "annual-leave")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))
}

func TestCategoryServiceValidation(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)

	_, err := f.category.Create(as("hr"), &service.CreateCategoryRequest{
		Name: "Bad Route",
		RouteTemplate: []model.StepSpec{
			{Order: 2, Kind: model.StepKindApproval, Approver: "bob"},
			{Order: 1, Kind: model.StepKindApproval, Approver: "carol"},
		},
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}

func TestCategoryServiceUpdate(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)

	name := "Annual Leave v2"
	active := false
	category, err := f.category.Update(as("hr"), "annual-leave", &service.UpdateCategoryRequest{
		Name:   &name,
		Active: &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "Annual Leave v2", category.Name)
	assert.False(t, category.Active)
	assert.Equal(t, "hr", category.UpdatedBy)

	// 停用后不可再创建该类型的单据
	_, err = f.drafts.Create(as("alice"), &service.CreateDraftRequest{
		CategoryID: "annual-leave", Title: "x", Quantity: dec(t, "1"),
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}

func TestCategoryServiceDeleteGuard(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)

	// 有单据引用的类型不能删除
	_, err := f.drafts.Create(as("alice"), &service.CreateDraftRequest{
		CategoryID: "annual-leave", Title: "x", Quantity: dec(t, "1"), Period: "2026",
	})
	require.NoError(t, err)

	err = f.category.Delete(as("hr"), "annual-leave")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))

	// 无引用的类型可以删除
	created, err := f.category.Create(as("hr"), &service.CreateCategoryRequest{Name: "Temp"})
	require.NoError(t, err)
	require.NoError(t, f.category.Delete(as("hr"), created.ID))

	_, err = f.category.Get(as("hr"), created.ID)
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindNotFound))
}

func TestCategoryServiceTenantScope(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)
	f.seedUser(t, "mallory", "t2", "hr_admin")
	f.seedCategory(t, "t2-leave", "t2", "", nil)

	// 跨租户读取按不存在处理
	_, err := f.category.Get(as("mallory"), "annual-leave")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindNotFound))

	list, err := f.category.List(as("mallory"), false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t2-leave", list[0].ID)
}

func TestCategoryServiceListActiveOnly(t *testing.T) {
	f := newFixture(t)
	f.seedLeaveWorld(t)

	active := false
	_, err := f.category.Update(as("hr"), "annual-leave", &service.UpdateCategoryRequest{Active: &active})
	require.NoError(t, err)

	all, err := f.category.List(as("alice"), false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	activeList, err := f.category.List(as("alice"), true)
	require.NoError(t, err)
	assert.Empty(t, activeList)
}

package workflow_test

import (
	"testing"
	"time"

	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// leaveFixture 准备一个典型的年假审批环境:
// 申请人 alice,两级审批 bob -> carol,年假额度 10 天
type leaveFixture struct {
	db      *gorm.DB
	manager *workflow.DraftManager
}

func newLeaveFixture(t *testing.T) *leaveFixture {
	t.Helper()
	db := newTestDB(t)
	seedUser(t, db, "alice", "t1", "employee", "")
	seedUser(t, db, "bob", "t1", "manager", "")
	seedUser(t, db, "carol", "t1", "manager", "")
	seedUser(t, db, "admin", "t1", "hr_admin", "")
	seedCategory(t, db, "annual-leave", "t1", "annual_leave", []model.StepSpec{
		{Kind: model.StepKindApproval, Approver: "bob"},
		{Kind: model.StepKindApproval, Approver: "carol"},
	})
	m := newManager(db)
	allocate(t, db, m, "t1", "alice", "annual_leave", "2026", "10")
	return &leaveFixture{db: db, manager: m}
}

func (f *leaveFixture) createDraft(t *testing.T, qty string) *model.DraftModel {
	t.Helper()
	draft, err := f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave",
		Requester:  "alice",
		Title:      "annual leave request",
		Quantity:   d(t, qty),
		Period:     "2026",
	})
	require.NoError(t, err)
	return draft
}

func (f *leaveFixture) balance(t *testing.T) *model.BalanceRecordModel {
	t.Helper()
	return getBalance(t, f.db, f.manager, "t1", "alice", "annual_leave", "2026")
}

func approveAction() workflow.Action {
	return workflow.Action{Type: workflow.ActionApprove, Comment: "ok"}
}

func TestCreateDraftValidation(t *testing.T) {
	f := newLeaveFixture(t)

	_, err := f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave", Requester: "alice", Quantity: d(t, "1"),
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))

	_, err = f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave", Requester: "alice", Title: "x", Quantity: d(t, "-1"),
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))

	_, err = f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "missing", Requester: "alice", Title: "x", Quantity: d(t, "1"),
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindNotFound))

	_, err = f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave", Requester: "ghost", Title: "x", Quantity: d(t, "1"),
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindNotFound))
}

func TestCreateDraftInactiveCategory(t *testing.T) {
	f := newLeaveFixture(t)
	require.NoError(t, f.db.Model(&model.CategoryModel{}).Where("id = ?", "annual-leave").
		Update("active", false).Error)

	_, err := f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave", Requester: "alice", Title: "x", Quantity: d(t, "1"), Period: "2026",
	})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}

func TestCreateDraftDefaultPeriod(t *testing.T) {
	f := newLeaveFixture(t)
	start := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	draft, err := f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave", Requester: "alice", Title: "x",
		Quantity: d(t, "1"), StartDate: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, "2027", draft.Period)
}

func TestSubmitReservesBalance(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	out, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusPending, out.Status)
	require.NotNil(t, out.SubmittedAt)

	requireBalance(t, f.balance(t), "10", "0", "3", "7")

	steps, err := f.manager.Steps(draft.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "bob", steps[0].Approver)
	assert.Equal(t, "carol", steps[1].Approver)
}

func TestSubmitOnlyRequester(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	_, err := f.manager.Submit(draft.ID, "bob")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))
}

func TestSubmitTwiceConflicts(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Submit(draft.ID, "alice")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))

	// 重复提交不得重复冻结额度
	requireBalance(t, f.balance(t), "10", "0", "3", "7")
}

func TestSubmitInsufficientBalanceRollsBack(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "11")

	_, err := f.manager.Submit(draft.ID, "alice")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))

	// 事务回滚,单据仍是草稿,未产生步骤
	got, _, err := f.manager.Get(draft.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusDraft, got.Status)
	steps, err := f.manager.Steps(draft.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
	requireBalance(t, f.balance(t), "10", "0", "0", "10")
}

func TestSubmitZeroStepFastPath(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "alice", "t1", "employee", "")
	// 类型无路由模板,提交即通过
	seedCategory(t, db, "sick-leave", "t1", "sick_leave", nil)
	m := newManager(db)
	allocate(t, db, m, "t1", "alice", "sick_leave", "2026", "5")

	draft, err := m.Create(&workflow.CreateDraftInput{
		CategoryID: "sick-leave", Requester: "alice", Title: "sick leave",
		Quantity: d(t, "2"), Period: "2026",
	})
	require.NoError(t, err)

	out, err := m.Submit(draft.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, out.Status)
	require.NotNil(t, out.DecidedAt)
	require.True(t, out.ApprovedQuantity.Valid)
	assert.True(t, out.ApprovedQuantity.Decimal.Equal(d(t, "2")))

	rec := getBalance(t, db, m, "t1", "alice", "sick_leave", "2026")
	requireBalance(t, rec, "5", "2", "0", "3")
}

func TestSubmitAutoApproveThreshold(t *testing.T) {
	f := newLeaveFixture(t)
	require.NoError(t, f.db.Model(&model.CategoryModel{}).Where("id = ?", "annual-leave").
		Update("auto_approve_limit", decimal.NewFromInt(2)).Error)

	draft := f.createDraft(t, "2")
	out, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	// 数量不超过阈值,跳过整条路由
	assert.Equal(t, model.DraftStatusApproved, out.Status)
	requireBalance(t, f.balance(t), "10", "2", "0", "8")

	// 超过阈值仍走完整路由
	big := f.createDraft(t, "3")
	out, err = f.manager.Submit(big.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusPending, out.Status)
}

func TestSequentialApprovalFlow(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	// 第二级审批人不能越过第一级
	_, err = f.manager.Act(draft.ID, "carol", approveAction())
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))

	out, err := f.manager.Act(draft.ID, "bob", approveAction())
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusPending, out.Status)
	requireBalance(t, f.balance(t), "10", "0", "3", "7")

	out, err = f.manager.Act(draft.ID, "carol", approveAction())
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, out.Status)
	requireBalance(t, f.balance(t), "10", "3", "0", "7")

	steps, err := f.manager.Steps(draft.ID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.Equal(t, model.StepStatusApproved, s.Status)
		require.NotNil(t, s.ProcessedAt)
	}
}

func TestApproveWithPriorUsage(t *testing.T) {
	f := newLeaveFixture(t)
	// 年初已休 2 天
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.manager.Ledger().Reserve(tx, "t1", "alice", "annual_leave", "2026", d(t, "2")); err != nil {
			return err
		}
		return f.manager.Ledger().Finalize(tx, "t1", "alice", "annual_leave", "2026", d(t, "2"), d(t, "2"))
	})
	require.NoError(t, err)

	draft := f.createDraft(t, "3")
	_, err = f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	requireBalance(t, f.balance(t), "10", "2", "3", "5")

	_, err = f.manager.Act(draft.ID, "bob", approveAction())
	require.NoError(t, err)
	_, err = f.manager.Act(draft.ID, "carol", approveAction())
	require.NoError(t, err)
	requireBalance(t, f.balance(t), "10", "5", "0", "5")
}

func TestRejectReleasesBalance(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	out, err := f.manager.Act(draft.ID, "bob", workflow.Action{Type: workflow.ActionReject, Comment: "busy period"})
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusRejected, out.Status)
	requireBalance(t, f.balance(t), "10", "0", "0", "10")
}

func TestReturnReleasesBalance(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	out, err := f.manager.Act(draft.ID, "bob", workflow.Action{Type: workflow.ActionReturn, Comment: "missing handover plan"})
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusReturned, out.Status)
	requireBalance(t, f.balance(t), "10", "0", "0", "10")
}

func TestPartialApproval(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Act(draft.ID, "bob", approveAction())
	require.NoError(t, err)

	out, err := f.manager.Act(draft.ID, "carol", workflow.Action{
		Type:             workflow.ActionApprove,
		ApprovedQuantity: decimal.NullDecimal{Decimal: d(t, "2"), Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, out.Status)
	require.True(t, out.ApprovedQuantity.Valid)
	assert.True(t, out.ApprovedQuantity.Decimal.Equal(d(t, "2")))

	// 申请 3 天只批 2 天,1 天回到可用
	requireBalance(t, f.balance(t), "10", "2", "0", "8")
}

func TestDoubleApproveConflict(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Act(draft.ID, "bob", approveAction())
	require.NoError(t, err)
	_, err = f.manager.Act(draft.ID, "carol", approveAction())
	require.NoError(t, err)

	// 终态后任何动作都是冲突,台账不再变化
	_, err = f.manager.Act(draft.ID, "carol", approveAction())
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))
	requireBalance(t, f.balance(t), "10", "3", "0", "7")
}

func TestActOnDraftStatusConflict(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	_, err := f.manager.Act(draft.ID, "bob", approveAction())
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))
}

func TestActCrossTenantHidesDraft(t *testing.T) {
	f := newLeaveFixture(t)
	seedUser(t, f.db, "mallory", "t2", "hr_admin", "")
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Act(draft.ID, "mallory", approveAction())
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindNotFound))
}

func TestAdminCanActOnAnyStep(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Act(draft.ID, "admin", approveAction())
	require.NoError(t, err)
	out, err := f.manager.Act(draft.ID, "admin", approveAction())
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, out.Status)
}

func TestForwardReassignsStep(t *testing.T) {
	f := newLeaveFixture(t)
	seedUser(t, f.db, "dave", "t1", "manager", "")
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Act(draft.ID, "bob", workflow.Action{
		Type: workflow.ActionForward, Target: "dave", Instructions: "please review while I am away",
	})
	require.NoError(t, err)

	steps, err := f.manager.Steps(draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave", steps[0].Approver)
	assert.Equal(t, model.StepStatusPending, steps[0].Status)

	// 原审批人失去处理权,新审批人可以继续
	_, err = f.manager.Act(draft.ID, "bob", approveAction())
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))

	_, err = f.manager.Act(draft.ID, "dave", approveAction())
	require.NoError(t, err)
}

func TestForwardUnknownTarget(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, err = f.manager.Act(draft.ID, "bob", workflow.Action{Type: workflow.ActionForward, Target: "ghost"})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindValidation))
}

func TestCancelDraftStatus(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	out, err := f.manager.Cancel(draft.ID, "alice", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusCancelled, out.Status)
	// 草稿态未冻结额度,取消不动台账
	requireBalance(t, f.balance(t), "10", "0", "0", "10")
}

func TestCancelPendingReleasesBalance(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	requireBalance(t, f.balance(t), "10", "0", "3", "7")

	out, err := f.manager.Cancel(draft.ID, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusCancelled, out.Status)
	requireBalance(t, f.balance(t), "10", "0", "0", "10")
}

func TestCancelAfterStartDateConflicts(t *testing.T) {
	f := newLeaveFixture(t)
	past := time.Now().Add(-24 * time.Hour)
	draft, err := f.manager.Create(&workflow.CreateDraftInput{
		CategoryID: "annual-leave", Requester: "alice", Title: "x",
		Quantity: d(t, "1"), Period: "2026", StartDate: &past,
	})
	require.NoError(t, err)

	_, err = f.manager.Cancel(draft.ID, "alice", "")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))
}

func TestCancelTerminalConflicts(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	_, err = f.manager.Act(draft.ID, "bob", workflow.Action{Type: workflow.ActionReject, Comment: "no"})
	require.NoError(t, err)

	// 终态单调性: 已拒绝的单据不能取消
	_, err = f.manager.Cancel(draft.ID, "alice", "")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))

	// 重复取消同样冲突
	other := f.createDraft(t, "1")
	_, err = f.manager.Cancel(other.ID, "alice", "")
	require.NoError(t, err)
	_, err = f.manager.Cancel(other.ID, "alice", "")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))
}

func TestCancelOnlyRequester(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	_, err := f.manager.Cancel(draft.ID, "bob", "")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))
}

func TestUpdateDraft(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	title := "updated title"
	qty := d(t, "4")
	out, err := f.manager.Update(draft.ID, "alice", &workflow.DraftPatch{Title: &title, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "updated title", out.Title)
	assert.True(t, out.Quantity.Equal(d(t, "4")))
}

func TestUpdateRules(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	title := "x"
	_, err := f.manager.Update(draft.ID, "bob", &workflow.DraftPatch{Title: &title})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))

	_, err = f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	// 提交后不可再改
	_, err = f.manager.Update(draft.ID, "alice", &workflow.DraftPatch{Title: &title})
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))
}

func TestUpdateCustomRoute(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	route := []model.StepSpec{{Kind: model.StepKindApproval, Approver: "carol"}}
	out, err := f.manager.Update(draft.ID, "alice", &workflow.DraftPatch{Route: &route})
	require.NoError(t, err)
	specs, err := out.Route()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "carol", specs[0].Approver)

	// 提交走自定义路由而不是类型模板
	_, err = f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	steps, err := f.manager.Steps(draft.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "carol", steps[0].Approver)
}

func TestDeleteDraft(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	require.NoError(t, f.manager.Delete(draft.ID, "alice"))
	_, _, err := f.manager.Get(draft.ID, "alice")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindNotFound))
}

func TestDeleteRules(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")

	err := f.manager.Delete(draft.ID, "bob")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))

	_, err = f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	err = f.manager.Delete(draft.ID, "alice")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindConflict))
}

func TestGetAccessControl(t *testing.T) {
	f := newLeaveFixture(t)
	seedUser(t, f.db, "eve", "t1", "employee", "")
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)

	_, steps, err := f.manager.Get(draft.ID, "alice")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	_, _, err = f.manager.Get(draft.ID, "bob")
	require.NoError(t, err)

	_, _, err = f.manager.Get(draft.ID, "eve")
	require.Error(t, err)
	assert.True(t, workflow.IsKind(err, workflow.KindForbidden))
}

func TestStatusHistoryRecorded(t *testing.T) {
	f := newLeaveFixture(t)
	draft := f.createDraft(t, "3")
	_, err := f.manager.Submit(draft.ID, "alice")
	require.NoError(t, err)
	_, err = f.manager.Act(draft.ID, "bob", approveAction())
	require.NoError(t, err)
	_, err = f.manager.Act(draft.ID, "carol", approveAction())
	require.NoError(t, err)

	var history []*model.StatusHistoryModel
	require.NoError(t, f.db.Where("draft_id = ?", draft.ID).Order("created_at ASC").Find(&history).Error)
	require.Len(t, history, 2)
	assert.Equal(t, model.DraftStatusPending, history[0].ToStatus)
	assert.Equal(t, model.DraftStatusApproved, history[1].ToStatus)
}

func TestOptionalStepDoesNotBlockCompletion(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "alice", "t1", "employee", "")
	seedUser(t, db, "bob", "t1", "manager", "")
	seedUser(t, db, "carol", "t1", "manager", "")
	optional := false
	seedCategory(t, db, "trip", "t1", "", []model.StepSpec{
		{Kind: model.StepKindApproval, Approver: "bob"},
		{Kind: model.StepKindReference, Approver: "carol", Required: &optional},
	})
	m := newManager(db)

	draft, err := m.Create(&workflow.CreateDraftInput{
		CategoryID: "trip", Requester: "alice", Title: "business trip", Quantity: decimal.Zero,
	})
	require.NoError(t, err)
	_, err = m.Submit(draft.ID, "alice")
	require.NoError(t, err)

	// 唯一的必经步骤通过后整单完成,非必经知会步骤不阻塞
	out, err := m.Act(draft.ID, "bob", approveAction())
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusApproved, out.Status)
}

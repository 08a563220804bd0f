package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftManager 单据生命周期管理器
// 组合路由编译器、权限判定与额度台账,是外层唯一直接调用的核心组件
// 所有状态转换与对应的台账调整在同一个事务内完成
type DraftManager struct {
	db       *gorm.DB
	dir      Directory
	ledger   *Ledger
	routes   *RouteCompiler
	perms    *PermissionResolver
	notifier Notifier
}

// NewDraftManager 创建单据生命周期管理器
func NewDraftManager(db *gorm.DB, dir Directory, perms *PermissionResolver, notifier Notifier) *DraftManager {
	return &DraftManager{
		db:       db,
		dir:      dir,
		ledger:   NewLedger(),
		routes:   NewRouteCompiler(dir),
		perms:    perms,
		notifier: notifier,
	}
}

// Ledger 返回内部台账,供额度管理服务复用同一入口
func (m *DraftManager) Ledger() *Ledger {
	return m.ledger
}

// CreateDraftInput 创建单据的输入
type CreateDraftInput struct {
	CategoryID string
	Requester  string
	Title      string
	FormData   json.RawMessage
	Quantity   decimal.Decimal
	StartDate  *time.Time
	Period     string
	Route      []model.StepSpec // 自定义路由,为空时提交按类型模板编译
}

// DraftPatch 更新单据的补丁,nil 字段保持不变
type DraftPatch struct {
	Title     *string
	FormData  json.RawMessage
	Quantity  *decimal.Decimal
	StartDate *time.Time
	Period    *string
	Route     *[]model.StepSpec // 非 nil 时替换自定义路由,空切片表示回退到类型模板
}

// Create 创建草稿,此时不产生任何步骤
func (m *DraftManager) Create(in *CreateDraftInput) (*model.DraftModel, error) {
	requester, err := m.dir.ResolveUser(in.Requester)
	if err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, Validationf("title is required")
	}
	if in.Quantity.IsNegative() {
		return nil, Validationf("quantity must not be negative")
	}

	category, err := m.getCategory(m.db, in.CategoryID, requester.TenantID)
	if err != nil {
		return nil, err
	}
	if !category.Active {
		return nil, Validationf("category %q is not active", category.ID)
	}

	var customRoute []byte
	if len(in.Route) > 0 {
		if _, err := NormalizeSpecs(in.Route); err != nil {
			return nil, err
		}
		customRoute, err = json.Marshal(in.Route)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal custom route: %w", err)
		}
	}

	now := time.Now()
	draft := &model.DraftModel{
		ID:           uuid.New().String(),
		TenantID:     requester.TenantID,
		CategoryID:   category.ID,
		Requester:    requester.ID,
		Title:        in.Title,
		FormData:     []byte(in.FormData),
		CustomRoute:  customRoute,
		Status:       model.DraftStatusDraft,
		ResourceType: category.ResourceType,
		Period:       defaultPeriod(in.Period, in.StartDate),
		Quantity:     in.Quantity,
		StartDate:    in.StartDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.db.Create(draft).Error; err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return draft, nil
}

// Update 更新草稿,仅申请人可改,仅 draft 状态可改
// 替换路由会丢弃已编译的步骤
func (m *DraftManager) Update(draftID, actorID string, patch *DraftPatch) (*model.DraftModel, error) {
	draft, err := m.getDraft(m.db, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Requester != actorID {
		return nil, Forbiddenf("only the requester can update a draft")
	}
	if draft.Status != model.DraftStatusDraft {
		return nil, Conflictf("draft %q cannot be updated in status %q", draftID, string(draft.Status))
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, Validationf("title is required")
		}
		updates["title"] = *patch.Title
	}
	if patch.FormData != nil {
		updates["form_data"] = []byte(patch.FormData)
	}
	if patch.Quantity != nil {
		if patch.Quantity.IsNegative() {
			return nil, Validationf("quantity must not be negative")
		}
		updates["quantity"] = *patch.Quantity
	}
	if patch.StartDate != nil {
		updates["start_date"] = *patch.StartDate
	}
	if patch.Period != nil {
		updates["period"] = *patch.Period
	}
	if patch.Route != nil {
		if len(*patch.Route) == 0 {
			updates["custom_route"] = []byte(nil)
		} else {
			if _, err := NormalizeSpecs(*patch.Route); err != nil {
				return nil, err
			}
			raw, err := json.Marshal(*patch.Route)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal custom route: %w", err)
			}
			updates["custom_route"] = raw
		}
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if patch.Route != nil {
			if err := tx.Where("draft_id = ?", draftID).Delete(&model.StepModel{}).Error; err != nil {
				return fmt.Errorf("failed to discard steps: %w", err)
			}
		}
		return m.casStatus(tx, draftID, draft.Status, draft.Status, updates)
	})
	if err != nil {
		return nil, err
	}
	return m.getDraft(m.db, draftID)
}

// Submit 提交草稿进入审批
// 编译路由后要么零步骤直通 approved 并落账,要么转 pending 并冻结额度
func (m *DraftManager) Submit(draftID, actorID string) (*model.DraftModel, error) {
	var notifs []notification
	err := m.db.Transaction(func(tx *gorm.DB) error {
		draft, err := m.getDraftLocked(tx, draftID)
		if err != nil {
			return err
		}
		if draft.Requester != actorID {
			return Forbiddenf("only the requester can submit a draft")
		}
		if draft.Status != model.DraftStatusDraft {
			return Conflictf("draft %q cannot be submitted in status %q", draftID, string(draft.Status))
		}

		category, err := m.getCategory(tx, draft.CategoryID, draft.TenantID)
		if err != nil {
			return err
		}
		if !category.Active {
			return Validationf("category %q is not active", category.ID)
		}

		specs, err := draft.Route()
		if err != nil {
			return fmt.Errorf("failed to decode custom route: %w", err)
		}
		if len(specs) == 0 {
			if specs, err = category.Template(); err != nil {
				return fmt.Errorf("failed to decode route template: %w", err)
			}
		}

		// 自动通过阈值: 数量不超过阈值的单据跳过整条路由
		if category.AutoApproveLimit.Valid && draft.Quantity.LessThanOrEqual(category.AutoApproveLimit.Decimal) {
			specs = nil
		}

		if draft.TracksBalance() && !draft.Quantity.IsPositive() {
			return Validationf("quantity must be positive for balance-tracked categories")
		}

		steps, err := m.routes.Compile(tx, draft, specs)
		if err != nil {
			return err
		}

		now := time.Now()
		if len(steps) == 0 {
			// 零步骤直通: 提交即通过,冻结并立刻落账等价于全额 finalize
			if err := m.casStatus(tx, draftID, model.DraftStatusDraft, model.DraftStatusApproved, map[string]interface{}{
				"submitted_at":      now,
				"decided_at":        now,
				"approved_quantity": decimal.NullDecimal{Decimal: draft.Quantity, Valid: true},
			}); err != nil {
				return err
			}
			if draft.TracksBalance() {
				if err := m.ledger.Reserve(tx, draft.TenantID, draft.Requester, draft.ResourceType, draft.Period, draft.Quantity); err != nil {
					return err
				}
				if err := m.ledger.Finalize(tx, draft.TenantID, draft.Requester, draft.ResourceType, draft.Period, draft.Quantity, draft.Quantity); err != nil {
					return err
				}
			}
			if err := m.saveHistory(tx, draftID, model.DraftStatusDraft, model.DraftStatusApproved, "auto-approved: no approval steps", actorID); err != nil {
				return err
			}
			notifs = append(notifs, notification{recipient: draft.Requester, kind: NotifyDraftApproved, payload: map[string]interface{}{"draft_id": draftID}})
			return nil
		}

		if err := m.casStatus(tx, draftID, model.DraftStatusDraft, model.DraftStatusPending, map[string]interface{}{
			"submitted_at": now,
		}); err != nil {
			return err
		}
		if draft.TracksBalance() {
			if err := m.ledger.Reserve(tx, draft.TenantID, draft.Requester, draft.ResourceType, draft.Period, draft.Quantity); err != nil {
				return err
			}
		}
		if err := m.saveHistory(tx, draftID, model.DraftStatusDraft, model.DraftStatusPending, "submitted", actorID); err != nil {
			return err
		}
		notifs = append(notifs, notification{recipient: steps[0].Approver, kind: NotifyStepAssigned, payload: map[string]interface{}{
			"draft_id": draftID,
			"step_id":  steps[0].ID,
		}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.dispatch(notifs)
	return m.getDraft(m.db, draftID)
}

// Act 处理当前步骤,动作为封闭集合 {approve, reject, return, forward}
// 步骤状态通过条件更新保证幂等: 已处理步骤上的第二次动作返回 Conflict,不会重复产生台账效果
func (m *DraftManager) Act(draftID, actorID string, action Action) (*model.DraftModel, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	var notifs []notification
	err := m.db.Transaction(func(tx *gorm.DB) error {
		draft, err := m.getDraftLocked(tx, draftID)
		if err != nil {
			return err
		}

		actor, err := m.dir.ResolveUser(actorID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return Forbiddenf("actor %q cannot be resolved", actorID)
			}
			return err
		}
		if actor.TenantID != draft.TenantID {
			return NotFoundf("draft %q not found", draftID)
		}

		if draft.Status != model.DraftStatusPending {
			return Conflictf("draft %q is not awaiting approval", draftID)
		}

		steps, err := m.listSteps(tx, draftID)
		if err != nil {
			return err
		}
		current := currentStep(steps)
		if current == nil {
			return Conflictf("no pending step for draft %q", draftID)
		}
		if err := m.perms.CanAct(actorID, draft, current); err != nil {
			return err
		}

		switch action.Type {
		case ActionApprove:
			return m.approve(tx, draft, steps, current, actorID, action, &notifs)
		case ActionReject:
			return m.resolve(tx, draft, current, actorID, action, model.StepStatusRejected, model.DraftStatusRejected, NotifyDraftRejected, &notifs)
		case ActionReturn:
			return m.resolve(tx, draft, current, actorID, action, model.StepStatusReturned, model.DraftStatusReturned, NotifyDraftReturned, &notifs)
		case ActionForward:
			return m.forward(tx, draft, current, action, &notifs)
		}
		return Validationf("unknown action type %q", string(action.Type))
	})
	if err != nil {
		return nil, err
	}
	m.dispatch(notifs)
	return m.getDraft(m.db, draftID)
}

// approve 同意当前步骤,若之后不再有必经的待处理步骤则整单通过并落账
func (m *DraftManager) approve(tx *gorm.DB, draft *model.DraftModel, steps []*model.StepModel, current *model.StepModel, actorID string, action Action, notifs *[]notification) error {
	if err := m.casStep(tx, current.ID, model.StepStatusApproved, action); err != nil {
		return err
	}

	remaining := 0
	var next *model.StepModel
	for _, s := range steps {
		if s.ID == current.ID || s.Order <= current.Order || s.Status != model.StepStatusPending {
			continue
		}
		if next == nil || s.Order < next.Order {
			next = s
		}
		if s.Required {
			remaining++
		}
	}

	if remaining > 0 {
		*notifs = append(*notifs, notification{recipient: next.Approver, kind: NotifyStepAssigned, payload: map[string]interface{}{
			"draft_id": draft.ID,
			"step_id":  next.ID,
		}})
		return nil
	}

	requested := draft.Quantity
	approved := requested
	if action.ApprovedQuantity.Valid {
		approved = action.ApprovedQuantity.Decimal
	}
	now := time.Now()
	if err := m.casStatus(tx, draft.ID, model.DraftStatusPending, model.DraftStatusApproved, map[string]interface{}{
		"decided_at":        now,
		"approved_quantity": decimal.NullDecimal{Decimal: approved, Valid: true},
	}); err != nil {
		return err
	}
	if draft.TracksBalance() {
		if err := m.ledger.Finalize(tx, draft.TenantID, draft.Requester, draft.ResourceType, draft.Period, requested, approved); err != nil {
			return err
		}
	}
	if err := m.saveHistory(tx, draft.ID, model.DraftStatusPending, model.DraftStatusApproved, action.Comment, actorID); err != nil {
		return err
	}
	*notifs = append(*notifs, notification{recipient: draft.Requester, kind: NotifyDraftApproved, payload: map[string]interface{}{"draft_id": draft.ID}})
	return nil
}

// resolve 拒绝或退回当前步骤,整单随之终止并解冻额度
func (m *DraftManager) resolve(tx *gorm.DB, draft *model.DraftModel, current *model.StepModel, actorID string, action Action, stepStatus model.StepStatus, draftStatus model.DraftStatus, notifyKind string, notifs *[]notification) error {
	if err := m.casStep(tx, current.ID, stepStatus, action); err != nil {
		return err
	}
	if err := m.casStatus(tx, draft.ID, model.DraftStatusPending, draftStatus, map[string]interface{}{
		"decided_at": time.Now(),
	}); err != nil {
		return err
	}
	if draft.TracksBalance() {
		if err := m.ledger.Release(tx, draft.TenantID, draft.Requester, draft.ResourceType, draft.Period, draft.Quantity); err != nil {
			return err
		}
	}
	if err := m.saveHistory(tx, draft.ID, model.DraftStatusPending, draftStatus, action.Comment, actorID); err != nil {
		return err
	}
	*notifs = append(*notifs, notification{recipient: draft.Requester, kind: notifyKind, payload: map[string]interface{}{"draft_id": draft.ID}})
	return nil
}

// forward 把当前步骤转交给新审批人,步骤保持 pending,单据状态与台账不变
func (m *DraftManager) forward(tx *gorm.DB, draft *model.DraftModel, current *model.StepModel, action Action, notifs *[]notification) error {
	target, err := m.dir.ResolveUser(action.Target)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return Validationf("forward target %q cannot be resolved", action.Target)
		}
		return err
	}
	if target.TenantID != draft.TenantID {
		return Validationf("forward target %q cannot be resolved", action.Target)
	}

	updates := map[string]interface{}{
		"approver":   target.ID,
		"updated_at": time.Now(),
	}
	if action.Instructions != "" {
		updates["instructions"] = action.Instructions
	}
	res := tx.Model(&model.StepModel{}).Where("id = ? AND status = ?", current.ID, model.StepStatusPending).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("step %q has already been processed", current.ID)
	}
	*notifs = append(*notifs, notification{recipient: target.ID, kind: NotifyStepAssigned, payload: map[string]interface{}{
		"draft_id": draft.ID,
		"step_id":  current.ID,
	}})
	return nil
}

// Cancel 申请人取消单据,仅 draft 与 pending 状态可取消
// pending 取消时解冻已冻结的额度;业务已开始(如休假起始日已过)不允许取消
func (m *DraftManager) Cancel(draftID, actorID, reason string) (*model.DraftModel, error) {
	err := m.db.Transaction(func(tx *gorm.DB) error {
		draft, err := m.getDraftLocked(tx, draftID)
		if err != nil {
			return err
		}
		if draft.Requester != actorID {
			return Forbiddenf("only the requester can cancel a draft")
		}
		if draft.Status == model.DraftStatusCancelled {
			return Conflictf("draft %q is already cancelled", draftID)
		}
		if draft.Status != model.DraftStatusDraft && draft.Status != model.DraftStatusPending {
			return Conflictf("draft %q cannot be cancelled in status %q", draftID, string(draft.Status))
		}
		if draft.StartDate != nil && draft.StartDate.Before(time.Now()) {
			return Conflictf("draft %q cannot be cancelled: the underlying activity has already started", draftID)
		}

		updates := map[string]interface{}{"decided_at": time.Now()}
		if reason != "" {
			updates["comments"] = reason
		}
		if err := m.casStatus(tx, draftID, draft.Status, model.DraftStatusCancelled, updates); err != nil {
			return err
		}
		if draft.Status == model.DraftStatusPending && draft.TracksBalance() {
			if err := m.ledger.Release(tx, draft.TenantID, draft.Requester, draft.ResourceType, draft.Period, draft.Quantity); err != nil {
				return err
			}
		}
		return m.saveHistory(tx, draftID, draft.Status, model.DraftStatusCancelled, reason, actorID)
	})
	if err != nil {
		return nil, err
	}
	return m.getDraft(m.db, draftID)
}

// Delete 删除草稿,仅 draft 状态允许,先删步骤再删单据
func (m *DraftManager) Delete(draftID, actorID string) error {
	draft, err := m.getDraft(m.db, draftID)
	if err != nil {
		return err
	}
	if draft.Requester != actorID {
		return Forbiddenf("only the requester can delete a draft")
	}
	if draft.Status != model.DraftStatusDraft {
		return Conflictf("draft %q cannot be deleted in status %q", draftID, string(draft.Status))
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("draft_id = ?", draftID).Delete(&model.StepModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete steps: %w", err)
		}
		if err := tx.Where("draft_id = ?", draftID).Delete(&model.StatusHistoryModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete status history: %w", err)
		}
		if err := tx.Where("id = ?", draftID).Delete(&model.DraftModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete draft: %w", err)
		}
		return nil
	})
}

// Get 读取单据与步骤,访问控制: 申请人、任一步骤审批人或管理员
func (m *DraftManager) Get(draftID, actorID string) (*model.DraftModel, []*model.StepModel, error) {
	draft, err := m.getDraft(m.db, draftID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := m.listSteps(m.db, draftID)
	if err != nil {
		return nil, nil, err
	}
	if err := m.perms.CanView(actorID, draft, steps); err != nil {
		return nil, nil, err
	}
	return draft, steps, nil
}

// Steps 读取单据的步骤列表,按 order 升序
func (m *DraftManager) Steps(draftID string) ([]*model.StepModel, error) {
	return m.listSteps(m.db, draftID)
}

// getDraft 读取单据
func (m *DraftManager) getDraft(db *gorm.DB, id string) (*model.DraftModel, error) {
	var draft model.DraftModel
	if err := db.Where("id = ?", id).First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("draft %q not found", id)
		}
		return nil, err
	}
	return &draft, nil
}

// getDraftLocked 在事务内加行锁读取单据,防止并发状态转换读到陈旧状态
func (m *DraftManager) getDraftLocked(tx *gorm.DB, id string) (*model.DraftModel, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var draft model.DraftModel
	if err := q.Where("id = ?", id).First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("draft %q not found", id)
		}
		return nil, err
	}
	return &draft, nil
}

// getCategory 读取单据类型,跨租户按不存在处理
func (m *DraftManager) getCategory(db *gorm.DB, id, tenantID string) (*model.CategoryModel, error) {
	var category model.CategoryModel
	if err := db.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("category %q not found", id)
		}
		return nil, err
	}
	if category.TenantID != tenantID {
		return nil, NotFoundf("category %q not found", id)
	}
	return &category, nil
}

// listSteps 按 order 升序读取步骤
func (m *DraftManager) listSteps(db *gorm.DB, draftID string) ([]*model.StepModel, error) {
	var steps []*model.StepModel
	err := db.Where("draft_id = ?", draftID).Order("step_order ASC").Find(&steps).Error
	return steps, err
}

// currentStep 当前步骤: order 最小的 pending 步骤
func currentStep(steps []*model.StepModel) *model.StepModel {
	for _, s := range steps {
		if s.Status == model.StepStatusPending {
			return s
		}
	}
	return nil
}

// casStatus 单据状态条件更新,未命中说明状态已被并发修改
func (m *DraftManager) casStatus(tx *gorm.DB, draftID string, from, to model.DraftStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&model.DraftModel{}).Where("id = ? AND status = ?", draftID, from).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("draft %q is no longer in status %q", draftID, string(from))
	}
	return nil
}

// casStep 步骤状态条件更新,重复处理同一步骤返回 Conflict
func (m *DraftManager) casStep(tx *gorm.DB, stepID string, to model.StepStatus, action Action) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       to,
		"processed_at": now,
		"updated_at":   now,
	}
	if action.Comment != "" {
		updates["comments"] = action.Comment
	}
	if len(action.Data) > 0 {
		updates["approval_data"] = []byte(action.Data)
	}
	res := tx.Model(&model.StepModel{}).Where("id = ? AND status = ?", stepID, model.StepStatusPending).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflictf("step %q has already been processed", stepID)
	}
	return nil
}

// saveHistory 追加单据状态变更历史
func (m *DraftManager) saveHistory(tx *gorm.DB, draftID string, from, to model.DraftStatus, reason, actor string) error {
	entry := &model.StatusHistoryModel{
		ID:         uuid.New().String(),
		DraftID:    draftID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		Actor:      actor,
		CreatedAt:  time.Now(),
	}
	return tx.Create(entry).Error
}

// dispatch 事务提交后外发通知,尽力而为
func (m *DraftManager) dispatch(notifs []notification) {
	if m.notifier == nil {
		return
	}
	for _, n := range notifs {
		m.notifier.Notify(n.recipient, n.kind, n.payload)
	}
}

// defaultPeriod 额度周期缺省: 优先显式值,其次业务开始日所在年份,最后当前年份
func defaultPeriod(period string, startDate *time.Time) string {
	if period != "" {
		return period
	}
	if startDate != nil {
		return strconv.Itoa(startDate.Year())
	}
	return strconv.Itoa(time.Now().Year())
}

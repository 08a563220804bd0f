package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mautops/hrflow-gin/internal/metrics"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/shopspring/decimal"
)

// DraftService 单据服务接口
type DraftService interface {
	Create(ctx context.Context, req *CreateDraftRequest) (*model.DraftModel, error)
	Get(ctx context.Context, id string) (*DraftDetail, error)
	Update(ctx context.Context, id string, req *UpdateDraftRequest) (*model.DraftModel, error)
	Delete(ctx context.Context, id string) error
	Submit(ctx context.Context, id string) (*model.DraftModel, error)
	Cancel(ctx context.Context, id string, req *CancelRequest) (*model.DraftModel, error)
	Approve(ctx context.Context, id string, req *ApproveRequest) (*model.DraftModel, error)
	Reject(ctx context.Context, id string, req *RejectRequest) (*model.DraftModel, error)
	Return(ctx context.Context, id string, req *ReturnRequest) (*model.DraftModel, error)
	Forward(ctx context.Context, id string, req *ForwardRequest) (*model.DraftModel, error)
}

// CreateDraftRequest 创建单据请求
// @Description 创建审批单据的请求参数
type CreateDraftRequest struct {
	CategoryID string           `json:"category_id" example:"cat-leave" binding:"required"` // 单据类型 ID
	Title      string           `json:"title" example:"年假申请" binding:"required"`            // 标题
	FormData   json.RawMessage  `json:"form_data" swaggertype:"object"`                     // 表单数据(JSON 格式)
	Quantity   decimal.Decimal  `json:"quantity" example:"3"`                               // 申请数量(如请假天数)
	StartDate  *time.Time       `json:"start_date"`                                         // 业务开始日期
	Period     string           `json:"period" example:"2026"`                              // 额度周期,缺省按开始日期推导
	Route      []model.StepSpec `json:"route"`                                              // 自定义审批路由,为空时使用类型模板
}

// UpdateDraftRequest 更新单据请求
// @Description 更新草稿的请求参数,省略的字段保持不变
type UpdateDraftRequest struct {
	Title     *string           `json:"title"`      // 标题
	FormData  json.RawMessage   `json:"form_data"`  // 表单数据
	Quantity  *decimal.Decimal  `json:"quantity"`   // 申请数量
	StartDate *time.Time        `json:"start_date"` // 业务开始日期
	Period    *string           `json:"period"`     // 额度周期
	Route     *[]model.StepSpec `json:"route"`      // 自定义审批路由,空列表表示回退到类型模板
}

// ApproveRequest 审批同意请求
// @Description 同意当前步骤的请求参数
type ApproveRequest struct {
	Comment          string              `json:"comment" example:"同意"`     // 审批意见
	ApprovedQuantity decimal.NullDecimal `json:"approved_quantity"`        // 批准数量,终审时生效,省略表示全额批准
	Data             json.RawMessage     `json:"data" swaggertype:"object"` // 审批附加数据
}

// RejectRequest 审批拒绝请求
// @Description 拒绝当前步骤的请求参数
type RejectRequest struct {
	Comment string          `json:"comment" example:"拒绝" binding:"required"` // 审批意见
	Data    json.RawMessage `json:"data" swaggertype:"object"`               // 审批附加数据
}

// ReturnRequest 退回请求
// @Description 退回给申请人的请求参数
type ReturnRequest struct {
	Comment string `json:"comment" example:"请补充材料" binding:"required"` // 退回原因
}

// ForwardRequest 转交请求
// @Description 把当前步骤转交给新审批人的请求参数
type ForwardRequest struct {
	Target       string `json:"target" example:"user-002" binding:"required"` // 新审批人 ID
	Instructions string `json:"instructions" example:"请代为审批"`                 // 转交说明
}

// CancelRequest 取消请求
// @Description 取消单据的请求参数
type CancelRequest struct {
	Reason string `json:"reason" example:"计划变更"` // 取消原因
}

// DraftDetail 单据详情,包含步骤列表
type DraftDetail struct {
	Draft *model.DraftModel  `json:"draft"`
	Steps []*model.StepModel `json:"steps"`
}

type draftService struct {
	manager     *workflow.DraftManager
	auditLogSvc AuditLogService
}

// NewDraftService 创建单据服务
func NewDraftService(manager *workflow.DraftManager, auditLogSvc AuditLogService) DraftService {
	return &draftService{
		manager:     manager,
		auditLogSvc: auditLogSvc,
	}
}

// Create 创建草稿
func (s *draftService) Create(ctx context.Context, req *CreateDraftRequest) (*model.DraftModel, error) {
	userID := getUserIDFromContext(ctx)
	draft, err := s.manager.Create(&workflow.CreateDraftInput{
		CategoryID: req.CategoryID,
		Requester:  userID,
		Title:      req.Title,
		FormData:   req.FormData,
		Quantity:   req.Quantity,
		StartDate:  req.StartDate,
		Period:     req.Period,
		Route:      req.Route,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDraftCreated()
	s.audit(ctx, "create", draft.ID, map[string]string{"category_id": draft.CategoryID, "title": draft.Title})
	return draft, nil
}

// Get 获取单据详情
func (s *draftService) Get(ctx context.Context, id string) (*DraftDetail, error) {
	userID := getUserIDFromContext(ctx)
	draft, steps, err := s.manager.Get(id, userID)
	if err != nil {
		return nil, err
	}
	return &DraftDetail{Draft: draft, Steps: steps}, nil
}

// Update 更新草稿
func (s *draftService) Update(ctx context.Context, id string, req *UpdateDraftRequest) (*model.DraftModel, error) {
	userID := getUserIDFromContext(ctx)
	draft, err := s.manager.Update(id, userID, &workflow.DraftPatch{
		Title:     req.Title,
		FormData:  req.FormData,
		Quantity:  req.Quantity,
		StartDate: req.StartDate,
		Period:    req.Period,
		Route:     req.Route,
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "update", id, req)
	return draft, nil
}

// Delete 删除草稿
func (s *draftService) Delete(ctx context.Context, id string) error {
	userID := getUserIDFromContext(ctx)
	if err := s.manager.Delete(id, userID); err != nil {
		return err
	}
	s.audit(ctx, "delete", id, nil)
	return nil
}

// Submit 提交草稿进入审批
func (s *draftService) Submit(ctx context.Context, id string) (*model.DraftModel, error) {
	userID := getUserIDFromContext(ctx)
	draft, err := s.manager.Submit(id, userID)
	if err != nil {
		return nil, err
	}

	metrics.RecordDraftSubmitted()
	s.audit(ctx, "submit", id, map[string]string{"status": string(draft.Status)})
	return draft, nil
}

// Cancel 取消单据
func (s *draftService) Cancel(ctx context.Context, id string, req *CancelRequest) (*model.DraftModel, error) {
	userID := getUserIDFromContext(ctx)
	draft, err := s.manager.Cancel(id, userID, req.Reason)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "cancel", id, map[string]string{"reason": req.Reason})
	return draft, nil
}

// Approve 同意当前步骤
func (s *draftService) Approve(ctx context.Context, id string, req *ApproveRequest) (*model.DraftModel, error) {
	return s.act(ctx, id, workflow.Action{
		Type:             workflow.ActionApprove,
		Comment:          req.Comment,
		ApprovedQuantity: req.ApprovedQuantity,
		Data:             req.Data,
	})
}

// Reject 拒绝当前步骤
func (s *draftService) Reject(ctx context.Context, id string, req *RejectRequest) (*model.DraftModel, error) {
	return s.act(ctx, id, workflow.Action{
		Type:    workflow.ActionReject,
		Comment: req.Comment,
		Data:    req.Data,
	})
}

// Return 退回给申请人
func (s *draftService) Return(ctx context.Context, id string, req *ReturnRequest) (*model.DraftModel, error) {
	return s.act(ctx, id, workflow.Action{
		Type:    workflow.ActionReturn,
		Comment: req.Comment,
	})
}

// Forward 转交当前步骤
func (s *draftService) Forward(ctx context.Context, id string, req *ForwardRequest) (*model.DraftModel, error) {
	return s.act(ctx, id, workflow.Action{
		Type:         workflow.ActionForward,
		Target:       req.Target,
		Instructions: req.Instructions,
	})
}

// act 统一的审批动作入口,负责指标与审计
func (s *draftService) act(ctx context.Context, id string, action workflow.Action) (*model.DraftModel, error) {
	userID := getUserIDFromContext(ctx)
	draft, err := s.manager.Act(id, userID, action)
	if err != nil {
		return nil, err
	}

	metrics.RecordApprovalAction(string(action.Type))
	s.audit(ctx, string(action.Type), id, map[string]string{"comment": action.Comment, "status": string(draft.Status)})
	return draft, nil
}

// audit 记录审计日志,失败不影响主流程
func (s *draftService) audit(ctx context.Context, action, draftID string, changes interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		return
	}
	if changes == nil {
		changes = map[string]string{"draft_id": draftID}
	}
	_ = s.auditLogSvc.RecordAction(ctx, userID, action, "draft", draftID, changes)
}

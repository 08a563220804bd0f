package service

import (
	"context"
	"errors"

	"github.com/mautops/hrflow-gin/internal/metrics"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/repository"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceService 额度服务接口
// 分配与冲销仅限管理员,查询开放给本人与管理员
type BalanceService interface {
	SetAllocation(ctx context.Context, req *SetAllocationRequest) (*model.BalanceRecordModel, error)
	Get(ctx context.Context, subject, resourceType, period string) (*model.BalanceRecordModel, error)
	ListBySubject(ctx context.Context, subject string) ([]*model.BalanceRecordModel, error)
	History(ctx context.Context, subject, resourceType, period string) ([]*model.AllocationHistoryModel, error)
	Unwind(ctx context.Context, req *UnwindRequest) (*model.BalanceRecordModel, error)
}

// SetAllocationRequest 设置分配额度请求
// @Description 设置或调整某主体某资源某周期的分配额度
type SetAllocationRequest struct {
	Subject      string          `json:"subject" example:"user-001" binding:"required"`        // 额度主体(员工 ID)
	ResourceType string          `json:"resource_type" example:"annual_leave" binding:"required"` // 资源类型
	Period       string          `json:"period" example:"2026" binding:"required"`             // 周期
	Allocated    decimal.Decimal `json:"allocated" example:"10"`                               // 分配总量
	Reason       string          `json:"reason" example:"年度初始化"`                               // 调整原因
}

// UnwindRequest 冲销已落账额度请求
// @Description 管理员对已落账用量做人工冲销(如批准后的事后更正)
type UnwindRequest struct {
	Subject      string          `json:"subject" example:"user-001" binding:"required"`        // 额度主体
	ResourceType string          `json:"resource_type" example:"annual_leave" binding:"required"` // 资源类型
	Period       string          `json:"period" example:"2026" binding:"required"`             // 周期
	Quantity     decimal.Decimal `json:"quantity" example:"2"`                                 // 冲销数量
	Reason       string          `json:"reason" example:"销假" binding:"required"`               // 冲销原因
}

type balanceService struct {
	db          *gorm.DB
	ledger      *workflow.Ledger
	balanceRepo repository.BalanceRepository
	dir         workflow.Directory
	perms       *workflow.PermissionResolver
	auditLogSvc AuditLogService
}

// NewBalanceService 创建额度服务
func NewBalanceService(db *gorm.DB, dir workflow.Directory, perms *workflow.PermissionResolver, auditLogSvc AuditLogService) BalanceService {
	return &balanceService{
		db:          db,
		ledger:      workflow.NewLedger(),
		balanceRepo: repository.NewBalanceRepository(db),
		dir:         dir,
		perms:       perms,
		auditLogSvc: auditLogSvc,
	}
}

// SetAllocation 设置分配额度,首次调用创建台账记录
func (s *balanceService) SetAllocation(ctx context.Context, req *SetAllocationRequest) (*model.BalanceRecordModel, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.dir.ResolveUser(req.Subject); err != nil {
		return nil, err
	}

	var rec *model.BalanceRecordModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		rec, err = s.ledger.Allocate(tx, admin.TenantID, req.Subject, req.ResourceType, req.Period, req.Allocated, req.Reason, admin.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLedgerAdjustment("allocate")
	s.audit(ctx, "allocate", rec.ID, req)
	return rec, nil
}

// Get 读取台账记录
func (s *balanceService) Get(ctx context.Context, subject, resourceType, period string) (*model.BalanceRecordModel, error) {
	actor, err := s.requireSelfOrAdmin(ctx, subject)
	if err != nil {
		return nil, err
	}
	rec, err := s.balanceRepo.FindByKey(actor.TenantID, subject, resourceType, period)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NotFoundf("balance record for subject %q resource %q period %q not found", subject, resourceType, period)
		}
		return nil, err
	}
	return rec, nil
}

// ListBySubject 列出主体名下的全部台账记录
func (s *balanceService) ListBySubject(ctx context.Context, subject string) ([]*model.BalanceRecordModel, error) {
	actor, err := s.requireSelfOrAdmin(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.balanceRepo.FindBySubject(actor.TenantID, subject)
}

// History 读取台账记录的额度调整历史
func (s *balanceService) History(ctx context.Context, subject, resourceType, period string) ([]*model.AllocationHistoryModel, error) {
	rec, err := s.Get(ctx, subject, resourceType, period)
	if err != nil {
		return nil, err
	}
	return s.balanceRepo.FindHistory(rec.ID)
}

// Unwind 管理员冲销已落账的用量
func (s *balanceService) Unwind(ctx context.Context, req *UnwindRequest) (*model.BalanceRecordModel, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.ledger.Unwind(tx, admin.TenantID, req.Subject, req.ResourceType, req.Period, req.Quantity)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLedgerAdjustment("unwind")
	rec, err := s.balanceRepo.FindByKey(admin.TenantID, req.Subject, req.ResourceType, req.Period)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "unwind", rec.ID, req)
	return rec, nil
}

// requireAdmin 解析当前用户并要求管理员角色
func (s *balanceService) requireAdmin(ctx context.Context) (*model.UserModel, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}
	if !s.perms.IsAdmin(actor.Role) {
		return nil, workflow.Forbiddenf("user %q is not allowed to manage balances", actor.ID)
	}
	return actor, nil
}

// requireSelfOrAdmin 本人或管理员可读
func (s *balanceService) requireSelfOrAdmin(ctx context.Context, subject string) (*model.UserModel, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.ID == subject || s.perms.IsAdmin(actor.Role) {
		return actor, nil
	}
	return nil, workflow.Forbiddenf("user %q is not allowed to view this balance", actor.ID)
}

// resolveActor 解析当前用户
func (s *balanceService) resolveActor(ctx context.Context) (*model.UserModel, error) {
	userID := getUserIDFromContext(ctx)
	actor, err := s.dir.ResolveUser(userID)
	if err != nil {
		if workflow.IsKind(err, workflow.KindNotFound) {
			return nil, workflow.Forbiddenf("actor %q cannot be resolved", userID)
		}
		return nil, err
	}
	return actor, nil
}

// audit 记录审计日志,失败不影响主流程
func (s *balanceService) audit(ctx context.Context, action, balanceID string, changes interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		return
	}
	_ = s.auditLogSvc.RecordAction(ctx, userID, action, "balance", balanceID, changes)
}

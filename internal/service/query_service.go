package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/repository"
	"github.com/mautops/hrflow-gin/internal/utils"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"gorm.io/gorm"
)

// QueryService 查询服务接口
type QueryService interface {
	Inbox(ctx context.Context) ([]*InboxItem, error)
	Outbox(ctx context.Context, filter *ListDraftsFilter) ([]*model.DraftModel, int64, error)
	ListDrafts(ctx context.Context, filter *ListDraftsFilter) ([]*model.DraftModel, int64, error)
	GetHistory(ctx context.Context, draftID string) ([]*StatusHistory, error)
}

// ListDraftsFilter 单据列表查询过滤器
type ListDraftsFilter struct {
	Status     *model.DraftStatus
	CategoryID *string
	Requester  *string
	StartTime  *string
	EndTime    *string
	Page       int
	PageSize   int
	SortBy     string
	Order      string
}

// InboxItem 待办项: 待当前用户处理的步骤及所属单据
type InboxItem struct {
	Step  *model.StepModel  `json:"step"`
	Draft *model.DraftModel `json:"draft"`
}

// StatusHistory 单据状态变更历史
type StatusHistory struct {
	ID         string `json:"id"`
	DraftID    string `json:"draft_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason"`
	Actor      string `json:"actor"`
	CreatedAt  string `json:"created_at"`
}

// queryService 查询服务实现
type queryService struct {
	db          *gorm.DB
	stepRepo    repository.StepRepository
	draftRepo   repository.DraftRepository
	historyRepo repository.StatusHistoryRepository
	dir         workflow.Directory
	perms       *workflow.PermissionResolver
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB, dir workflow.Directory, perms *workflow.PermissionResolver) QueryService {
	return &queryService{
		db:          db,
		stepRepo:    repository.NewStepRepository(db),
		draftRepo:   repository.NewDraftRepository(db),
		historyRepo: repository.NewStatusHistoryRepository(db),
		dir:         dir,
		perms:       perms,
	}
}

// Inbox 待办列表: 当前用户名下的待处理步骤
// 只返回单据仍处于 pending 且该步骤恰好是当前步骤的项
func (s *queryService) Inbox(ctx context.Context) ([]*InboxItem, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}

	steps, err := s.stepRepo.FindPendingByApprover(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending steps: %w", err)
	}
	if len(steps) == 0 {
		return []*InboxItem{}, nil
	}

	draftIDs := make([]string, 0, len(steps))
	for _, st := range steps {
		draftIDs = append(draftIDs, st.DraftID)
	}
	drafts, err := s.draftRepo.FindByIDs(draftIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	byID := make(map[string]*model.DraftModel, len(drafts))
	for _, d := range drafts {
		byID[d.ID] = d
	}

	items := make([]*InboxItem, 0, len(steps))
	for _, st := range steps {
		draft, ok := byID[st.DraftID]
		if !ok || draft.Status != model.DraftStatusPending {
			continue
		}
		// 顺序门控: 只有 order 最小的待处理步骤才是可操作的当前步骤
		var minPending int64
		err := s.db.Model(&model.StepModel{}).
			Where("draft_id = ? AND status = ? AND step_order < ?", st.DraftID, model.StepStatusPending, st.Order).
			Count(&minPending).Error
		if err != nil {
			return nil, err
		}
		if minPending > 0 {
			continue
		}
		items = append(items, &InboxItem{Step: st, Draft: draft})
	}
	return items, nil
}

// Outbox 我发起的单据列表
func (s *queryService) Outbox(ctx context.Context, filter *ListDraftsFilter) ([]*model.DraftModel, int64, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, 0, err
	}
	requester := actor.ID
	filter.Requester = &requester
	return s.list(actor.TenantID, filter)
}

// ListDrafts 按条件列出租户内的单据,仅限管理员
func (s *queryService) ListDrafts(ctx context.Context, filter *ListDraftsFilter) ([]*model.DraftModel, int64, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !s.perms.IsAdmin(actor.Role) {
		return nil, 0, workflow.Forbiddenf("user %q is not allowed to list all drafts", actor.ID)
	}
	return s.list(actor.TenantID, filter)
}

// list 构建查询
func (s *queryService) list(tenantID string, filter *ListDraftsFilter) ([]*model.DraftModel, int64, error) {
	query := s.db.Model(&model.DraftModel{}).Where("tenant_id = ?", tenantID)

	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Requester != nil {
		query = query.Where("requester = ?", *filter.Requester)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count drafts: %w", err)
	}

	// 排序字段做白名单式校验,防止 SQL 注入
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if err := utils.ValidateSortField(sortBy); err != nil {
		return nil, 0, workflow.Validationf("invalid sort field: %s", err.Error())
	}

	order := filter.Order
	if order == "" {
		order = "desc"
	}
	if err := utils.ValidateSortOrder(order); err != nil {
		return nil, 0, workflow.Validationf("invalid sort order: %s", err.Error())
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, strings.ToUpper(order)))

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	query = query.Offset((page - 1) * pageSize).Limit(pageSize)

	var drafts []*model.DraftModel
	if err := query.Find(&drafts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query drafts: %w", err)
	}
	return drafts, total, nil
}

// GetHistory 获取单据状态历史,访问控制与单据详情一致
func (s *queryService) GetHistory(ctx context.Context, draftID string) ([]*StatusHistory, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}

	draft, err := s.draftRepo.FindByID(draftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NotFoundf("draft %q not found", draftID)
		}
		return nil, err
	}
	steps, err := s.stepRepo.FindByDraftID(draftID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CanView(actor.ID, draft, steps); err != nil {
		return nil, err
	}

	models, err := s.historyRepo.FindByDraftID(draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	histories := make([]*StatusHistory, 0, len(models))
	for _, m := range models {
		histories = append(histories, &StatusHistory{
			ID:         m.ID,
			DraftID:    m.DraftID,
			FromStatus: string(m.FromStatus),
			ToStatus:   string(m.ToStatus),
			Reason:     m.Reason,
			Actor:      m.Actor,
			CreatedAt:  m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return histories, nil
}

// resolveActor 解析当前用户
func (s *queryService) resolveActor(ctx context.Context) (*model.UserModel, error) {
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

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/repository"
	"github.com/mautops/hrflow-gin/internal/utils"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryService 单据类型服务接口
// 类型的增删改仅限管理员,读取对租户内所有用户开放
type CategoryService interface {
	Create(ctx context.Context, req *CreateCategoryRequest) (*model.CategoryModel, error)
	Get(ctx context.Context, id string) (*model.CategoryModel, error)
	List(ctx context.Context, activeOnly bool) ([]*model.CategoryModel, error)
	Update(ctx context.Context, id string, req *UpdateCategoryRequest) (*model.CategoryModel, error)
	Delete(ctx context.Context, id string) error
}

// CreateCategoryRequest 创建单据类型请求
// @Description 创建单据类型的请求参数
type CreateCategoryRequest struct {
	Name             string              `json:"name" example:"年假" binding:"required"` // 类型名称
	Description      string              `json:"description" example:"年假申请"`           // 描述
	FormSchema       json.RawMessage     `json:"form_schema" swaggertype:"object"`     // 表单结构定义
	RouteTemplate    []model.StepSpec    `json:"route_template"`                       // 默认审批路由模板
	ResourceType     string              `json:"resource_type" example:"annual_leave"` // 额度资源类型,为空表示不做额度核算
	AutoApproveLimit decimal.NullDecimal `json:"auto_approve_limit"`                   // 自动通过阈值
}

// UpdateCategoryRequest 更新单据类型请求
// @Description 更新单据类型的请求参数,省略的字段保持不变
type UpdateCategoryRequest struct {
	Name             *string              `json:"name"`               // 类型名称
	Description      *string              `json:"description"`        // 描述
	FormSchema       json.RawMessage      `json:"form_schema"`        // 表单结构定义
	RouteTemplate    *[]model.StepSpec    `json:"route_template"`     // 默认审批路由模板
	AutoApproveLimit *decimal.NullDecimal `json:"auto_approve_limit"` // 自动通过阈值
	Active           *bool                `json:"active"`             // 是否启用
}

type categoryService struct {
	db           *gorm.DB
	categoryRepo repository.CategoryRepository
	dir          workflow.Directory
	perms        *workflow.PermissionResolver
	auditLogSvc  AuditLogService
}

// NewCategoryService 创建单据类型服务
func NewCategoryService(db *gorm.DB, dir workflow.Directory, perms *workflow.PermissionResolver, auditLogSvc AuditLogService) CategoryService {
	return &categoryService{
		db:           db,
		categoryRepo: repository.NewCategoryRepository(db),
		dir:          dir,
		perms:        perms,
		auditLogSvc:  auditLogSvc,
	}
}

// Create 创建单据类型
func (s *categoryService) Create(ctx context.Context, req *CreateCategoryRequest) (*model.CategoryModel, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateName(req.Name); err != nil {
		return nil, workflow.Validationf("invalid category name: %s", err.Error())
	}
	if _, err := workflow.NormalizeSpecs(req.RouteTemplate); err != nil {
		return nil, err
	}

	var template []byte
	if len(req.RouteTemplate) > 0 {
		if template, err = json.Marshal(req.RouteTemplate); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	category := &model.CategoryModel{
		ID:               uuid.New().String(),
		TenantID:         admin.TenantID,
		Name:             req.Name,
		Description:      req.Description,
		FormSchema:       []byte(req.FormSchema),
		RouteTemplate:    template,
		ResourceType:     req.ResourceType,
		AutoApproveLimit: req.AutoApproveLimit,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        admin.ID,
		UpdatedBy:        admin.ID,
	}
	if err := s.categoryRepo.Save(category); err != nil {
		return nil, err
	}

	s.audit(ctx, "create", category.ID, map[string]string{"name": category.Name})
	return category, nil
}

// Get 获取单据类型
func (s *categoryService) Get(ctx context.Context, id string) (*model.CategoryModel, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.getScoped(id, actor.TenantID)
}

// List 列出租户下的单据类型
func (s *categoryService) List(ctx context.Context, activeOnly bool) ([]*model.CategoryModel, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.categoryRepo.FindByTenant(actor.TenantID, activeOnly)
}

// Update 更新单据类型
func (s *categoryService) Update(ctx context.Context, id string, req *UpdateCategoryRequest) (*model.CategoryModel, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	category, err := s.getScoped(id, admin.TenantID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := utils.ValidateName(*req.Name); err != nil {
			return nil, workflow.Validationf("invalid category name: %s", err.Error())
		}
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.FormSchema != nil {
		category.FormSchema = []byte(req.FormSchema)
	}
	if req.RouteTemplate != nil {
		if _, err := workflow.NormalizeSpecs(*req.RouteTemplate); err != nil {
			return nil, err
		}
		if len(*req.RouteTemplate) == 0 {
			category.RouteTemplate = nil
		} else {
			raw, err := json.Marshal(*req.RouteTemplate)
			if err != nil {
				return nil, err
			}
			category.RouteTemplate = raw
		}
	}
	if req.AutoApproveLimit != nil {
		category.AutoApproveLimit = *req.AutoApproveLimit
	}
	if req.Active != nil {
		category.Active = *req.Active
	}
	category.UpdatedAt = time.Now()
	category.UpdatedBy = admin.ID

	if err := s.categoryRepo.Save(category); err != nil {
		return nil, err
	}

	s.audit(ctx, "update", id, req)
	return category, nil
}

// Delete 删除单据类型,已被单据引用时拒绝
func (s *categoryService) Delete(ctx context.Context, id string) error {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getScoped(id, admin.TenantID); err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&model.DraftModel{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return workflow.Conflictf("category %q is referenced by %d drafts, deactivate it instead", id, count)
	}

	if err := s.categoryRepo.Delete(id); err != nil {
		return err
	}
	s.audit(ctx, "delete", id, nil)
	return nil
}

// getScoped 按租户读取类型,跨租户按不存在处理
func (s *categoryService) getScoped(id, tenantID string) (*model.CategoryModel, error) {
	category, err := s.categoryRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NotFoundf("category %q not found", id)
		}
		return nil, err
	}
	if category.TenantID != tenantID {
		return nil, workflow.NotFoundf("category %q not found", id)
	}
	return category, nil
}

// resolveActor 解析当前用户
func (s *categoryService) resolveActor(ctx context.Context) (*model.UserModel, error) {
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

// requireAdmin 解析当前用户并要求管理员角色
func (s *categoryService) requireAdmin(ctx context.Context) (*model.UserModel, error) {
	actor, err := s.resolveActor(ctx)
	if err != nil {
		return nil, err
	}
	if !s.perms.IsAdmin(actor.Role) {
		return nil, workflow.Forbiddenf("user %q is not allowed to manage categories", actor.ID)
	}
	return actor, nil
}

// audit 记录审计日志,失败不影响主流程
func (s *categoryService) audit(ctx context.Context, action, categoryID string, changes interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		return
	}
	if changes == nil {
		changes = map[string]string{"category_id": categoryID}
	}
	_ = s.auditLogSvc.RecordAction(ctx, userID, action, "category", categoryID, changes)
}

package repository

import (
	"github.com/mautops/hrflow-gin/internal/model"
	"gorm.io/gorm"
)

// DraftFilter 单据查询条件
type DraftFilter struct {
	TenantID   string
	Requester  string
	CategoryID string
	Status     model.DraftStatus
	Page       int
	PageSize   int
}

// DraftRepository 单据仓储接口
type DraftRepository interface {
	Save(draft *model.DraftModel) error
	FindByID(id string) (*model.DraftModel, error)
	Find(filter DraftFilter) ([]*model.DraftModel, int64, error)
	FindByIDs(ids []string) ([]*model.DraftModel, error)
	Delete(id string) error
}

// draftRepository 单据仓储实现
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository 创建单据仓储
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// Save 保存单据
func (r *draftRepository) Save(draft *model.DraftModel) error {
	return r.db.Save(draft).Error
}

// FindByID 根据 ID 查找单据
func (r *draftRepository) FindByID(id string) (*model.DraftModel, error) {
	var draft model.DraftModel
	if err := r.db.Where("id = ?", id).First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// Find 按条件分页查找单据,返回列表与总数
func (r *draftRepository) Find(filter DraftFilter) ([]*model.DraftModel, int64, error) {
	query := r.db.Model(&model.DraftModel{})
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Requester != "" {
		query = query.Where("requester = ?", filter.Requester)
	}
	if filter.CategoryID != "" {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var drafts []*model.DraftModel
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&drafts).Error
	return drafts, total, err
}

// FindByIDs 批量查找单据
func (r *draftRepository) FindByIDs(ids []string) ([]*model.DraftModel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var drafts []*model.DraftModel
	err := r.db.Where("id IN ?", ids).Order("created_at DESC").Find(&drafts).Error
	return drafts, err
}

// Delete 删除单据
func (r *draftRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.DraftModel{}).Error
}

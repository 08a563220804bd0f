package repository

import (
	"github.com/mautops/hrflow-gin/internal/model"
	"gorm.io/gorm"
)

// CategoryRepository 单据类型仓储接口
type CategoryRepository interface {
	Save(category *model.CategoryModel) error
	FindByID(id string) (*model.CategoryModel, error)
	FindByTenant(tenantID string, activeOnly bool) ([]*model.CategoryModel, error)
	Delete(id string) error
}

// categoryRepository 单据类型仓储实现
type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建单据类型仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// Save 保存单据类型
func (r *categoryRepository) Save(category *model.CategoryModel) error {
	return r.db.Save(category).Error
}

// FindByID 根据 ID 查找单据类型
func (r *categoryRepository) FindByID(id string) (*model.CategoryModel, error) {
	var category model.CategoryModel
	if err := r.db.Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByTenant 查找租户下的单据类型
func (r *categoryRepository) FindByTenant(tenantID string, activeOnly bool) ([]*model.CategoryModel, error) {
	var categories []*model.CategoryModel
	query := r.db.Where("tenant_id = ?", tenantID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("created_at DESC").Find(&categories).Error
	return categories, err
}

// Delete 删除单据类型
func (r *categoryRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.CategoryModel{}).Error
}

package repository

import (
	"github.com/mautops/hrflow-gin/internal/model"
	"gorm.io/gorm"
)

// StepRepository 步骤仓储接口
type StepRepository interface {
	FindByDraftID(draftID string) ([]*model.StepModel, error)
	FindPendingByApprover(approver string) ([]*model.StepModel, error)
	DeleteByDraftID(draftID string) error
}

// stepRepository 步骤仓储实现
type stepRepository struct {
	db *gorm.DB
}

// NewStepRepository 创建步骤仓储
func NewStepRepository(db *gorm.DB) StepRepository {
	return &stepRepository{db: db}
}

// FindByDraftID 查找单据的步骤,按 order 升序
func (r *stepRepository) FindByDraftID(draftID string) ([]*model.StepModel, error) {
	var steps []*model.StepModel
	err := r.db.Where("draft_id = ?", draftID).Order("step_order ASC").Find(&steps).Error
	return steps, err
}

// FindPendingByApprover 查找审批人名下所有待处理步骤
func (r *stepRepository) FindPendingByApprover(approver string) ([]*model.StepModel, error) {
	var steps []*model.StepModel
	err := r.db.Where("approver = ? AND status = ?", approver, model.StepStatusPending).
		Order("created_at ASC").
		Find(&steps).Error
	return steps, err
}

// DeleteByDraftID 删除单据的全部步骤
func (r *stepRepository) DeleteByDraftID(draftID string) error {
	return r.db.Where("draft_id = ?", draftID).Delete(&model.StepModel{}).Error
}

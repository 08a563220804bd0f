package repository

import (
	"github.com/mautops/hrflow-gin/internal/model"
	"gorm.io/gorm"
)

// BalanceRepository 额度台账仓储接口
// 台账四元组的修改只经由 workflow.Ledger,仓储只提供读取
type BalanceRepository interface {
	FindByKey(tenantID, subject, resourceType, period string) (*model.BalanceRecordModel, error)
	FindBySubject(tenantID, subject string) ([]*model.BalanceRecordModel, error)
	FindHistory(balanceID string) ([]*model.AllocationHistoryModel, error)
}

// balanceRepository 额度台账仓储实现
type balanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository 创建额度台账仓储
func NewBalanceRepository(db *gorm.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

// FindByKey 按业务键查找台账记录
func (r *balanceRepository) FindByKey(tenantID, subject, resourceType, period string) (*model.BalanceRecordModel, error) {
	var rec model.BalanceRecordModel
	err := r.db.Where("tenant_id = ? AND subject = ? AND resource_type = ? AND period = ?",
		tenantID, subject, resourceType, period).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindBySubject 查找主体名下全部台账记录
func (r *balanceRepository) FindBySubject(tenantID, subject string) ([]*model.BalanceRecordModel, error) {
	var recs []*model.BalanceRecordModel
	err := r.db.Where("tenant_id = ? AND subject = ?", tenantID, subject).
		Order("period DESC, resource_type ASC").
		Find(&recs).Error
	return recs, err
}

// FindHistory 查找台账记录的额度调整历史,按时间升序
func (r *balanceRepository) FindHistory(balanceID string) ([]*model.AllocationHistoryModel, error) {
	var entries []*model.AllocationHistoryModel
	err := r.db.Where("balance_id = ?", balanceID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

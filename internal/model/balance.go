package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceRecordModel 额度台账数据模型
// 按 (主体, 资源类型, 周期) 唯一,四元组满足 available = allocated - used - pending
type BalanceRecordModel struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)"`
	TenantID     string          `gorm:"type:varchar(64);not null;index"`
	Subject      string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_balance_key"`
	ResourceType string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_balance_key"`
	Period       string          `gorm:"type:varchar(16);not null;uniqueIndex:idx_balance_key"`
	Allocated    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Used         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Pending      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Available    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName 指定表名
func (BalanceRecordModel) TableName() string {
	return "balance_records"
}

// Validate 验证台账模型
func (bm *BalanceRecordModel) Validate() error {
	if bm.ID == "" {
		return errors.New("balance record ID is required")
	}
	if bm.Subject == "" {
		return errors.New("balance subject is required")
	}
	if bm.ResourceType == "" {
		return errors.New("balance resource type is required")
	}
	if bm.Period == "" {
		return errors.New("balance period is required")
	}
	return nil
}

// CheckInvariant 校验台账不变式
// 每次调整都直接维护 available,中间态不一致说明存在缺陷
func (bm *BalanceRecordModel) CheckInvariant() error {
	if bm.Allocated.IsNegative() || bm.Used.IsNegative() || bm.Pending.IsNegative() || bm.Available.IsNegative() {
		return fmt.Errorf("balance record %s has negative quantity: allocated=%s used=%s pending=%s available=%s",
			bm.ID, bm.Allocated, bm.Used, bm.Pending, bm.Available)
	}
	if !bm.Available.Equal(bm.Allocated.Sub(bm.Used).Sub(bm.Pending)) {
		return fmt.Errorf("balance record %s violates available = allocated - used - pending: allocated=%s used=%s pending=%s available=%s",
			bm.ID, bm.Allocated, bm.Used, bm.Pending, bm.Available)
	}
	return nil
}

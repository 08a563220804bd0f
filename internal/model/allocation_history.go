package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationHistoryModel 额度调整历史数据模型,只追加不修改
type AllocationHistoryModel struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)"`
	BalanceID    string          `gorm:"type:varchar(64);not null;index"`
	OldAllocated decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	NewAllocated decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Reason       string          `gorm:"type:text"`
	Actor        string          `gorm:"type:varchar(64);not null"`
	CreatedAt    time.Time       `gorm:"not null;index"`
}

// TableName 指定表名
func (AllocationHistoryModel) TableName() string {
	return "allocation_history"
}

// Validate 验证额度历史模型
func (am *AllocationHistoryModel) Validate() error {
	if am.ID == "" {
		return errors.New("allocation history ID is required")
	}
	if am.BalanceID == "" {
		return errors.New("balance ID is required")
	}
	if am.Actor == "" {
		return errors.New("actor is required")
	}
	return nil
}

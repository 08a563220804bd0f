package model

import (
	"errors"
	"time"
)

// StatusHistoryModel 单据状态变更历史数据模型
type StatusHistoryModel struct {
	ID         string      `gorm:"primaryKey;type:varchar(64)"`
	DraftID    string      `gorm:"type:varchar(64);not null;index"`
	FromStatus DraftStatus `gorm:"type:varchar(32)"`
	ToStatus   DraftStatus `gorm:"type:varchar(32);not null"`
	Reason     string      `gorm:"type:text"`
	Actor      string      `gorm:"type:varchar(64);not null"`
	CreatedAt  time.Time   `gorm:"not null;index"`
}

// TableName 指定表名
func (StatusHistoryModel) TableName() string {
	return "status_history"
}

// Validate 验证状态历史模型
func (shm *StatusHistoryModel) Validate() error {
	if shm.ID == "" {
		return errors.New("history ID is required")
	}
	if shm.DraftID == "" {
		return errors.New("draft ID is required")
	}
	if shm.ToStatus == "" {
		return errors.New("to status is required")
	}
	if shm.Actor == "" {
		return errors.New("actor is required")
	}
	return nil
}

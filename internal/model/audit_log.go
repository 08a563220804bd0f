package model

import (
	"errors"
	"time"
)

// AuditLogModel 审计日志数据模型
type AuditLogModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	ActorID    string    `gorm:"type:varchar(64);not null;index"`
	Action     string    `gorm:"type:varchar(64);not null;index"` // create/update/submit/approve/reject/...
	EntityType string    `gorm:"type:varchar(32);not null"`       // category/draft/balance
	EntityID   string    `gorm:"type:varchar(64);not null;index"`
	RequestID  string    `gorm:"type:varchar(64);index"`
	IP         string    `gorm:"type:varchar(45)"` // IPv4 或 IPv6
	Changes    []byte    `gorm:"type:jsonb"`       // 操作详情
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.ID == "" {
		return errors.New("audit log ID is required")
	}
	if alm.ActorID == "" {
		return errors.New("actor ID is required")
	}
	if alm.Action == "" {
		return errors.New("action is required")
	}
	if alm.EntityType == "" {
		return errors.New("entity type is required")
	}
	if alm.EntityID == "" {
		return errors.New("entity ID is required")
	}
	return nil
}

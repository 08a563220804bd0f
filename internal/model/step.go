package model

import (
	"errors"
	"time"
)

// StepStatus 步骤状态
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"  // 待处理
	StepStatusApproved StepStatus = "approved" // 已同意
	StepStatusRejected StepStatus = "rejected" // 已拒绝
	StepStatusReturned StepStatus = "returned" // 已退回
)

// StepModel 已物化的审批步骤数据模型,每条单据一组
type StepModel struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)"`
	DraftID      string     `gorm:"type:varchar(64);not null;index"`
	Order        int        `gorm:"column:step_order;not null"` // order 是 SQL 关键字
	Kind         StepKind   `gorm:"type:varchar(32);not null"`
	Required     bool       `gorm:"not null;default:true"`
	Approver     string     `gorm:"type:varchar(64);not null;index"`
	Status       StepStatus `gorm:"type:varchar(32);not null;index"`
	Instructions string     `gorm:"type:text"`
	Comments     string     `gorm:"type:text"`
	ApprovalData []byte     `gorm:"type:jsonb"` // 处理时附带的数据
	ProcessedAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StepModel) TableName() string {
	return "steps"
}

// Validate 验证步骤模型
func (sm *StepModel) Validate() error {
	if sm.ID == "" {
		return errors.New("step ID is required")
	}
	if sm.DraftID == "" {
		return errors.New("draft ID is required")
	}
	if sm.Order <= 0 {
		return errors.New("step order must be positive")
	}
	if !sm.Kind.Valid() {
		return errors.New("step kind is invalid")
	}
	if sm.Approver == "" {
		return errors.New("step approver is required")
	}
	return nil
}

// Resolved 步骤是否已处理
func (sm *StepModel) Resolved() bool {
	return sm.Status != StepStatusPending
}

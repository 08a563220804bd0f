package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DraftStatus 单据状态
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"     // 草稿
	DraftStatusPending   DraftStatus = "pending"   // 审批中
	DraftStatusApproved  DraftStatus = "approved"  // 已通过
	DraftStatusRejected  DraftStatus = "rejected"  // 已拒绝
	DraftStatusReturned  DraftStatus = "returned"  // 已退回
	DraftStatusCancelled DraftStatus = "cancelled" // 已取消
)

// Terminal 判断状态是否为终态
func (s DraftStatus) Terminal() bool {
	switch s {
	case DraftStatusApproved, DraftStatusRejected, DraftStatusReturned, DraftStatusCancelled:
		return true
	}
	return false
}

// DraftModel 单据数据模型
type DraftModel struct {
	ID               string              `gorm:"primaryKey;type:varchar(64)"`
	TenantID         string              `gorm:"type:varchar(64);not null;index"`
	CategoryID       string              `gorm:"type:varchar(64);not null;index"`
	Requester        string              `gorm:"type:varchar(64);not null;index"`
	Title            string              `gorm:"type:varchar(255);not null"`
	FormData         []byte              `gorm:"type:jsonb"` // 表单数据
	CustomRoute      []byte              `gorm:"type:jsonb"` // 自定义路由(序列化的 []StepSpec),为空则使用类型模板
	Status           DraftStatus         `gorm:"type:varchar(32);not null;index"`
	ResourceType     string              `gorm:"type:varchar(32)"` // 从单据类型复制,为空则不走额度台账
	Period           string              `gorm:"type:varchar(16)"` // 额度周期,如 "2026"
	Quantity         decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0"` // 申请数量(天数)
	ApprovedQuantity decimal.NullDecimal `gorm:"type:decimal(10,2)"` // 实际批准数量
	StartDate        *time.Time          `gorm:"index"` // 业务开始时间(如休假起始日)
	SubmittedAt      *time.Time          `gorm:"index"`
	DecidedAt        *time.Time
	Comments         string              `gorm:"type:text"`
	CreatedAt        time.Time           `gorm:"not null;index"`
	UpdatedAt        time.Time           `gorm:"not null;index"`
}

// TableName 指定表名
func (DraftModel) TableName() string {
	return "drafts"
}

// Validate 验证单据模型
func (dm *DraftModel) Validate() error {
	if dm.ID == "" {
		return errors.New("draft ID is required")
	}
	if dm.CategoryID == "" {
		return errors.New("category ID is required")
	}
	if dm.Requester == "" {
		return errors.New("requester is required")
	}
	if dm.Status == "" {
		return errors.New("draft status is required")
	}
	return nil
}

// Route 反序列化自定义路由
func (dm *DraftModel) Route() ([]StepSpec, error) {
	if len(dm.CustomRoute) == 0 {
		return nil, nil
	}
	var specs []StepSpec
	if err := json.Unmarshal(dm.CustomRoute, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// TracksBalance 是否关联额度台账
func (dm *DraftModel) TracksBalance() bool {
	return dm.ResourceType != ""
}

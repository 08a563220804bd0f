package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// StepKind 步骤类型
type StepKind string

const (
	StepKindAgreement StepKind = "agreement" // 协商
	StepKindApproval  StepKind = "approval"  // 审批
	StepKindReference StepKind = "reference" // 知会
)

// Valid 判断步骤类型是否合法
func (k StepKind) Valid() bool {
	switch k {
	case StepKindAgreement, StepKindApproval, StepKindReference:
		return true
	}
	return false
}

// StepSpec 路由步骤定义(模板或自定义路由中的一项)
// Required 为空时默认必经
type StepSpec struct {
	Order        int      `json:"order"`
	Kind         StepKind `json:"kind"`
	Approver     string   `json:"approver"`
	Instructions string   `json:"instructions,omitempty"`
	Required     *bool    `json:"required,omitempty"`
}

// IsRequired 步骤是否必经
func (s *StepSpec) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// CategoryModel 单据类型数据模型
type CategoryModel struct {
	ID               string               `gorm:"primaryKey;type:varchar(64)"`
	TenantID         string               `gorm:"type:varchar(64);not null;index"`
	Name             string               `gorm:"type:varchar(255);not null"`
	Description      string               `gorm:"type:text"`
	FormSchema       []byte               `gorm:"type:jsonb"` // 表单定义
	RouteTemplate    []byte               `gorm:"type:jsonb"` // 默认路由模板(序列化的 []StepSpec)
	ResourceType     string               `gorm:"type:varchar(32);index"` // 额度资源类型,为空则不走额度台账
	AutoApproveLimit decimal.NullDecimal  `gorm:"type:decimal(10,2)"` // 自动通过阈值
	Active           bool                 `gorm:"not null;default:true;index"`
	CreatedAt        time.Time            `gorm:"not null"`
	UpdatedAt        time.Time            `gorm:"not null"`
	CreatedBy        string               `gorm:"type:varchar(64)"`
	UpdatedBy        string               `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (CategoryModel) TableName() string {
	return "categories"
}

// Validate 验证单据类型模型
func (cm *CategoryModel) Validate() error {
	if cm.ID == "" {
		return errors.New("category ID is required")
	}
	if cm.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if cm.Name == "" {
		return errors.New("category name is required")
	}
	return nil
}

// Template 反序列化默认路由模板
func (cm *CategoryModel) Template() ([]StepSpec, error) {
	if len(cm.RouteTemplate) == 0 {
		return nil, nil
	}
	var specs []StepSpec
	if err := json.Unmarshal(cm.RouteTemplate, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

package model

import (
	"errors"
)

// UserModel 用户数据模型
// 身份与组织信息由外部平台同步,这里只读
type UserModel struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	TenantID  string `gorm:"type:varchar(64);not null;index"`
	Name      string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255)"`
	Role      string `gorm:"type:varchar(64);index"` // 如 employee / manager / hr_admin
	OrgUnitID string `gorm:"type:varchar(64);index"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// Validate 验证用户模型
func (um *UserModel) Validate() error {
	if um.ID == "" {
		return errors.New("user ID is required")
	}
	if um.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	return nil
}

// OrgUnitModel 组织单元数据模型,通过 ParentID 构成树
type OrgUnitModel struct {
	ID       string `gorm:"primaryKey;type:varchar(64)"`
	TenantID string `gorm:"type:varchar(64);not null;index"`
	Name     string `gorm:"type:varchar(255);not null"`
	ParentID string `gorm:"type:varchar(64);index"` // 为空表示根节点
}

// TableName 指定表名
func (OrgUnitModel) TableName() string {
	return "org_units"
}

// Validate 验证组织单元模型
func (om *OrgUnitModel) Validate() error {
	if om.ID == "" {
		return errors.New("org unit ID is required")
	}
	if om.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	return nil
}

package directory

import (
	"errors"

	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/workflow"
	"gorm.io/gorm"
)

// Service 基于数据库的身份与组织信息提供方
// 用户与组织表由外部平台同步,这里只读
type Service struct {
	db *gorm.DB
}

// New 创建身份服务
func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ResolveUser 解析用户
func (s *Service) ResolveUser(id string) (*model.UserModel, error) {
	if id == "" {
		return nil, workflow.NotFoundf("user not found")
	}
	var user model.UserModel
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.NotFoundf("user %q not found", id)
		}
		return nil, err
	}
	return &user, nil
}

// OrgAncestors 沿父链向上收集祖先组织单元,最多 maxDepth 层
// 父链断裂时停止,不视为错误
func (s *Service) OrgAncestors(orgUnitID string, maxDepth int) ([]string, error) {
	ancestors := make([]string, 0, maxDepth)
	current := orgUnitID
	for i := 0; i < maxDepth && current != ""; i++ {
		var unit model.OrgUnitModel
		if err := s.db.Where("id = ?", current).First(&unit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		if unit.ParentID == "" {
			break
		}
		ancestors = append(ancestors, unit.ParentID)
		current = unit.ParentID
	}
	return ancestors, nil
}

package workflow

import (
	"github.com/mautops/hrflow-gin/internal/model"
)

// 通知类型
const (
	NotifyStepAssigned  = "step_assigned"  // 轮到某步骤审批人处理
	NotifyDraftApproved = "draft_approved" // 单据已通过
	NotifyDraftRejected = "draft_rejected" // 单据已拒绝
	NotifyDraftReturned = "draft_returned" // 单据已退回
)

// Directory 身份与组织信息的外部提供方
type Directory interface {
	// ResolveUser 解析用户,不存在时返回 NotFound 分类错误
	ResolveUser(id string) (*model.UserModel, error)
	// OrgAncestors 返回组织单元的祖先链(由近及远),最多 maxDepth 层
	OrgAncestors(orgUnitID string, maxDepth int) ([]string, error)
}

// Notifier 通知外发,尽力而为
// 通知失败不允许影响触发它的状态转换,实现方自行记录日志
type Notifier interface {
	Notify(recipient string, kind string, payload map[string]interface{})
}

// notification 事务内暂存的通知,提交成功后统一外发
type notification struct {
	recipient string
	kind      string
	payload   map[string]interface{}
}

package workflow

import (
	"github.com/mautops/hrflow-gin/internal/model"
)

// DefaultOrgDepth 组织层级兜底查找的默认深度
const DefaultOrgDepth = 3

// PermissionResolver 审批权限判定
// 依次检查: 步骤审批人本人、管理员角色、申请人组织树的有界深度祖先
// 失败关闭: 解析不到用户、跨租户访问一律拒绝
type PermissionResolver struct {
	dir        Directory
	adminRoles map[string]struct{}
	orgDepth   int
}

// NewPermissionResolver 创建权限判定器
// adminRoles 为可越权处理任意步骤的角色集合,orgDepth <= 0 时取默认值
func NewPermissionResolver(dir Directory, adminRoles []string, orgDepth int) *PermissionResolver {
	if orgDepth <= 0 {
		orgDepth = DefaultOrgDepth
	}
	roles := make(map[string]struct{}, len(adminRoles))
	for _, r := range adminRoles {
		roles[r] = struct{}{}
	}
	return &PermissionResolver{dir: dir, adminRoles: roles, orgDepth: orgDepth}
}

// IsAdmin 判断角色是否在管理员集合内
func (p *PermissionResolver) IsAdmin(role string) bool {
	_, ok := p.adminRoles[role]
	return ok
}

// CanAct 判断 actor 是否可处理单据的当前步骤,返回 nil 表示允许
// 跨租户按对象不存在处理,避免泄露单据存在性
func (p *PermissionResolver) CanAct(actorID string, draft *model.DraftModel, step *model.StepModel) error {
	actor, err := p.dir.ResolveUser(actorID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return Forbiddenf("actor %q cannot be resolved", actorID)
		}
		return err
	}
	if actor.TenantID != draft.TenantID {
		return NotFoundf("draft %q not found", draft.ID)
	}

	if actor.ID == step.Approver {
		return nil
	}
	if p.IsAdmin(actor.Role) {
		return nil
	}

	// 组织层级兜底: actor 的组织单元是申请人组织单元的祖先(有界深度)
	requester, err := p.dir.ResolveUser(draft.Requester)
	if err == nil && actor.OrgUnitID != "" && requester.OrgUnitID != "" {
		ancestors, aerr := p.dir.OrgAncestors(requester.OrgUnitID, p.orgDepth)
		if aerr == nil {
			for _, unitID := range ancestors {
				if unitID == actor.OrgUnitID {
					return nil
				}
			}
		}
	}

	return Forbiddenf("user %q is not allowed to act on the current step", actorID)
}

// CanView 判断 actor 是否可查看单据: 申请人、任一步骤审批人或管理员
func (p *PermissionResolver) CanView(actorID string, draft *model.DraftModel, steps []*model.StepModel) error {
	actor, err := p.dir.ResolveUser(actorID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return Forbiddenf("actor %q cannot be resolved", actorID)
		}
		return err
	}
	if actor.TenantID != draft.TenantID {
		return NotFoundf("draft %q not found", draft.ID)
	}
	if actor.ID == draft.Requester || p.IsAdmin(actor.Role) {
		return nil
	}
	for _, step := range steps {
		if step.Approver == actor.ID {
			return nil
		}
	}
	return Forbiddenf("user %q is not allowed to view this draft", actorID)
}

package workflow

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ActionType 审批动作类型,封闭集合
type ActionType string

const (
	ActionApprove ActionType = "approve" // 同意
	ActionReject  ActionType = "reject"  // 拒绝
	ActionReturn  ActionType = "return"  // 退回
	ActionForward ActionType = "forward" // 转交
)

// Action 对当前步骤执行的审批动作
// Target/Instructions 仅 forward 使用,ApprovedQuantity 仅最终 approve 使用
type Action struct {
	Type             ActionType
	Comment          string
	Data             json.RawMessage
	ApprovedQuantity decimal.NullDecimal
	Target           string
	Instructions     string
}

// Validate 校验动作本身的完整性,不涉及单据状态
func (a *Action) Validate() error {
	switch a.Type {
	case ActionApprove:
		if a.ApprovedQuantity.Valid && a.ApprovedQuantity.Decimal.IsNegative() {
			return Validationf("approved quantity must not be negative")
		}
	case ActionReject, ActionReturn:
		// 无额外参数
	case ActionForward:
		if a.Target == "" {
			return Validationf("forward requires a target approver")
		}
	default:
		return Validationf("unknown action type %q", string(a.Type))
	}
	return nil
}

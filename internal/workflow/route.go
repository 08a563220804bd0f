package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/mautops/hrflow-gin/internal/model"
	"gorm.io/gorm"
)

// RouteCompiler 路由编译器
// 把单据类型的默认模板或调用方自定义的步骤列表物化为一条单据的审批步骤
type RouteCompiler struct {
	dir Directory
}

// NewRouteCompiler 创建路由编译器
func NewRouteCompiler(dir Directory) *RouteCompiler {
	return &RouteCompiler{dir: dir}
}

// NormalizeSpecs 校验并规范化步骤定义
// 全部未给 order 时按列表顺序补齐 index+1;
// 显式给出 order 时必须全部给出,且为正数、严格递增(隐含唯一,重复值直接拒绝)
func NormalizeSpecs(specs []model.StepSpec) ([]model.StepSpec, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	explicit := false
	for _, s := range specs {
		if s.Order != 0 {
			explicit = true
			break
		}
	}

	out := make([]model.StepSpec, len(specs))
	copy(out, specs)

	if !explicit {
		for i := range out {
			out[i].Order = i + 1
		}
	} else {
		prev := 0
		for i := range out {
			if out[i].Order <= 0 {
				return nil, Validationf("step %d: order must be a positive integer", i+1)
			}
			if out[i].Order <= prev {
				return nil, Validationf("step %d: order values must be strictly increasing and unique", i+1)
			}
			prev = out[i].Order
		}
	}

	for i := range out {
		if !out[i].Kind.Valid() {
			return nil, Validationf("step %d: unknown step kind %q", i+1, string(out[i].Kind))
		}
		if out[i].Approver == "" {
			return nil, Validationf("step %d: approver is required", i+1)
		}
	}
	return out, nil
}

// Compile 把步骤定义物化为单据的步骤记录并持久化,全部初始化为 pending
// 空列表返回空切片,表示零步骤直通路径,不是错误
func (c *RouteCompiler) Compile(tx *gorm.DB, draft *model.DraftModel, specs []model.StepSpec) ([]*model.StepModel, error) {
	normalized, err := NormalizeSpecs(specs)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	now := time.Now()
	steps := make([]*model.StepModel, 0, len(normalized))
	for i, spec := range normalized {
		approver, err := c.dir.ResolveUser(spec.Approver)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return nil, Validationf("step %d: approver %q cannot be resolved", i+1, spec.Approver)
			}
			return nil, err
		}
		if approver.TenantID != draft.TenantID {
			return nil, Validationf("step %d: approver %q cannot be resolved", i+1, spec.Approver)
		}

		steps = append(steps, &model.StepModel{
			ID:           uuid.New().String(),
			DraftID:      draft.ID,
			Order:        spec.Order,
			Kind:         spec.Kind,
			Required:     spec.IsRequired(),
			Approver:     spec.Approver,
			Status:       model.StepStatusPending,
			Instructions: spec.Instructions,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := tx.Create(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

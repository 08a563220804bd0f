package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/hrflow-gin/internal/service"
)

// BalanceController 额度控制器
type BalanceController struct {
	balanceService service.BalanceService
}

// NewBalanceController 创建额度控制器
func NewBalanceController(balanceService service.BalanceService) *BalanceController {
	return &BalanceController{
		balanceService: balanceService,
	}
}

// SetAllocation 设置分配额度
// @Summary      设置分配额度
// @Description  设置或调整主体在某资源某周期的分配总量,仅限管理员
// @Tags         额度管理
// @Accept       json
// @Produce      json
// @Param        request body service.SetAllocationRequest true "额度信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /balances [put]
// @Security     BearerAuth
func (c *BalanceController) SetAllocation(ctx *gin.Context) {
	var req service.SetAllocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	rec, err := c.balanceService.SetAllocation(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, rec)
}

// Get 查询额度
// @Summary      查询额度
// @Description  查询主体在某资源某周期的额度四元组
// @Tags         额度管理
// @Produce      json
// @Param        subject path string true "额度主体"
// @Param        resource_type query string true "资源类型"
// @Param        period query string true "周期"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /balances/{subject} [get]
// @Security     BearerAuth
func (c *BalanceController) Get(ctx *gin.Context) {
	subject := ctx.Param("subject")
	resourceType := ctx.Query("resource_type")
	period := ctx.Query("period")

	if resourceType == "" || period == "" {
		// 未指定资源与周期时返回主体名下全部记录
		recs, err := c.balanceService.ListBySubject(ctx.Request.Context(), subject)
		if err != nil {
			HandleError(ctx, err)
			return
		}
		Success(ctx, recs)
		return
	}

	rec, err := c.balanceService.Get(ctx.Request.Context(), subject, resourceType, period)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, rec)
}

// History 查询额度调整历史
func (c *BalanceController) History(ctx *gin.Context) {
	subject := ctx.Param("subject")
	resourceType := ctx.Query("resource_type")
	period := ctx.Query("period")

	if resourceType == "" || period == "" {
		Error(ctx, http.StatusBadRequest, "invalid request", "resource_type and period are required")
		return
	}

	entries, err := c.balanceService.History(ctx.Request.Context(), subject, resourceType, period)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, entries)
}

// Unwind 冲销已落账额度
func (c *BalanceController) Unwind(ctx *gin.Context) {
	var req service.UnwindRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	rec, err := c.balanceService.Unwind(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, rec)
}

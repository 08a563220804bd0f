package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/hrflow-gin/internal/service"
	"github.com/mautops/hrflow-gin/internal/utils"
)

// DraftController 单据控制器
type DraftController struct {
	draftService service.DraftService
}

// NewDraftController 创建单据控制器
func NewDraftController(draftService service.DraftService) *DraftController {
	return &DraftController{
		draftService: draftService,
	}
}

// validateDraftID 验证单据 ID 并返回错误响应（如果无效）
func (c *DraftController) validateDraftID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid draft ID", err.Error())
		return false
	}
	return true
}

// Create 创建单据
// @Summary      创建审批单据
// @Description  基于单据类型创建新的审批单据草稿
// @Tags         单据管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateDraftRequest true "单据信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /drafts [post]
// @Security     BearerAuth
func (c *DraftController) Create(ctx *gin.Context) {
	var req service.CreateDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Get 获取单据详情
// @Summary      获取单据详情
// @Description  根据 ID 获取单据及其审批步骤
// @Tags         单据管理
// @Produce      json
// @Param        id path string true "单据 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /drafts/{id} [get]
// @Security     BearerAuth
func (c *DraftController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	detail, err := c.draftService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// Update 更新草稿
// @Summary      更新单据草稿
// @Description  更新 draft 状态的单据,替换路由会丢弃已编译的步骤
// @Tags         单据管理
// @Accept       json
// @Produce      json
// @Param        id path string true "单据 ID"
// @Param        request body service.UpdateDraftRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /drafts/{id} [put]
// @Security     BearerAuth
func (c *DraftController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	var req service.UpdateDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Delete 删除草稿
func (c *DraftController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	if err := c.draftService.Delete(ctx.Request.Context(), id); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Submit 提交单据
// @Summary      提交单据
// @Description  提交草稿进入审批流程,无审批步骤时直接通过
// @Tags         单据管理
// @Produce      json
// @Param        id path string true "单据 ID"
// @Success      200  {object}  Response
// @Failure      409  {object}  ErrorResponse
// @Router       /drafts/{id}/submit [post]
// @Security     BearerAuth
func (c *DraftController) Submit(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	draft, err := c.draftService.Submit(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Cancel 取消单据
func (c *DraftController) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	var req service.CancelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Cancel(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Approve 审批同意
// @Summary      审批同意
// @Description  同意当前待处理步骤,终审时可指定批准数量
// @Tags         单据管理
// @Accept       json
// @Produce      json
// @Param        id path string true "单据 ID"
// @Param        request body service.ApproveRequest true "审批信息"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /drafts/{id}/approve [post]
// @Security     BearerAuth
func (c *DraftController) Approve(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	var req service.ApproveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Approve(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Reject 审批拒绝
func (c *DraftController) Reject(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	var req service.RejectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Reject(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Return 退回申请人
func (c *DraftController) Return(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	var req service.ReturnRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Return(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Forward 转交当前步骤
func (c *DraftController) Forward(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateDraftID(ctx, id) {
		return
	}

	var req service.ForwardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	draft, err := c.draftService.Forward(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, draft)
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/service"
	"github.com/mautops/hrflow-gin/internal/utils"
)

// QueryController 查询控制器
type QueryController struct {
	queryService service.QueryService
}

// NewQueryController 创建查询控制器
func NewQueryController(queryService service.QueryService) *QueryController {
	return &QueryController{
		queryService: queryService,
	}
}

// Inbox 待办列表
// @Summary      待办列表
// @Description  列出当前用户名下待处理的审批步骤及所属单据
// @Tags         查询
// @Produce      json
// @Success      200  {object}  Response
// @Router       /inbox [get]
// @Security     BearerAuth
func (c *QueryController) Inbox(ctx *gin.Context) {
	items, err := c.queryService.Inbox(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, items)
}

// Outbox 我发起的单据
func (c *QueryController) Outbox(ctx *gin.Context) {
	filter, ok := c.parseFilter(ctx)
	if !ok {
		return
	}

	drafts, total, err := c.queryService.Outbox(ctx.Request.Context(), filter)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	c.paginated(ctx, drafts, total, filter)
}

// ListDrafts 列出租户内单据,仅限管理员
func (c *QueryController) ListDrafts(ctx *gin.Context) {
	filter, ok := c.parseFilter(ctx)
	if !ok {
		return
	}

	drafts, total, err := c.queryService.ListDrafts(ctx.Request.Context(), filter)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	c.paginated(ctx, drafts, total, filter)
}

// GetHistory 单据状态历史
func (c *QueryController) GetHistory(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid draft ID", err.Error())
		return
	}

	histories, err := c.queryService.GetHistory(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, histories)
}

// parseFilter 从查询参数构建过滤器
func (c *QueryController) parseFilter(ctx *gin.Context) (*service.ListDraftsFilter, bool) {
	filter := &service.ListDraftsFilter{
		SortBy: ctx.Query("sort_by"),
		Order:  ctx.Query("order"),
	}

	if v := ctx.Query("status"); v != "" {
		status := model.DraftStatus(v)
		filter.Status = &status
	}
	if v := ctx.Query("category_id"); v != "" {
		filter.CategoryID = &v
	}
	if v := ctx.Query("start_time"); v != "" {
		filter.StartTime = &v
	}
	if v := ctx.Query("end_time"); v != "" {
		filter.EndTime = &v
	}
	if v := ctx.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", "page must be an integer")
			return nil, false
		}
		filter.Page = page
	}
	if v := ctx.Query("page_size"); v != "" {
		pageSize, err := strconv.Atoi(v)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", "page_size must be an integer")
			return nil, false
		}
		filter.PageSize = pageSize
	}

	return filter, true
}

// paginated 输出分页响应
func (c *QueryController) paginated(ctx *gin.Context, data interface{}, total int64, filter *service.ListDraftsFilter) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	totalPage := int((total + int64(pageSize) - 1) / int64(pageSize))

	Paginated(ctx, data, PaginationInfo{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

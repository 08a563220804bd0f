package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/hrflow-gin/internal/service"
	"github.com/mautops/hrflow-gin/internal/utils"
)

// CategoryController 单据类型控制器
type CategoryController struct {
	categoryService service.CategoryService
}

// NewCategoryController 创建单据类型控制器
func NewCategoryController(categoryService service.CategoryService) *CategoryController {
	return &CategoryController{
		categoryService: categoryService,
	}
}

// Create 创建单据类型
// @Summary      创建单据类型
// @Description  创建新的单据类型,仅限管理员
// @Tags         类型管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateCategoryRequest true "类型信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /categories [post]
// @Security     BearerAuth
func (c *CategoryController) Create(ctx *gin.Context) {
	var req service.CreateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	category, err := c.categoryService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, category)
}

// Get 获取单据类型
func (c *CategoryController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid category ID", err.Error())
		return
	}

	category, err := c.categoryService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, category)
}

// List 列出单据类型
func (c *CategoryController) List(ctx *gin.Context) {
	activeOnly := ctx.Query("active") == "true"

	categories, err := c.categoryService.List(ctx.Request.Context(), activeOnly)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, categories)
}

// Update 更新单据类型
func (c *CategoryController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid category ID", err.Error())
		return
	}

	var req service.UpdateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	category, err := c.categoryService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, category)
}

// Delete 删除单据类型
func (c *CategoryController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid category ID", err.Error())
		return
	}

	if err := c.categoryService.Delete(ctx.Request.Context(), id); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

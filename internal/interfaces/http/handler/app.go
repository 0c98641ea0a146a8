// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appsvc "ai-codegen-api/internal/application/app"
	"ai-codegen-api/internal/domain/repository"
	"ai-codegen-api/internal/interfaces/http/dto"
)

// AppHandler 应用管理处理器
type AppHandler struct {
	apps *appsvc.Service
}

// NewAppHandler 创建应用管理处理器
func NewAppHandler(apps *appsvc.Service) *AppHandler {
	return &AppHandler{apps: apps}
}

// Create 创建应用
// @Summary 创建应用
// @Description 根据初始需求创建应用，生成类型由路由器自动分类
// @Tags Apps
// @Accept json
// @Produce json
// @Param request body dto.CreateAppRequest true "创建请求"
// @Success 201 {object} dto.Response[dto.AppResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/apps [post]
func (h *AppHandler) Create(c *gin.Context) {
	var req dto.CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	app, err := h.apps.CreateApp(c.Request.Context(), req.UserID, req.Name, req.InitPrompt)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.NewAppResponse(app))
}

// Get 查询应用详情
// @Summary 查询应用详情
// @Tags Apps
// @Produce json
// @Param id path int true "应用 ID"
// @Success 200 {object} dto.Response[dto.AppResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/apps/{id} [get]
func (h *AppHandler) Get(c *gin.Context) {
	appID, ok := parseAppID(c)
	if !ok {
		return
	}

	app, err := h.apps.GetApp(c.Request.Context(), appID)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewAppResponse(app))
}

// List 分页查询用户的应用列表
// @Summary 应用列表
// @Tags Apps
// @Produce json
// @Param user_id query int true "用户 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.AppListResponse]
// @Router /v1/apps [get]
func (h *AppHandler) List(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		dto.BadRequest(c, "invalid user_id")
		return
	}
	pagination := parsePagination(c)

	result, err := h.apps.ListApps(c.Request.Context(), userID, pagination)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	apps := make([]*dto.AppResponse, 0, len(result.Items))
	for _, a := range result.Items {
		apps = append(apps, dto.NewAppResponse(a))
	}
	dto.SuccessWithPage(c, dto.AppListResponse{Apps: apps},
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Delete 删除应用及关联资源
// @Summary 删除应用
// @Tags Apps
// @Param id path int true "应用 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/apps/{id} [delete]
func (h *AppHandler) Delete(c *gin.Context) {
	appID, ok := parseAppID(c)
	if !ok {
		return
	}

	if err := h.apps.DeleteApp(c.Request.Context(), appID); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}

// Deploy 部署应用产物
// @Summary 部署应用
// @Description 把最新生成的产物发布到部署目录并返回访问地址
// @Tags Apps
// @Produce json
// @Param id path int true "应用 ID"
// @Success 200 {object} dto.Response[dto.DeployResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/apps/{id}/deploy [post]
func (h *AppHandler) Deploy(c *gin.Context) {
	appID, ok := parseAppID(c)
	if !ok {
		return
	}

	url, err := h.apps.Deploy(c.Request.Context(), appID)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.DeployResponse{URL: url})
}

// ListHistory 分页查询对话历史，按时间正序
// @Summary 对话历史
// @Tags Apps
// @Produce json
// @Param id path int true "应用 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.ChatHistoryListResponse]
// @Router /v1/apps/{id}/history [get]
func (h *AppHandler) ListHistory(c *gin.Context) {
	appID, ok := parseAppID(c)
	if !ok {
		return
	}
	pagination := parsePagination(c)

	result, err := h.apps.ListHistory(c.Request.Context(), appID, pagination)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	histories := make([]*dto.ChatHistoryResponse, 0, len(result.Items))
	for _, record := range result.Items {
		histories = append(histories, dto.NewChatHistoryResponse(record))
	}
	dto.SuccessWithPage(c, dto.ChatHistoryListResponse{Histories: histories},
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

func parseAppID(c *gin.Context) (int64, bool) {
	appID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || appID <= 0 {
		dto.BadRequest(c, "invalid app id")
		return 0, false
	}
	return appID, true
}

func parsePagination(c *gin.Context) repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NewPagination(page, pageSize)
}

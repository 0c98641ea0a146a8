// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	appsvc "ai-codegen-api/internal/application/app"
	"ai-codegen-api/internal/interfaces/http/dto"
	"ai-codegen-api/internal/workflow"
	wfmodel "ai-codegen-api/internal/workflow/model"
)

// WorkflowHandler 工作流生成处理器
type WorkflowHandler struct {
	apps   *appsvc.Service
	engine *workflow.Engine
}

// NewWorkflowHandler 创建工作流生成处理器
func NewWorkflowHandler(apps *appsvc.Service, engine *workflow.Engine) *WorkflowHandler {
	return &WorkflowHandler{apps: apps, engine: engine}
}

// Run 执行多节点生成工作流
// @Summary 工作流生成
// @Description 执行路由、配图规划、生成、质检修复、素材收集的完整工作流，
// 通过 SSE 推送每个节点的执行进度
// @Tags Generation
// @Accept json
// @Produce text/event-stream
// @Param id path int true "应用 ID"
// @Param request body dto.GenerateRequest true "生成请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/apps/{id}/workflow [post]
func (h *WorkflowHandler) Run(c *gin.Context) {
	appID, ok := parseAppID(c)
	if !ok {
		return
	}
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	app, err := h.apps.GetApp(c.Request.Context(), appID)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	ctx := c.Request.Context()
	events := make(chan wfmodel.Event, 16)

	go func() {
		defer close(events)
		_, _ = h.engine.Run(ctx, app, req.UserID, req.Prompt, func(ev wfmodel.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()

	setSSEHeaders(c)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("node", ev)
			// 终态事件后结束流
			return ev.Node != wfmodel.NodeEnd && ev.Status != "failed"
		case <-ctx.Done():
			return false
		}
	})
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	appsvc "ai-codegen-api/internal/application/app"
	"ai-codegen-api/internal/application/codegen"
	"ai-codegen-api/internal/interfaces/http/dto"
)

// GenerateHandler 代码生成处理器
type GenerateHandler struct {
	apps   *appsvc.Service
	facade *codegen.Facade
}

// NewGenerateHandler 创建代码生成处理器
func NewGenerateHandler(apps *appsvc.Service, facade *codegen.Facade) *GenerateHandler {
	return &GenerateHandler{apps: apps, facade: facade}
}

// Generate 同步生成代码
// @Summary 同步生成代码
// @Description 根据对话需求生成代码并落盘，阻塞到生成完成
// @Tags Generation
// @Accept json
// @Produce json
// @Param id path int true "应用 ID"
// @Param request body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/apps/{id}/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
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

	result, err := h.facade.GenerateAndSave(c.Request.Context(), app, req.UserID, req.Prompt)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, toGenerateResponse(result))
}

// GenerateStream 流式生成代码
// @Summary 流式生成代码
// @Description 通过 SSE 推送生成片段，结束时推送落盘结果
// @Tags Generation
// @Accept json
// @Produce text/event-stream
// @Param id path int true "应用 ID"
// @Param request body dto.GenerateRequest true "生成请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/apps/{id}/generate/stream [post]
func (h *GenerateHandler) GenerateStream(c *gin.Context) {
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

	ch, err := h.facade.GenerateAndSaveStream(c.Request.Context(), app, req.UserID, req.Prompt)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	setSSEHeaders(c)

	index := 0
	c.Stream(func(w io.Writer) bool {
		select {
		case chunk, open := <-ch:
			if !open {
				return false
			}
			switch {
			case chunk.Error != "":
				c.SSEvent("error", gin.H{"message": chunk.Error})
				return false
			case chunk.Done:
				c.SSEvent("done", toGenerateResponse(chunk.Result))
				return false
			default:
				c.SSEvent("content", gin.H{"chunk": chunk.Content, "index": index})
				index++
				return true
			}
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

func toGenerateResponse(result *codegen.SaveResult) dto.GenerateResponse {
	if result == nil {
		return dto.GenerateResponse{}
	}
	files := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, f.Path)
	}
	return dto.GenerateResponse{
		GenType: string(result.GenType),
		Dir:     result.Dir,
		Files:   files,
	}
}

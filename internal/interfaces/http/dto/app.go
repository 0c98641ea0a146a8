// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"ai-codegen-api/internal/domain/entity"
)

// CreateAppRequest 创建应用请求
type CreateAppRequest struct {
	Name       string `json:"name" binding:"required"`
	InitPrompt string `json:"init_prompt" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required"`
}

// AppResponse 应用详情响应
type AppResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	InitPrompt string `json:"init_prompt"`
	GenType    string `json:"gen_type"`
	CoverURL   string `json:"cover_url,omitempty"`
	DeployKey  string `json:"deploy_key,omitempty"`
	DeployedAt string `json:"deployed_at,omitempty"`
	UserID     int64  `json:"user_id"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// NewAppResponse 从实体构建应用响应
func NewAppResponse(app *entity.App) *AppResponse {
	resp := &AppResponse{
		ID:         app.ID,
		Name:       app.Name,
		InitPrompt: app.InitPrompt,
		GenType:    string(app.GenType),
		CoverURL:   app.CoverURL,
		DeployKey:  app.DeployKey,
		UserID:     app.UserID,
		CreatedAt:  app.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  app.UpdatedAt.Format(time.RFC3339),
	}
	if app.DeployedAt != nil {
		resp.DeployedAt = app.DeployedAt.Format(time.RFC3339)
	}
	return resp
}

// AppListResponse 应用列表响应
type AppListResponse struct {
	Apps []*AppResponse `json:"apps"`
}

// DeployResponse 部署结果响应
type DeployResponse struct {
	URL string `json:"url"`
}

// GenerateRequest 代码生成请求
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
}

// GenerateResponse 同步代码生成响应
type GenerateResponse struct {
	GenType string   `json:"gen_type"`
	Dir     string   `json:"dir"`
	Files   []string `json:"files"`
}

// ChatHistoryResponse 对话历史单条响应
type ChatHistoryResponse struct {
	ID          int64  `json:"id"`
	MessageType string `json:"message_type"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at"`
}

// NewChatHistoryResponse 从实体构建历史响应
func NewChatHistoryResponse(h *entity.ChatHistory) *ChatHistoryResponse {
	return &ChatHistoryResponse{
		ID:          h.ID,
		MessageType: string(h.MessageType),
		Message:     h.Message,
		CreatedAt:   h.CreatedAt.Format(time.RFC3339),
	}
}

// ChatHistoryListResponse 对话历史列表响应
type ChatHistoryListResponse struct {
	Histories []*ChatHistoryResponse `json:"histories"`
}

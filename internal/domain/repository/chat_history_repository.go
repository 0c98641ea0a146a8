// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-codegen-api/internal/domain/entity"
)

// ChatHistoryRepository 对话历史仓储接口
type ChatHistoryRepository interface {
	// Create 追加一条对话记录
	Create(ctx context.Context, history *entity.ChatHistory) error
	// ListRecent 返回某应用最近的 limit 条记录，按创建时间倒序（最新在前）
	ListRecent(ctx context.Context, appID int64, limit int) ([]*entity.ChatHistory, error)
	// ListByApp 按创建时间正序分页返回某应用的对话记录
	ListByApp(ctx context.Context, appID int64, pagination Pagination) (*PagedResult[*entity.ChatHistory], error)
	// DeleteByApp 删除某应用的全部对话记录
	DeleteByApp(ctx context.Context, appID int64) error
}

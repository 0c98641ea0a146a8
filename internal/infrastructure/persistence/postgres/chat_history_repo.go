// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
)

type ChatHistoryRepository struct {
	client *Client
}

func NewChatHistoryRepository(client *Client) *ChatHistoryRepository {
	return &ChatHistoryRepository{client: client}
}

func (r *ChatHistoryRepository) Create(ctx context.Context, history *entity.ChatHistory) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatHistoryRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(history).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat history: %w", err)
	}
	return nil
}

// ListRecent 返回最近 limit 条记录，最新在前
func (r *ChatHistoryRepository) ListRecent(ctx context.Context, appID int64, limit int) ([]*entity.ChatHistory, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatHistoryRepository.ListRecent")
	defer span.End()

	var histories []*entity.ChatHistory
	if err := r.client.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at DESC").
		Limit(limit).
		Find(&histories).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent chat histories: %w", err)
	}
	return histories, nil
}

func (r *ChatHistoryRepository) ListByApp(ctx context.Context, appID int64, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatHistory], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatHistoryRepository.ListByApp")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.ChatHistory{}).Where("app_id = ?", appID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat histories: %w", err)
	}

	var histories []*entity.ChatHistory
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&histories).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat histories: %w", err)
	}

	return repository.NewPagedResult(histories, total, pagination), nil
}

func (r *ChatHistoryRepository) DeleteByApp(ctx context.Context, appID int64) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatHistoryRepository.DeleteByApp")
	defer span.End()

	if err := r.client.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Delete(&entity.ChatHistory{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chat histories: %w", err)
	}
	return nil
}

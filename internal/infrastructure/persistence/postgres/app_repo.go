// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	apperrors "ai-codegen-api/pkg/errors"
)

type AppRepository struct {
	client *Client
}

func NewAppRepository(client *Client) *AppRepository {
	return &AppRepository{client: client}
}

func (r *AppRepository) Create(ctx context.Context, app *entity.App) error {
	ctx, span := tracer.Start(ctx, "postgres.AppRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(app).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create app: %w", err)
	}
	return nil
}

func (r *AppRepository) GetByID(ctx context.Context, id int64) (*entity.App, error) {
	ctx, span := tracer.Start(ctx, "postgres.AppRepository.GetByID")
	defer span.End()

	var app entity.App
	err := r.client.db.WithContext(ctx).First(&app, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAppNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return &app, nil
}

func (r *AppRepository) Update(ctx context.Context, app *entity.App) error {
	ctx, span := tracer.Start(ctx, "postgres.AppRepository.Update")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Save(app).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update app: %w", err)
	}
	return nil
}

func (r *AppRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "postgres.AppRepository.Delete")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Delete(&entity.App{}, id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete app: %w", err)
	}
	return nil
}

func (r *AppRepository) ListByUser(ctx context.Context, userID int64, pagination repository.Pagination) (*repository.PagedResult[*entity.App], error) {
	ctx, span := tracer.Start(ctx, "postgres.AppRepository.ListByUser")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.App{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count apps: %w", err)
	}

	var apps []*entity.App
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&apps).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}

	return repository.NewPagedResult(apps, total, pagination), nil
}

// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-codegen-api/internal/domain/entity"
)

// AppRepository 应用仓储接口
type AppRepository interface {
	Create(ctx context.Context, app *entity.App) error
	GetByID(ctx context.Context, id int64) (*entity.App, error)
	Update(ctx context.Context, app *entity.App) error
	Delete(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, pagination Pagination) (*PagedResult[*entity.App], error)
}

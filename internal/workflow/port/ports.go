// Package port 定义工作流层对外部能力的最小依赖
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	wfmodel "ai-codegen-api/internal/workflow/model"
)

// ChatModelFactory 工作流层对 LLM ChatModel 的最小依赖
type ChatModelFactory interface {
	Default(ctx context.Context) (model.BaseChatModel, error)
	Reasoning(ctx context.Context) (model.BaseChatModel, error)
}

// ImageSearcher 图片素材搜索
type ImageSearcher interface {
	Search(ctx context.Context, query string) ([]SearchedImage, error)
}

// SearchedImage 搜索到的图片
type SearchedImage struct {
	URL         string
	Description string
}

// ContextStore 工作流上下文检查点存储
type ContextStore interface {
	Save(ctx context.Context, wfCtx *wfmodel.Context) error
	Load(ctx context.Context, runID string) (*wfmodel.Context, error)
}

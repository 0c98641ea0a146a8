// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	wfmodel "ai-codegen-api/internal/workflow/model"
)

// 检查点只服务于排障和断点观察，保留一天足够
const workflowContextTTL = 24 * time.Hour

// WorkflowStore 基于 Redis 的工作流上下文检查点存储
type WorkflowStore struct {
	cache *Cache
}

// NewWorkflowStore 创建检查点存储
func NewWorkflowStore(cache *Cache) *WorkflowStore {
	return &WorkflowStore{cache: cache}
}

func workflowKey(runID string) string {
	return "workflow:ctx:" + runID
}

// Save 保存上下文快照，同一 runID 覆盖写入
func (s *WorkflowStore) Save(ctx context.Context, wfCtx *wfmodel.Context) error {
	return s.cache.Set(ctx, workflowKey(wfCtx.RunID), wfCtx, workflowContextTTL)
}

// Load 读取上下文快照
func (s *WorkflowStore) Load(ctx context.Context, runID string) (*wfmodel.Context, error) {
	data, err := s.cache.Get(ctx, workflowKey(runID))
	if err != nil {
		if IsNil(err) {
			return nil, fmt.Errorf("workflow context %s not found", runID)
		}
		return nil, err
	}

	var wfCtx wfmodel.Context
	if err := json.Unmarshal(data, &wfCtx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow context: %w", err)
	}
	return &wfCtx, nil
}

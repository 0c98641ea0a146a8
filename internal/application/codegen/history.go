package codegen

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	"ai-codegen-api/pkg/logger"
)

// RehydrateWindow 用持久化的对话历史重建对话窗口。
//
// 查询多取一条并跳过最新的那条：调用方在发起生成前已把本轮用户
// 消息落库，不跳过会导致它在窗口里出现两次。错误记录只用于前端
// 展示，不参与模型上下文。历史加载失败不阻塞生成，窗口保持为空。
func RehydrateWindow(ctx context.Context, repo repository.ChatHistoryRepository, appID int64, replayLimit int, w *Window) {
	if replayLimit <= 0 {
		replayLimit = 20
	}

	records, err := repo.ListRecent(ctx, appID, replayLimit+1)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to load chat history, starting with empty window",
			"app_id", appID, "error", err)
		return
	}
	if len(records) > 0 {
		records = records[1:]
	}

	// ListRecent 返回最新在前，倒序遍历恢复时间顺序
	loaded := 0
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		switch r.MessageType {
		case entity.MessageTypeUser:
			w.Append(schema.UserMessage(r.Message))
			loaded++
		case entity.MessageTypeAI:
			w.Append(schema.AssistantMessage(r.Message, nil))
			loaded++
		}
	}

	logger.FromContext(ctx).Debug("window rehydrated", "app_id", appID, "loaded", loaded)
}

package codegen

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"ai-codegen-api/internal/application/codegen/prompt"
	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	apperrors "ai-codegen-api/pkg/errors"
)

// NewClientFactory 构建客户端工厂。
// 工程模式走推理模型，其余走默认模型；窗口从持久化历史回放重建。
func NewClientFactory(
	models ModelFactory,
	histories repository.ChatHistoryRepository,
	cfg *config.CodeGenConfig,
) ClientFactory {
	registry := prompt.NewRegistry()

	return func(ctx context.Context, appID int64, genType entity.CodeGenType) (*Client, error) {
		promptID, err := systemPromptID(genType)
		if err != nil {
			return nil, err
		}
		systemPrompt, err := registry.System(promptID)
		if err != nil {
			return nil, err
		}

		var chatModel model.BaseChatModel
		if genType == entity.CodeGenTypeProject {
			chatModel, err = models.Reasoning(ctx)
		} else {
			chatModel, err = models.Default(ctx)
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeLLMProviderError, "failed to resolve chat model")
		}

		window := NewWindow(cfg.WindowSize, systemPrompt)
		RehydrateWindow(ctx, histories, appID, cfg.HistoryReplayLimit, window)

		return NewClient(appID, genType, chatModel, window), nil
	}
}

func systemPromptID(genType entity.CodeGenType) (prompt.PromptID, error) {
	switch genType {
	case entity.CodeGenTypeHTML:
		return prompt.PromptHTMLGenV1, nil
	case entity.CodeGenTypeMultiFile:
		return prompt.PromptMultiFileGenV1, nil
	case entity.CodeGenTypeProject:
		return prompt.PromptProjectGenV1, nil
	default:
		return "", apperrors.ErrUnsupportedGenType
	}
}

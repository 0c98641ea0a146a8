package codegen

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ai-codegen-api/internal/domain/entity"
	apperrors "ai-codegen-api/pkg/errors"
)

// Client 绑定到某个应用和生成类型的 AI 客户端。
// 持有独立的对话窗口，同一应用在不同生成类型下互不串扰。
type Client struct {
	appID     int64
	genType   entity.CodeGenType
	chatModel model.BaseChatModel
	window    *Window
}

// NewClient 创建 AI 客户端
func NewClient(appID int64, genType entity.CodeGenType, chatModel model.BaseChatModel, window *Window) *Client {
	return &Client{
		appID:     appID,
		genType:   genType,
		chatModel: chatModel,
		window:    window,
	}
}

// GenType 返回该客户端的生成类型
func (c *Client) GenType() entity.CodeGenType {
	return c.genType
}

// Window 返回该客户端的对话窗口
func (c *Client) Window() *Window {
	return c.window
}

// Generate 同步生成，返回模型的完整回复文本
func (c *Client) Generate(ctx context.Context, userPrompt string) (string, error) {
	msgs := c.window.Messages(userPrompt)
	out, err := c.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "llm generate failed")
	}
	if out == nil || out.Content == "" {
		return "", apperrors.New(apperrors.CodeLLMCallFailed, "empty llm response")
	}
	return out.Content, nil
}

// Stream 流式生成，返回 Eino StreamReader；调用方负责 Close()。
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息，用于 Token 统计。
func (c *Client) Stream(ctx context.Context, userPrompt string) (*schema.StreamReader[*schema.Message], error) {
	msgs := c.window.Messages(userPrompt)
	reader, err := c.chatModel.Stream(ctx, msgs)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "llm stream failed")
	}
	if reader == nil {
		return nil, fmt.Errorf("nil stream reader")
	}
	return reader, nil
}

// Commit 在一轮生成成功后提交对话记录到窗口
func (c *Client) Commit(userPrompt, assistantReply string) {
	c.window.Commit(userPrompt, assistantReply)
}

package codegen

import (
	"context"
	"io"
	"strings"
	"time"

	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	apperrors "ai-codegen-api/pkg/errors"
	"ai-codegen-api/pkg/logger"
	"ai-codegen-api/pkg/metrics"
)

// Facade 代码生成门面，对外只暴露两个入口：同步生成和流式生成。
// 编排顺序：输入护栏 → 落库用户消息 → 取客户端 → 生成 → 提取落盘 →
// 落库 AI 消息 → 提交窗口。
type Facade struct {
	cache       *ClientCache
	inputGuard  *InputGuard
	outputGuard *OutputGuard
	saver       *Saver
	histories   repository.ChatHistoryRepository
}

// NewFacade 创建代码生成门面
func NewFacade(
	cache *ClientCache,
	saver *Saver,
	histories repository.ChatHistoryRepository,
	cfg *config.CodeGenConfig,
) *Facade {
	return &Facade{
		cache:       cache,
		inputGuard:  NewInputGuard(),
		outputGuard: NewOutputGuard(cfg.GuardrailMaxRetries),
		saver:       saver,
		histories:   histories,
	}
}

// Saver 返回落盘器，工作流编排需要复用
func (f *Facade) Saver() *Saver {
	return f.saver
}

// Cache 返回客户端缓存
func (f *Facade) Cache() *ClientCache {
	return f.cache
}

// GenerateAndSave 同步生成并落盘
func (f *Facade) GenerateAndSave(ctx context.Context, app *entity.App, userID int64, userPrompt string) (*SaveResult, error) {
	genType, err := f.prepare(ctx, app, userID, userPrompt)
	if err != nil {
		return nil, err
	}

	client, err := f.cache.Get(ctx, app.ID, genType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	output, err := f.outputGuard.GenerateChecked(ctx, client, userPrompt)
	if err != nil {
		f.persistTurn(ctx, app.ID, userID, entity.MessageTypeError, err.Error())
		metrics.CodeGenTotal.WithLabelValues(string(genType), "error").Inc()
		return nil, err
	}

	result, err := f.saver.Save(ctx, app.ID, genType, output)
	if err != nil {
		f.persistTurn(ctx, app.ID, userID, entity.MessageTypeError, err.Error())
		metrics.CodeGenTotal.WithLabelValues(string(genType), "error").Inc()
		return nil, err
	}

	f.persistTurn(ctx, app.ID, userID, entity.MessageTypeAI, output)
	client.Commit(userPrompt, output)

	metrics.CodeGenTotal.WithLabelValues(string(genType), "success").Inc()
	metrics.CodeGenDuration.WithLabelValues(string(genType)).Observe(time.Since(start).Seconds())
	return result, nil
}

// GenerateAndSaveStream 流式生成。返回的通道由实现负责关闭；
// 正常结束时最后一个片段 Done 为 true 并携带落盘结果，中断时
// 最后一个片段携带 Error。中断的轮次落库为错误消息，不会留下
// 看似成功的半截 AI 回复。
func (f *Facade) GenerateAndSaveStream(ctx context.Context, app *entity.App, userID int64, userPrompt string) (<-chan StreamChunk, error) {
	genType, err := f.prepare(ctx, app, userID, userPrompt)
	if err != nil {
		return nil, err
	}

	client, err := f.cache.Get(ctx, app.ID, genType)
	if err != nil {
		return nil, err
	}

	reader, err := client.Stream(ctx, userPrompt)
	if err != nil {
		f.persistTurn(ctx, app.ID, userID, entity.MessageTypeError, err.Error())
		metrics.CodeGenTotal.WithLabelValues(string(genType), "error").Inc()
		return nil, err
	}

	ch := make(chan StreamChunk, 16)
	start := time.Now()

	go func() {
		defer close(ch)
		defer reader.Close()

		// 中断后落库要用不随请求取消的上下文
		persistCtx := context.WithoutCancel(ctx)
		var sb strings.Builder

		for {
			msg, err := reader.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				reason := "model_error"
				if ctx.Err() != nil {
					reason = "cancelled"
				}
				f.abortStream(persistCtx, app.ID, userID, genType, reason, err, ch)
				return
			}
			if msg == nil || msg.Content == "" {
				// 流尾可能带一条只含 Usage 的空消息
				continue
			}

			sb.WriteString(msg.Content)
			select {
			case ch <- StreamChunk{Content: msg.Content}:
				metrics.StreamChunksTotal.WithLabelValues(string(genType)).Inc()
			case <-ctx.Done():
				f.abortStream(persistCtx, app.ID, userID, genType, "cancelled", ctx.Err(), ch)
				return
			}
		}

		output := sb.String()
		result, err := f.saver.Save(persistCtx, app.ID, genType, output)
		if err != nil {
			f.abortStream(persistCtx, app.ID, userID, genType, "model_error", err, ch)
			return
		}

		f.persistTurn(persistCtx, app.ID, userID, entity.MessageTypeAI, output)
		client.Commit(userPrompt, output)

		metrics.CodeGenTotal.WithLabelValues(string(genType), "success").Inc()
		metrics.CodeGenDuration.WithLabelValues(string(genType)).Observe(time.Since(start).Seconds())

		select {
		case ch <- StreamChunk{Done: true, Result: result}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// prepare 校验生成类型、执行输入护栏并落库用户消息
func (f *Facade) prepare(ctx context.Context, app *entity.App, userID int64, userPrompt string) (entity.CodeGenType, error) {
	genType := app.GenType
	if !genType.Valid() {
		return "", apperrors.ErrUnsupportedGenType
	}

	if err := f.inputGuard.Check(ctx, userPrompt); err != nil {
		return "", err
	}

	f.persistTurn(ctx, app.ID, userID, entity.MessageTypeUser, userPrompt)
	return genType, nil
}

// abortStream 中断收尾：落库错误消息、打点、推送错误片段
func (f *Facade) abortStream(ctx context.Context, appID, userID int64, genType entity.CodeGenType, reason string, cause error, ch chan<- StreamChunk) {
	logger.FromContext(ctx).Warn("stream aborted",
		"app_id", appID, "gen_type", genType, "reason", reason, "error", cause)

	metrics.StreamAbortedTotal.WithLabelValues(string(genType), reason).Inc()
	metrics.CodeGenTotal.WithLabelValues(string(genType), "error").Inc()

	msg := "生成中断"
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	f.persistTurn(ctx, appID, userID, entity.MessageTypeError, msg)

	select {
	case ch <- StreamChunk{Error: msg}:
	default:
	}
}

// persistTurn 落库一条对话记录，失败只记日志不阻塞生成
func (f *Facade) persistTurn(ctx context.Context, appID, userID int64, msgType entity.MessageType, message string) {
	record := entity.NewChatHistory(appID, userID, msgType, message)
	if err := f.histories.Create(ctx, record); err != nil {
		logger.FromContext(ctx).Error("failed to persist chat turn",
			"app_id", appID, "message_type", msgType, "error", err)
	}
}

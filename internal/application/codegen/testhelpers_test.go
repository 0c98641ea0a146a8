package codegen

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
)

// fakeChatModel 按脚本应答的 ChatModel
type fakeChatModel struct {
	mu        sync.Mutex
	responses []string
	calls     [][]*schema.Message

	streamChunks []string
	streamErr    error
	// waitCancel 为 true 时流在发完片段后挂起，直到 ctx 取消才以
	// ctx.Err() 结束，模拟远端长连接
	waitCancel bool
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, input)
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 {
		return nil, fmt.Errorf("no scripted response")
	}
	return schema.AssistantMessage(m.responses[idx], nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	chunks := m.streamChunks
	streamErr := m.streamErr
	waitCancel := m.waitCancel
	m.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](len(chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range chunks {
			if sw.Send(schema.AssistantMessage(c, nil), nil) {
				return
			}
		}
		if streamErr != nil {
			sw.Send(nil, streamErr)
			return
		}
		if waitCancel {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
		}
	}()
	return sr, nil
}

func (m *fakeChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *fakeChatModel) lastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// fakeHistoryRepo 内存版对话历史仓储
type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*entity.ChatHistory
	listErr error
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *entity.ChatHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history.ID = int64(len(r.records) + 1)
	r.records = append(r.records, history)
	return nil
}

func (r *fakeHistoryRepo) ListRecent(ctx context.Context, appID int64, limit int) ([]*entity.ChatHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	var out []*entity.ChatHistory
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].AppID == appID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) ListByApp(ctx context.Context, appID int64, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatHistory], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*entity.ChatHistory
	for _, rec := range r.records {
		if rec.AppID == appID {
			all = append(all, rec)
		}
	}
	return repository.NewPagedResult(all, int64(len(all)), pagination), nil
}

func (r *fakeHistoryRepo) DeleteByApp(ctx context.Context, appID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.AppID != appID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

func (r *fakeHistoryRepo) byType(msgType entity.MessageType) []*entity.ChatHistory {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.ChatHistory
	for _, rec := range r.records {
		if rec.MessageType == msgType {
			out = append(out, rec)
		}
	}
	return out
}

// fakeModelFactory 路由测试用的工厂
type fakeModelFactory struct {
	model model.BaseChatModel
	err   error
}

func (f *fakeModelFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.model, f.err
}

func (f *fakeModelFactory) Reasoning(ctx context.Context) (model.BaseChatModel, error) {
	return f.model, f.err
}

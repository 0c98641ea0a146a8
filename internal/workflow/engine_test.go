package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-codegen-api/internal/application/codegen"
	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	wfmodel "ai-codegen-api/internal/workflow/model"
	"ai-codegen-api/internal/workflow/port"
)

// scriptedModel 按调用顺序应答，脚本用尽后复用最后一条。
// failAt 按调用序号注入失败。
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	failAt    map[int]error
	calls     [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, input)
	idx := len(m.calls) - 1
	if err, ok := m.failAt[idx]; ok {
		return nil, err
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 {
		return nil, fmt.Errorf("no scripted response")
	}
	return schema.AssistantMessage(m.responses[idx], nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not used in workflow tests")
}

type scriptedFactory struct{ m *scriptedModel }

func (f *scriptedFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.m, nil
}
func (f *scriptedFactory) Reasoning(ctx context.Context) (model.BaseChatModel, error) {
	return f.m, nil
}

type memHistoryRepo struct {
	mu      sync.Mutex
	records []*entity.ChatHistory
}

func (r *memHistoryRepo) Create(ctx context.Context, h *entity.ChatHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, h)
	return nil
}

func (r *memHistoryRepo) ListRecent(ctx context.Context, appID int64, limit int) ([]*entity.ChatHistory, error) {
	return nil, nil
}

func (r *memHistoryRepo) ListByApp(ctx context.Context, appID int64, p repository.Pagination) (*repository.PagedResult[*entity.ChatHistory], error) {
	return repository.NewPagedResult([]*entity.ChatHistory(nil), 0, p), nil
}

func (r *memHistoryRepo) DeleteByApp(ctx context.Context, appID int64) error { return nil }

type stubSearcher struct{ perQuery int }

func (s *stubSearcher) Search(ctx context.Context, query string) ([]port.SearchedImage, error) {
	out := make([]port.SearchedImage, 0, s.perQuery)
	for i := 0; i < s.perQuery; i++ {
		out = append(out, port.SearchedImage{URL: fmt.Sprintf("https://img.test/%s/%d", query, i)})
	}
	return out, nil
}

type memStore struct {
	mu    sync.Mutex
	saves []*wfmodel.Context
}

func (s *memStore) Save(ctx context.Context, wfCtx *wfmodel.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, wfCtx)
	return nil
}

func (s *memStore) Load(ctx context.Context, runID string) (*wfmodel.Context, error) {
	return nil, fmt.Errorf("not found")
}

func newTestEngine(t *testing.T, chatModel *scriptedModel, maxFixRounds int) (*Engine, *memStore) {
	t.Helper()

	cfg := &config.CodeGenConfig{
		WorkspaceDir:        t.TempDir(),
		WindowSize:          20,
		HistoryReplayLimit:  20,
		GuardrailMaxRetries: 1,
		MaxFixRounds:        maxFixRounds,
	}
	factory := &scriptedFactory{m: chatModel}
	repo := &memHistoryRepo{}

	clientFactory := func(ctx context.Context, appID int64, genType entity.CodeGenType) (*codegen.Client, error) {
		return codegen.NewClient(appID, genType, chatModel, codegen.NewWindow(cfg.WindowSize, "sys")), nil
	}
	cache := codegen.NewClientCache(config.ClientCacheConfig{}, clientFactory)
	facade := codegen.NewFacade(cache, codegen.NewSaver(cfg), repo, cfg)

	store := &memStore{}
	engine := NewEngine(codegen.NewRouter(factory), facade, factory, &stubSearcher{perQuery: 2}, store, cfg)
	return engine, store
}

func wfApp() *entity.App {
	return &entity.App{ID: 1, Name: "demo", GenType: entity.CodeGenTypeHTML, UserID: 1}
}

func TestEngineHappyPath(t *testing.T) {
	chatModel := &scriptedModel{responses: []string{
		`{"content_queries": ["coffee shop"], "illustration_queries": [], "need_logo": true, "diagrams": []}`,
		"```html\n<p>v1</p>\n```",
		`{"valid": true}`,
	}}
	engine, store := newTestEngine(t, chatModel, 3)

	var events []wfmodel.Event
	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个咖啡店主页", func(ev wfmodel.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		wfmodel.NodeRoute,
		wfmodel.NodePlanImages,
		wfmodel.NodeGenerate,
		wfmodel.NodeQualityCheck,
		wfmodel.NodeCollectImages,
	}, wfCtx.ExecutedNodes)
	assert.Equal(t, 0, wfCtx.FixRounds)

	require.NotNil(t, wfCtx.Generated)
	assert.Equal(t, []string{"index.html"}, wfCtx.Generated.Files)

	// content 2 张 + logo 2 张
	assert.Len(t, wfCtx.Images, 4)

	// 每个节点一个检查点
	assert.Len(t, store.saves, 5)

	final := events[len(events)-1]
	assert.Equal(t, wfmodel.NodeEnd, final.Node)
	assert.Equal(t, "completed", final.Status)
}

func TestEngineFixLoopUsesCorrectivePrompt(t *testing.T) {
	chatModel := &scriptedModel{responses: []string{
		`{"content_queries": [], "illustration_queries": [], "need_logo": false, "diagrams": []}`,
		"```html\n<p>v1</p>\n```",
		`{"valid": false, "issues": ["按钮没有绑定点击事件"]}`,
		"```html\n<p>v2</p>\n```",
		`{"valid": true}`,
	}}
	engine, _ := newTestEngine(t, chatModel, 3)

	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个页面", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, wfCtx.FixRounds)

	// 第 4 次调用是修复轮生成，提示里带上质检问题
	require.GreaterOrEqual(t, len(chatModel.calls), 4)
	fixCall := chatModel.calls[3]
	userMsg := fixCall[len(fixCall)-1]
	assert.Contains(t, userMsg.Content, "做个页面")
	assert.Contains(t, userMsg.Content, "按钮没有绑定点击事件")
	assert.Contains(t, userMsg.Content, "质检发现以下问题")
}

func TestEngineFixLoopBounded(t *testing.T) {
	// 质检永远不通过
	chatModel := &scriptedModel{responses: []string{
		`{"content_queries": [], "illustration_queries": [], "need_logo": false, "diagrams": []}`,
		"```html\n<p>v1</p>\n```",
		`{"valid": false, "issues": ["永远修不好的问题"]}`,
		"```html\n<p>v2</p>\n```",
		`{"valid": false, "issues": ["永远修不好的问题"]}`,
		"```html\n<p>v3</p>\n```",
		`{"valid": false, "issues": ["永远修不好的问题"]}`,
	}}
	engine, _ := newTestEngine(t, chatModel, 2)

	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个页面", nil)
	require.NoError(t, err)

	// 修复轮次到达上限后放行，不会死循环
	assert.Equal(t, 2, wfCtx.FixRounds)
	assert.NotNil(t, wfCtx.Generated)
}

func TestEngineGenerationFailureStillRunsQualityCheck(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []string{
			`{"content_queries": [], "illustration_queries": [], "need_logo": false, "diagrams": []}`,
		},
		failAt: map[int]error{
			1: fmt.Errorf("model unavailable"),
			2: fmt.Errorf("model unavailable"),
		},
	}
	engine, _ := newTestEngine(t, chatModel, 1)

	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个页面", nil)
	require.NoError(t, err)

	// 生成失败不终止工作流，质检照常执行并给出不通过结论
	assert.Equal(t, []string{
		wfmodel.NodeRoute,
		wfmodel.NodePlanImages,
		wfmodel.NodeGenerate,
		wfmodel.NodeQualityCheck,
		wfmodel.NodeGenerate,
		wfmodel.NodeQualityCheck,
		wfmodel.NodeCollectImages,
	}, wfCtx.ExecutedNodes)

	require.NotNil(t, wfCtx.Generated)
	assert.Empty(t, wfCtx.Generated.Dir)
	require.NotNil(t, wfCtx.Quality)
	assert.False(t, wfCtx.Quality.Valid)
	assert.Contains(t, wfCtx.Quality.Issues, "未找到可检查的代码文件")

	// 没有产物时质检不调用模型：规划 1 次 + 两轮生成各 1 次
	assert.Len(t, chatModel.calls, 3)
}

func TestEngineCorrectivePromptCarriesSuggestions(t *testing.T) {
	chatModel := &scriptedModel{responses: []string{
		`{"content_queries": [], "illustration_queries": [], "need_logo": false, "diagrams": []}`,
		"```html\n<p>v1</p>\n```",
		`{"valid": false, "issues": ["缺少 title 标签"], "suggestions": ["add <title>"]}`,
		"```html\n<p>v2</p>\n```",
		`{"valid": true}`,
	}}
	engine, _ := newTestEngine(t, chatModel, 3)

	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个页面", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, wfCtx.FixRounds)

	// 修复轮提示逐条带上问题和修复建议
	require.GreaterOrEqual(t, len(chatModel.calls), 4)
	fixCall := chatModel.calls[3]
	userMsg := fixCall[len(fixCall)-1]
	assert.Contains(t, userMsg.Content, "缺少 title 标签")
	assert.Contains(t, userMsg.Content, "add <title>")
	assert.Contains(t, userMsg.Content, "修复建议")
}

func TestEngineQualityCheckerFailureFallsBackToValid(t *testing.T) {
	chatModel := &scriptedModel{responses: []string{
		`{"content_queries": [], "illustration_queries": [], "need_logo": false, "diagrams": []}`,
		"```html\n<p>v1</p>\n```",
		"质检器输出了不是 JSON 的内容",
	}}
	engine, _ := newTestEngine(t, chatModel, 3)

	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个页面", nil)
	require.NoError(t, err)

	require.NotNil(t, wfCtx.Quality)
	assert.True(t, wfCtx.Quality.Valid)
	assert.Equal(t, 0, wfCtx.FixRounds)
}

func TestEngineDiagramsRendered(t *testing.T) {
	chatModel := &scriptedModel{responses: []string{
		`{"content_queries": [], "illustration_queries": [], "need_logo": false, "diagrams": ["graph TD; A-->B"]}`,
		"```html\n<p>v1</p>\n```",
		`{"valid": true}`,
	}}
	engine, _ := newTestEngine(t, chatModel, 3)

	wfCtx, err := engine.Run(context.Background(), wfApp(), 1, "做个架构图页面", nil)
	require.NoError(t, err)

	require.Len(t, wfCtx.Images, 1)
	assert.Equal(t, wfmodel.ImageKindDiagram, wfCtx.Images[0].Kind)
	assert.True(t, strings.HasPrefix(wfCtx.Images[0].URL, "https://mermaid.ink/img/"))
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-codegen-api/internal/application/codegen"
	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	"ai-codegen-api/internal/infrastructure/messaging"
	apperrors "ai-codegen-api/pkg/errors"
)

type fakeAppRepo struct {
	mu     sync.Mutex
	apps   map[int64]*entity.App
	nextID int64
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{apps: make(map[int64]*entity.App), nextID: 1}
}

func (r *fakeAppRepo) Create(ctx context.Context, app *entity.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app.ID = r.nextID
	r.nextID++
	app.CreatedAt = time.Now()
	app.UpdatedAt = time.Now()
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *fakeAppRepo) GetByID(ctx context.Context, id int64) (*entity.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, apperrors.ErrAppNotFound
	}
	cp := *app
	return &cp, nil
}

func (r *fakeAppRepo) Update(ctx context.Context, app *entity.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; !ok {
		return apperrors.ErrAppNotFound
	}
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *fakeAppRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, id)
	return nil
}

func (r *fakeAppRepo) ListByUser(ctx context.Context, userID int64, p repository.Pagination) (*repository.PagedResult[*entity.App], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.App
	for _, a := range r.apps {
		if a.UserID == userID {
			cp := *a
			items = append(items, &cp)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

type fakeHistoryRepo struct {
	mu          sync.Mutex
	records     []*entity.ChatHistory
	deletedApps []int64
}

func (r *fakeHistoryRepo) Create(ctx context.Context, h *entity.ChatHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, h)
	return nil
}

func (r *fakeHistoryRepo) ListRecent(ctx context.Context, appID int64, limit int) ([]*entity.ChatHistory, error) {
	return nil, nil
}

func (r *fakeHistoryRepo) ListByApp(ctx context.Context, appID int64, p repository.Pagination) (*repository.PagedResult[*entity.ChatHistory], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.ChatHistory
	for _, rec := range r.records {
		if rec.AppID == appID {
			items = append(items, rec)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *fakeHistoryRepo) DeleteByApp(ctx context.Context, appID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedApps = append(r.deletedApps, appID)
	return nil
}

// fakeInfoCache 直通加载器并记录失效调用
type fakeInfoCache struct {
	mu          sync.Mutex
	invalidated []int64
}

func (c *fakeInfoCache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	v, err := loader()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (c *fakeInfoCache) InvalidateApp(ctx context.Context, appID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, appID)
	return nil
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []*messaging.ScreenshotJobMessage
}

func (e *fakeEnqueuer) PublishScreenshotJob(ctx context.Context, job *messaging.ScreenshotJobMessage) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, job)
	return "1-0", nil
}

// routeModel 路由分类固定应答
type routeModel struct {
	label string
}

func (m *routeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.label, nil), nil
}

func (m *routeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not used")
}

type routeFactory struct{ m *routeModel }

func (f *routeFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.m, nil
}
func (f *routeFactory) Reasoning(ctx context.Context) (model.BaseChatModel, error) {
	return f.m, nil
}

// fakeBuilder 记录构建调用并返回固定的产物目录
type fakeBuilder struct {
	mu      sync.Mutex
	sources []string
	out     string
	err     error
}

func (b *fakeBuilder) Build(ctx context.Context, sourceDir string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, sourceDir)
	if b.err != nil {
		return "", b.err
	}
	if b.out != "" {
		return b.out, nil
	}
	return sourceDir, nil
}

type serviceFixture struct {
	svc       *Service
	apps      *fakeAppRepo
	histories *fakeHistoryRepo
	cache     *fakeInfoCache
	enqueuer  *fakeEnqueuer
	builder   *fakeBuilder
	saver     *codegen.Saver
	cfg       *config.CodeGenConfig
}

func newServiceFixture(t *testing.T, routeLabel string) *serviceFixture {
	t.Helper()

	cfg := &config.CodeGenConfig{
		WorkspaceDir: t.TempDir(),
		DeployDir:    t.TempDir(),
		DeployHost:   "http://apps.test",
	}
	apps := newFakeAppRepo()
	histories := &fakeHistoryRepo{}
	cache := &fakeInfoCache{}
	enqueuer := &fakeEnqueuer{}
	builder := &fakeBuilder{}
	saver := codegen.NewSaver(cfg)

	clientFactory := func(ctx context.Context, appID int64, genType entity.CodeGenType) (*codegen.Client, error) {
		return nil, fmt.Errorf("not used in app service tests")
	}
	clients := codegen.NewClientCache(config.ClientCacheConfig{}, clientFactory)

	svc := NewService(
		apps, histories,
		codegen.NewRouter(&routeFactory{m: &routeModel{label: routeLabel}}),
		clients, saver, codegen.NewDeployer(cfg),
		builder, cache, enqueuer,
	)
	return &serviceFixture{
		svc: svc, apps: apps, histories: histories,
		cache: cache, enqueuer: enqueuer, builder: builder,
		saver: saver, cfg: cfg,
	}
}

func TestCreateAppRoutesGenType(t *testing.T) {
	f := newServiceFixture(t, "multi_file")

	app, err := f.svc.CreateApp(context.Background(), 1, "博客", "做一个带样式和脚本的博客")
	require.NoError(t, err)

	assert.Equal(t, entity.CodeGenTypeMultiFile, app.GenType)
	assert.NotEmpty(t, app.DeployKey)
	assert.NotZero(t, app.ID)
}

func TestCreateAppRejectsEmptyInput(t *testing.T) {
	f := newServiceFixture(t, "html")

	_, err := f.svc.CreateApp(context.Background(), 1, "", "需求")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = f.svc.CreateApp(context.Background(), 1, "名字", "   ")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
}

func TestGetAppNotFound(t *testing.T) {
	f := newServiceFixture(t, "html")

	_, err := f.svc.GetApp(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAppNotFound, apperrors.AsAppError(err).Code)
}

func TestDeployPublishesScreenshotJob(t *testing.T) {
	f := newServiceFixture(t, "html")

	app, err := f.svc.CreateApp(context.Background(), 1, "主页", "做个主页")
	require.NoError(t, err)

	// 预置生成产物
	dir := f.saver.Dir(app.ID, app.GenType)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>hi</p>"), 0o644))

	url, err := f.svc.Deploy(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://apps.test/"+app.DeployKey+"/", url)

	// 部署目录有产物副本
	deployed, err := os.ReadFile(filepath.Join(f.cfg.DeployDir, app.DeployKey, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(deployed))

	// 部署时间落库
	stored, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeployedAt)

	// 截图任务已投递
	require.Len(t, f.enqueuer.jobs, 1)
	assert.Equal(t, app.ID, f.enqueuer.jobs[0].AppID)
	assert.Equal(t, url, f.enqueuer.jobs[0].DeployURL)

	// html 模式不走构建
	assert.Empty(t, f.builder.sources)
}

func TestDeployProjectRunsBuilder(t *testing.T) {
	f := newServiceFixture(t, "project")

	app, err := f.svc.CreateApp(context.Background(), 1, "后台", "做个完整的管理后台项目")
	require.NoError(t, err)
	require.Equal(t, entity.CodeGenTypeProject, app.GenType)

	sourceDir := f.saver.Dir(app.ID, app.GenType)
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	// 构建器产出独立的 dist 目录
	dist := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(dist, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<p>built</p>"), 0o644))
	f.builder.out = dist

	url, err := f.svc.Deploy(context.Background(), app.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{sourceDir}, f.builder.sources)
	deployed, err := os.ReadFile(filepath.Join(f.cfg.DeployDir, app.DeployKey, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>built</p>", string(deployed))
	assert.Contains(t, url, app.DeployKey)
}

func TestDeployProjectBuildFailure(t *testing.T) {
	f := newServiceFixture(t, "project")

	app, err := f.svc.CreateApp(context.Background(), 1, "后台", "做个完整的管理后台项目")
	require.NoError(t, err)

	sourceDir := f.saver.Dir(app.ID, app.GenType)
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	f.builder.err = apperrors.New(apperrors.CodeBuildFailed, "npm run build failed")

	_, err = f.svc.Deploy(context.Background(), app.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBuildFailed, apperrors.AsAppError(err).Code)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestDeployWithoutArtifact(t *testing.T) {
	f := newServiceFixture(t, "html")

	app, err := f.svc.CreateApp(context.Background(), 1, "主页", "做个主页")
	require.NoError(t, err)

	_, err = f.svc.Deploy(context.Background(), app.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeArtifactMissing, apperrors.AsAppError(err).Code)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestDeleteAppCleansUp(t *testing.T) {
	f := newServiceFixture(t, "html")

	app, err := f.svc.CreateApp(context.Background(), 1, "主页", "做个主页")
	require.NoError(t, err)

	dir := f.saver.Dir(app.ID, app.GenType)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.NoError(t, f.svc.DeleteApp(context.Background(), app.ID))

	_, err = f.apps.GetByID(context.Background(), app.ID)
	require.Error(t, err)
	assert.Contains(t, f.histories.deletedApps, app.ID)
	assert.Contains(t, f.cache.invalidated, app.ID)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdateCoverInvalidatesCache(t *testing.T) {
	f := newServiceFixture(t, "html")

	app, err := f.svc.CreateApp(context.Background(), 1, "主页", "做个主页")
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateCover(context.Background(), app.ID, "https://img.test/cover.png"))

	stored, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/cover.png", stored.CoverURL)
	assert.Contains(t, f.cache.invalidated, app.ID)
}

// Package app 实现应用的管理编排：创建、查询、删除、部署和对话历史。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-codegen-api/internal/application/codegen"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/domain/repository"
	"ai-codegen-api/internal/infrastructure/messaging"
	apperrors "ai-codegen-api/pkg/errors"
	"ai-codegen-api/pkg/logger"
)

var tracer = otel.Tracer("app")

// 应用详情缓存的 TTL，写路径全部主动失效，短一点只为兜底
const appInfoCacheTTL = 10 * time.Minute

// InfoCache 应用详情的旁路缓存，写路径负责失效
type InfoCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	InvalidateApp(ctx context.Context, appID int64) error
}

// ScreenshotEnqueuer 部署完成后投递封面截图任务
type ScreenshotEnqueuer interface {
	PublishScreenshotJob(ctx context.Context, job *messaging.ScreenshotJobMessage) (string, error)
}

// ProjectBuilder 工程模式部署前的构建步骤，返回可部署的产物目录
type ProjectBuilder interface {
	Build(ctx context.Context, sourceDir string) (string, error)
}

// Service 应用管理服务
type Service struct {
	apps      repository.AppRepository
	histories repository.ChatHistoryRepository
	router    *codegen.Router
	clients   *codegen.ClientCache
	saver     *codegen.Saver
	deployer  *codegen.Deployer
	builder   ProjectBuilder
	cache     InfoCache
	enqueuer  ScreenshotEnqueuer
}

// NewService 创建应用管理服务。builder、cache 和 enqueuer 允许为 nil，
// 对应功能降级为跳过/直查。
func NewService(
	apps repository.AppRepository,
	histories repository.ChatHistoryRepository,
	router *codegen.Router,
	clients *codegen.ClientCache,
	saver *codegen.Saver,
	deployer *codegen.Deployer,
	builder ProjectBuilder,
	cache InfoCache,
	enqueuer ScreenshotEnqueuer,
) *Service {
	return &Service{
		apps:      apps,
		histories: histories,
		router:    router,
		clients:   clients,
		saver:     saver,
		deployer:  deployer,
		builder:   builder,
		cache:     cache,
		enqueuer:  enqueuer,
	}
}

// CreateApp 创建应用。生成类型在创建时由路由器根据初始需求分类确定，
// 后续所有生成都沿用这个类型。
func (s *Service) CreateApp(ctx context.Context, userID int64, name, initPrompt string) (*entity.App, error) {
	ctx, span := tracer.Start(ctx, "app.CreateApp",
		trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "app name is required")
	}
	if strings.TrimSpace(initPrompt) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "init prompt is required")
	}

	genType := s.router.Route(ctx, initPrompt)

	app := &entity.App{
		Name:       name,
		InitPrompt: initPrompt,
		GenType:    genType,
		DeployKey:  newDeployKey(),
		UserID:     userID,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create app")
	}

	logger.FromContext(ctx).Info("app created",
		"app_id", app.ID, "user_id", userID, "gen_type", genType)
	return app, nil
}

// GetApp 查询应用详情，走旁路缓存
func (s *Service) GetApp(ctx context.Context, appID int64) (*entity.App, error) {
	ctx, span := tracer.Start(ctx, "app.GetApp",
		trace.WithAttributes(attribute.Int64("app_id", appID)))
	defer span.End()

	if s.cache == nil {
		return s.apps.GetByID(ctx, appID)
	}

	key := appInfoKey(appID)
	data, err := s.cache.GetOrLoadSafe(ctx, key, appInfoCacheTTL, func() (interface{}, error) {
		return s.apps.GetByID(ctx, appID)
	})
	if err != nil {
		return nil, err
	}

	var app entity.App
	if err := json.Unmarshal(data, &app); err != nil {
		span.RecordError(err)
		// 缓存内容损坏时直查数据库
		return s.apps.GetByID(ctx, appID)
	}
	return &app, nil
}

// ListApps 分页查询用户的应用列表
func (s *Service) ListApps(ctx context.Context, userID int64, pagination repository.Pagination) (*repository.PagedResult[*entity.App], error) {
	ctx, span := tracer.Start(ctx, "app.ListApps",
		trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	return s.apps.ListByUser(ctx, userID, pagination)
}

// ListHistory 分页查询应用的对话历史，按时间正序
func (s *Service) ListHistory(ctx context.Context, appID int64, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatHistory], error) {
	ctx, span := tracer.Start(ctx, "app.ListHistory",
		trace.WithAttributes(attribute.Int64("app_id", appID)))
	defer span.End()

	if _, err := s.GetApp(ctx, appID); err != nil {
		return nil, err
	}
	return s.histories.ListByApp(ctx, appID, pagination)
}

// DeleteApp 删除应用及其全部关联资源：
// 对话历史、客户端缓存、Redis 缓存和工作目录产物。
func (s *Service) DeleteApp(ctx context.Context, appID int64) error {
	ctx, span := tracer.Start(ctx, "app.DeleteApp",
		trace.WithAttributes(attribute.Int64("app_id", appID)))
	defer span.End()

	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return err
	}

	if err := s.apps.Delete(ctx, appID); err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete app")
	}

	log := logger.FromContext(ctx)
	if err := s.histories.DeleteByApp(ctx, appID); err != nil {
		log.Warn("failed to delete chat history", "app_id", appID, "error", err)
	}
	if s.clients != nil {
		s.clients.Invalidate(appID)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateApp(ctx, appID); err != nil {
			log.Warn("failed to invalidate app cache", "app_id", appID, "error", err)
		}
	}
	if s.saver != nil {
		for _, gt := range []entity.CodeGenType{entity.CodeGenTypeHTML, entity.CodeGenTypeMultiFile, entity.CodeGenTypeProject} {
			if err := os.RemoveAll(s.saver.Dir(appID, gt)); err != nil {
				log.Warn("failed to remove workspace dir", "app_id", appID, "gen_type", gt, "error", err)
			}
		}
	}

	log.Info("app deleted", "app_id", appID, "user_id", app.UserID)
	return nil
}

// Deploy 把应用的最新产物发布到部署目录，返回访问地址。
// 成功后异步投递封面截图任务。
func (s *Service) Deploy(ctx context.Context, appID int64) (string, error) {
	ctx, span := tracer.Start(ctx, "app.Deploy",
		trace.WithAttributes(attribute.Int64("app_id", appID)))
	defer span.End()

	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return "", err
	}
	if !app.GenType.Valid() {
		return "", apperrors.ErrUnsupportedGenType
	}
	if app.DeployKey == "" {
		app.DeployKey = newDeployKey()
	}

	sourceDir := s.saver.Dir(app.ID, app.GenType)

	// 工程模式先构建，部署的是构建产物
	if app.GenType == entity.CodeGenTypeProject && s.builder != nil {
		built, err := s.builder.Build(ctx, sourceDir)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		sourceDir = built
	}

	url, err := s.deployer.Deploy(ctx, sourceDir, app.DeployKey)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	now := time.Now()
	app.DeployedAt = &now
	if err := s.apps.Update(ctx, app); err != nil {
		span.RecordError(err)
		return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to record deployment")
	}
	s.invalidate(ctx, appID)

	if s.enqueuer != nil {
		job := &messaging.ScreenshotJobMessage{
			AppID:     app.ID,
			DeployURL: url,
			DeployKey: app.DeployKey,
		}
		if _, err := s.enqueuer.PublishScreenshotJob(ctx, job); err != nil {
			// 截图只影响封面展示，投递失败不影响部署结果
			logger.FromContext(ctx).Warn("failed to enqueue screenshot job",
				"app_id", app.ID, "error", err)
		}
	}

	logger.FromContext(ctx).Info("app deploy finished", "app_id", app.ID, "url", url)
	return url, nil
}

// UpdateCover 更新应用封面，截图任务完成后回写
func (s *Service) UpdateCover(ctx context.Context, appID int64, coverURL string) error {
	ctx, span := tracer.Start(ctx, "app.UpdateCover",
		trace.WithAttributes(attribute.Int64("app_id", appID)))
	defer span.End()

	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return err
	}
	app.CoverURL = coverURL
	if err := s.apps.Update(ctx, app); err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update cover")
	}
	s.invalidate(ctx, appID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, appID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateApp(ctx, appID); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate app cache", "app_id", appID, "error", err)
	}
}

func appInfoKey(appID int64) string {
	return fmt.Sprintf("app:%d:info", appID)
}

// newDeployKey 生成部署标识，用在访问 URL 里所以保持短小
func newDeployKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

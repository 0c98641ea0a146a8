// Package wire 提供依赖装配。
// 依赖图全部手工显式构建，构造顺序即初始化顺序，出错即时返回。
package wire

import (
	"context"
	"fmt"

	appsvc "ai-codegen-api/internal/application/app"
	"ai-codegen-api/internal/application/codegen"
	screenshotapp "ai-codegen-api/internal/application/screenshot"
	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/infrastructure/build"
	"ai-codegen-api/internal/infrastructure/imagesearch"
	"ai-codegen-api/internal/infrastructure/llm"
	"ai-codegen-api/internal/infrastructure/messaging"
	"ai-codegen-api/internal/infrastructure/persistence/postgres"
	"ai-codegen-api/internal/infrastructure/persistence/redis"
	"ai-codegen-api/internal/infrastructure/screenshot"
	"ai-codegen-api/internal/interfaces/http/handler"
	httprouter "ai-codegen-api/internal/interfaces/http/router"
	"ai-codegen-api/internal/workflow"
	"ai-codegen-api/internal/workflow/port"
)

// App API 网关的依赖容器
type App struct {
	Router      *httprouter.Router
	ClientCache *codegen.ClientCache
	PG          *postgres.Client
	Redis       *redis.Client
}

// Worker 截图 Worker 的依赖容器
type Worker struct {
	Consumer *messaging.Consumer
	PG       *postgres.Client
	Redis    *redis.Client
}

// dataLayer API 网关和 Worker 共用的数据层
type dataLayer struct {
	pg          *postgres.Client
	redisClient *redis.Client
	cache       *redis.Cache
	apps        *postgres.AppRepository
	histories   *postgres.ChatHistoryRepository
}

func newDataLayer(cfg *config.Config) (*dataLayer, func(), error) {
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	if err := pg.DB().AutoMigrate(&entity.App{}, &entity.ChatHistory{}); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	cleanup := func() {
		_ = redisClient.Close()
		_ = pg.Close()
	}

	return &dataLayer{
		pg:          pg,
		redisClient: redisClient,
		cache:       redis.NewCache(redisClient),
		apps:        postgres.NewAppRepository(pg),
		histories:   postgres.NewChatHistoryRepository(pg),
	}, cleanup, nil
}

// InitializeApp 装配 API 网关的全部依赖
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	data, cleanupData, err := newDataLayer(cfg)
	if err != nil {
		return nil, nil, err
	}

	// LLM 与代码生成
	llmFactory := llm.NewEinoFactory(cfg)
	clientFactory := codegen.NewClientFactory(llmFactory, data.histories, &cfg.CodeGen)
	clientCache := codegen.NewClientCache(cfg.CodeGen.Cache, clientFactory)
	clientCache.StartSweeper(ctx)

	saver := codegen.NewSaver(&cfg.CodeGen)
	deployer := codegen.NewDeployer(&cfg.CodeGen)
	genRouter := codegen.NewRouter(llmFactory)
	facade := codegen.NewFacade(clientCache, saver, data.histories, &cfg.CodeGen)

	// 消息与应用服务
	producer := messaging.NewProducer(data.redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	appService := appsvc.NewService(
		data.apps, data.histories, genRouter, clientCache,
		saver, deployer, build.NewNpmBuilder(&cfg.CodeGen), data.cache, producer,
	)

	// 工作流
	images := &imageSearchAdapter{client: imagesearch.NewClient(&cfg.ImageSearch)}
	store := redis.NewWorkflowStore(data.cache)
	engine := workflow.NewEngine(genRouter, facade, llmFactory, images, store, &cfg.CodeGen)

	// HTTP 层
	handlers := httprouter.Handlers{
		Health:   handler.NewHealthHandler(data.pg, data.redisClient),
		App:      handler.NewAppHandler(appService),
		Generate: handler.NewGenerateHandler(appService, facade),
		Workflow: handler.NewWorkflowHandler(appService, engine),
	}
	r := httprouter.New(cfg, handlers, data.redisClient.Redis())

	cleanup := func() {
		clientCache.Stop()
		cleanupData()
	}

	return &App{
		Router:      r,
		ClientCache: clientCache,
		PG:          data.pg,
		Redis:       data.redisClient,
	}, cleanup, nil
}

// InitializeWorker 装配截图 Worker 的全部依赖
func InitializeWorker(ctx context.Context, cfg *config.Config, consumerName string) (*Worker, func(), error) {
	data, cleanupData, err := newDataLayer(cfg)
	if err != nil {
		return nil, nil, err
	}

	// Worker 只回写封面，不需要生成相关的依赖
	appService := appsvc.NewService(
		data.apps, data.histories, nil, nil,
		nil, nil, nil, data.cache, nil,
	)

	renderer := screenshot.NewRenderer(&cfg.Screenshot)
	worker := screenshotapp.NewWorker(renderer, appService)

	consumer := messaging.NewConsumer(data.redisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamScreenshot,
		Group:        messaging.ConsumerGroupScreenshot,
		ConsumerName: consumerName,
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
	})
	consumer.RegisterHandler("app_screenshot", worker.HandleScreenshotJob)

	cleanup := func() {
		consumer.Stop()
		cleanupData()
	}

	return &Worker{
		Consumer: consumer,
		PG:       data.pg,
		Redis:    data.redisClient,
	}, cleanup, nil
}

// imageSearchAdapter 把图片搜索客户端适配到工作流端口
type imageSearchAdapter struct {
	client *imagesearch.Client
}

func (a *imageSearchAdapter) Search(ctx context.Context, query string) ([]port.SearchedImage, error) {
	found, err := a.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]port.SearchedImage, 0, len(found))
	for _, img := range found {
		out = append(out, port.SearchedImage{
			URL:         img.URL,
			Description: img.Description,
		})
	}
	return out, nil
}

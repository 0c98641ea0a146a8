// Package workflow 实现多节点的应用生成工作流：
// 路由 → 配图规划 → 生成 → 质检修复循环 → 素材收集。
package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ai-codegen-api/internal/application/codegen"
	"ai-codegen-api/internal/application/codegen/prompt"
	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/internal/workflow/model"
	"ai-codegen-api/internal/workflow/node"
	"ai-codegen-api/internal/workflow/port"
	"ai-codegen-api/pkg/logger"
	"ai-codegen-api/pkg/metrics"
)

var tracer = otel.Tracer("workflow")

// mermaidInkBase 图表渲染服务，接受 base64url 编码的图表描述
const mermaidInkBase = "https://mermaid.ink/img/"

// EmitFunc 节点事件回调，用于向调用方推送执行进度
type EmitFunc func(event model.Event)

// Engine 工作流引擎。节点串行执行，每个节点完成后保存一次
// 上下文检查点并向调用方推送事件。
type Engine struct {
	router   *codegen.Router
	facade   *codegen.Facade
	models   port.ChatModelFactory
	images   port.ImageSearcher
	store    port.ContextStore
	registry *prompt.Registry

	maxFixRounds int
}

// NewEngine 创建工作流引擎
func NewEngine(
	router *codegen.Router,
	facade *codegen.Facade,
	models port.ChatModelFactory,
	images port.ImageSearcher,
	store port.ContextStore,
	cfg *config.CodeGenConfig,
) *Engine {
	maxFixRounds := cfg.MaxFixRounds
	if maxFixRounds <= 0 {
		maxFixRounds = 3
	}
	return &Engine{
		router:       router,
		facade:       facade,
		models:       models,
		images:       images,
		store:        store,
		registry:     prompt.NewRegistry(),
		maxFixRounds: maxFixRounds,
	}
}

// Run 执行一次完整的工作流。emit 可以为 nil。
func (e *Engine) Run(ctx context.Context, app *entity.App, userID int64, userPrompt string, emit EmitFunc) (*model.Context, error) {
	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(attribute.Int64("app_id", app.ID)))
	defer span.End()

	wfCtx := model.NewContext(uuid.NewString(), app.ID, userID, userPrompt)
	if emit == nil {
		emit = func(model.Event) {}
	}

	err := e.run(ctx, app, wfCtx, emit)
	if err != nil {
		span.RecordError(err)
		metrics.WorkflowRunsTotal.WithLabelValues("error").Inc()
		emit(model.Event{Node: wfCtx.CurrentNode, Status: "failed", Error: err.Error(), Context: wfCtx})
		return wfCtx, err
	}

	metrics.WorkflowRunsTotal.WithLabelValues("success").Inc()
	metrics.WorkflowFixRounds.Observe(float64(wfCtx.FixRounds))
	emit(model.Event{Node: model.NodeEnd, Status: "completed", Context: wfCtx})
	return wfCtx, nil
}

func (e *Engine) run(ctx context.Context, app *entity.App, wfCtx *model.Context, emit EmitFunc) error {
	// 路由
	if err := e.step(ctx, wfCtx, emit, model.NodeRoute, func() error {
		return e.route(ctx, app, wfCtx)
	}); err != nil {
		return err
	}

	// 配图规划
	if err := e.step(ctx, wfCtx, emit, model.NodePlanImages, func() error {
		e.planImages(ctx, wfCtx)
		return nil
	}); err != nil {
		return err
	}

	// 生成 + 质检修复循环
	for {
		if err := e.step(ctx, wfCtx, emit, model.NodeGenerate, func() error {
			e.generate(ctx, app, wfCtx)
			return nil
		}); err != nil {
			return err
		}

		if err := e.step(ctx, wfCtx, emit, model.NodeQualityCheck, func() error {
			e.qualityCheck(ctx, wfCtx)
			return nil
		}); err != nil {
			return err
		}

		if wfCtx.Quality != nil && wfCtx.Quality.Valid {
			break
		}
		if wfCtx.FixRounds >= e.maxFixRounds {
			logger.FromContext(ctx).Warn("quality issues remain after max fix rounds",
				"app_id", wfCtx.AppID, "fix_rounds", wfCtx.FixRounds)
			break
		}
		wfCtx.FixRounds++
	}

	// 素材收集
	if err := e.step(ctx, wfCtx, emit, model.NodeCollectImages, func() error {
		e.collectImages(ctx, wfCtx)
		return nil
	}); err != nil {
		return err
	}

	return nil
}

// step 执行单个节点：推送开始事件、执行、保存检查点、推送结束事件
func (e *Engine) step(ctx context.Context, wfCtx *model.Context, emit EmitFunc, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "workflow."+name)
	defer span.End()

	wfCtx.Enter(name)
	emit(model.Event{Node: name, Status: "running"})

	if err := fn(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("node %s: %w", name, err)
	}

	e.checkpoint(ctx, wfCtx)
	emit(model.Event{Node: name, Status: "completed", Context: wfCtx})
	return nil
}

// checkpoint 保存上下文检查点，失败不阻塞工作流
func (e *Engine) checkpoint(ctx context.Context, wfCtx *model.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, wfCtx); err != nil {
		logger.FromContext(ctx).Warn("failed to save workflow checkpoint",
			"run_id", wfCtx.RunID, "node", wfCtx.CurrentNode, "error", err)
	}
}

func (e *Engine) route(ctx context.Context, app *entity.App, wfCtx *model.Context) error {
	if app.GenType.Valid() {
		// 应用已绑定生成类型，路由只在首次生成时发生
		wfCtx.GenType = app.GenType
		return nil
	}
	wfCtx.GenType = e.router.Route(ctx, wfCtx.OriginPrompt)
	app.GenType = wfCtx.GenType
	return nil
}

// planImages 配图规划。规划失败不致命，降级为空规划
func (e *Engine) planImages(ctx context.Context, wfCtx *model.Context) {
	plan, err := e.planImagesOnce(ctx, wfCtx.OriginPrompt)
	if err != nil {
		logger.FromContext(ctx).Warn("image planning failed, proceeding without images", "error", err)
		plan = &model.ImagePlan{}
	}
	wfCtx.ImagePlan = plan
}

func (e *Engine) planImagesOnce(ctx context.Context, userPrompt string) (*model.ImagePlan, error) {
	tpl, err := e.registry.ChatTemplate(prompt.PromptImagePlanV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{"user_prompt": userPrompt})
	if err != nil {
		return nil, err
	}

	chatModel, err := e.models.Default(ctx)
	if err != nil {
		return nil, err
	}
	out, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	var plan model.ImagePlan
	if err := json.Unmarshal([]byte(node.ExtractJSONObject(out.Content)), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse image plan: %w", err)
	}
	return &plan, nil
}

// generate 生成代码。生成失败不终止工作流：记录一个空产物继续走质检，
// 由质检给出不通过的结论并进入修复循环。
func (e *Engine) generate(ctx context.Context, app *entity.App, wfCtx *model.Context) {
	genPrompt := wfCtx.OriginPrompt
	if wfCtx.FixRounds > 0 && wfCtx.Quality != nil && !wfCtx.Quality.Valid {
		genPrompt = correctivePrompt(wfCtx.OriginPrompt, wfCtx.Quality)
	}

	result, err := e.facade.GenerateAndSave(ctx, app, wfCtx.UserID, genPrompt)
	if err != nil {
		logger.FromContext(ctx).Warn("generation failed, continuing to quality check",
			"app_id", wfCtx.AppID, "error", err)
		wfCtx.Generated = &model.GenerateResult{GenType: app.GenType}
		wfCtx.Quality = nil
		return
	}

	files := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, f.Path)
	}
	wfCtx.Generated = &model.GenerateResult{
		GenType: result.GenType,
		Dir:     result.Dir,
		Files:   files,
		Code:    flattenFiles(result),
	}
	wfCtx.Quality = nil
}

// correctivePrompt 质检未通过时的修复提示，逐条带上问题和修复建议
func correctivePrompt(originPrompt string, quality *model.QualityResult) string {
	var sb strings.Builder
	sb.WriteString(originPrompt)
	sb.WriteString("\n\n上一版代码质检发现以下问题，请修复全部问题后重新输出完整代码：\n")
	for i, issue := range quality.Issues {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, issue)
	}
	if len(quality.Suggestions) > 0 {
		sb.WriteString("\n修复建议：\n")
		for i, s := range quality.Suggestions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
		}
	}
	return sb.String()
}

// flattenFiles 把产物拼成一段文本给质检节点
func flattenFiles(result *codegen.SaveResult) string {
	var sb strings.Builder
	for _, f := range result.Files {
		fmt.Fprintf(&sb, "=== %s ===\n%s\n\n", f.Path, f.Content)
	}
	return sb.String()
}

// noCheckableCodeIssue 没有产物可检查时质检给出的固定结论
const noCheckableCodeIssue = "未找到可检查的代码文件"

// qualityCheck 质检。没有产物直接判不通过，不调用模型；
// 质检器本身出错时降级为通过并打点：质检是锦上添花，
// 不能因为它把已经生成好的代码拦下来。
func (e *Engine) qualityCheck(ctx context.Context, wfCtx *model.Context) {
	code := ""
	if wfCtx.Generated != nil {
		code = wfCtx.Generated.Code
	}
	if strings.TrimSpace(code) == "" {
		wfCtx.Quality = &model.QualityResult{
			Valid:  false,
			Issues: []string{noCheckableCodeIssue},
		}
		return
	}

	result, err := e.qualityCheckOnce(ctx, code)
	if err != nil {
		logger.FromContext(ctx).Warn("quality check failed, treating as valid", "error", err)
		metrics.QualityCheckFallbackTotal.Inc()
		result = &model.QualityResult{Valid: true}
	}
	wfCtx.Quality = result
}

func (e *Engine) qualityCheckOnce(ctx context.Context, code string) (*model.QualityResult, error) {
	tpl, err := e.registry.ChatTemplate(prompt.PromptQualityCheckV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{"code": code})
	if err != nil {
		return nil, err
	}

	chatModel, err := e.models.Default(ctx)
	if err != nil {
		return nil, err
	}
	out, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	var result model.QualityResult
	if err := json.Unmarshal([]byte(node.ExtractJSONObject(out.Content)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse quality result: %w", err)
	}
	return &result, nil
}

// collectImages 按规划收集图片素材。四类素材并行收集，
// 单组失败只损失自己那一组，不影响其它
func (e *Engine) collectImages(ctx context.Context, wfCtx *model.Context) {
	if wfCtx.ImagePlan == nil || wfCtx.ImagePlan.Empty() {
		return
	}
	plan := wfCtx.ImagePlan

	var content, illustrations, logos, diagrams []model.ImageResource
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, q := range plan.ContentQueries {
			content = append(content, e.search(gctx, q, model.ImageKindContent)...)
		}
		return nil
	})
	g.Go(func() error {
		for _, q := range plan.IllustrationQueries {
			illustrations = append(illustrations, e.search(gctx, q, model.ImageKindIllustration)...)
		}
		return nil
	})
	g.Go(func() error {
		if plan.NeedLogo {
			logos = e.search(gctx, "logo design", model.ImageKindLogo)
		}
		return nil
	})
	g.Go(func() error {
		for _, diagram := range plan.Diagrams {
			encoded := base64.URLEncoding.EncodeToString([]byte(diagram))
			diagrams = append(diagrams, model.ImageResource{
				Kind:        model.ImageKindDiagram,
				URL:         mermaidInkBase + encoded,
				Description: diagram,
			})
			metrics.ImagesCollectedTotal.WithLabelValues(string(model.ImageKindDiagram)).Inc()
		}
		return nil
	})
	_ = g.Wait()

	wfCtx.Images = append(wfCtx.Images, content...)
	wfCtx.Images = append(wfCtx.Images, illustrations...)
	wfCtx.Images = append(wfCtx.Images, logos...)
	wfCtx.Images = append(wfCtx.Images, diagrams...)
}

func (e *Engine) search(ctx context.Context, query string, kind model.ImageKind) []model.ImageResource {
	if e.images == nil {
		return nil
	}
	found, err := e.images.Search(ctx, query)
	if err != nil {
		logger.FromContext(ctx).Warn("image search failed", "query", query, "error", err)
		return nil
	}

	out := make([]model.ImageResource, 0, len(found))
	for _, img := range found {
		out = append(out, model.ImageResource{
			Kind:        kind,
			URL:         img.URL,
			Description: img.Description,
		})
		metrics.ImagesCollectedTotal.WithLabelValues(string(kind)).Inc()
	}
	return out
}

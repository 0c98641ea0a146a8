package codegen

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"ai-codegen-api/internal/application/codegen/prompt"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/pkg/logger"
	"ai-codegen-api/pkg/metrics"
)

// ModelFactory 定义编排层对 LLM 工厂的最小依赖
type ModelFactory interface {
	Default(ctx context.Context) (model.BaseChatModel, error)
	Reasoning(ctx context.Context) (model.BaseChatModel, error)
}

// Router 根据用户需求选择代码生成类型。
// 分类失败不阻塞生成：任何错误都降级为 html 并打点。
type Router struct {
	factory  ModelFactory
	registry *prompt.Registry
}

// NewRouter 创建路由器
func NewRouter(factory ModelFactory) *Router {
	return &Router{
		factory:  factory,
		registry: prompt.NewRegistry(),
	}
}

// Route 对用户需求分类，返回生成类型。失败时回退为 html。
func (r *Router) Route(ctx context.Context, userPrompt string) entity.CodeGenType {
	genType, err := r.classify(ctx, userPrompt)
	if err != nil {
		logger.FromContext(ctx).Warn("routing failed, falling back to html", "error", err)
		metrics.RouterFallbackTotal.Inc()
		return entity.CodeGenTypeHTML
	}
	return genType
}

func (r *Router) classify(ctx context.Context, userPrompt string) (entity.CodeGenType, error) {
	tpl, err := r.registry.ChatTemplate(prompt.PromptRouterV1)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"user_prompt": strings.TrimSpace(userPrompt),
	})
	if err != nil {
		return "", err
	}

	chatModel, err := r.factory.Default(ctx)
	if err != nil {
		return "", err
	}
	out, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}

	return parseRouteLabel(out.Content)
}

// parseRouteLabel 从模型输出中解析分类标签。
// 模型偶尔会带引号或解释文字，按行扫描找第一个合法标签。
func parseRouteLabel(content string) (entity.CodeGenType, error) {
	for _, line := range strings.Split(content, "\n") {
		token := strings.Trim(strings.TrimSpace(line), "`\"'。.")
		if genType, err := entity.ParseCodeGenType(strings.ToLower(token)); err == nil {
			return genType, nil
		}
	}
	// 标签可能内嵌在句子里，做一次包含匹配
	lowered := strings.ToLower(content)
	for _, candidate := range []entity.CodeGenType{
		entity.CodeGenTypeProject,
		entity.CodeGenTypeMultiFile,
		entity.CodeGenTypeHTML,
	} {
		if strings.Contains(lowered, string(candidate)) {
			return candidate, nil
		}
	}
	return "", errUnroutable
}

var errUnroutable = &routeError{msg: "no gen type label found in model output"}

type routeError struct{ msg string }

func (e *routeError) Error() string { return e.msg }

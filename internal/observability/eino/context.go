package eino

import "context"

type providerKey struct{}

// WithProvider 把本次调用使用的 LLM 提供商名写入 Context，
// 供回调处理器打指标标签用
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext 读取 Context 中的 LLM 提供商名
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok {
		return v
	}
	return "default"
}

// Package codegen 实现 AI 代码生成的核心编排：
// 路由、客户端缓存、对话窗口、护栏、流式生成与产物落盘。
package codegen

import (
	"ai-codegen-api/internal/domain/entity"
)

// GeneratedFile 一次生成产出的单个文件
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SaveResult 生成产物落盘结果
type SaveResult struct {
	GenType entity.CodeGenType `json:"gen_type"`
	// Dir 产物所在目录（绝对路径）
	Dir   string          `json:"dir"`
	Files []GeneratedFile `json:"files"`
}

// StreamChunk 流式生成过程中推送给调用方的片段
type StreamChunk struct {
	// Content 本片段的增量文本
	Content string `json:"content"`
	// Done 为 true 时表示流正常结束，此时 Result 可用
	Done bool `json:"done"`
	// Result 流结束后的落盘结果，仅在 Done 为 true 时非空
	Result *SaveResult `json:"result,omitempty"`
	// Error 流异常中断时的错误描述，之后不会再有片段
	Error string `json:"error,omitempty"`
}

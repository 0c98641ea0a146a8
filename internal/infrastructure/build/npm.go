// Package build 提供工程模式产物的构建能力
package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"ai-codegen-api/internal/config"
	apperrors "ai-codegen-api/pkg/errors"
	"ai-codegen-api/pkg/logger"
)

// NpmBuilder 对生成的前端项目执行 npm install + npm run build，
// 产出 dist 目录供部署使用。
type NpmBuilder struct {
	timeout time.Duration
}

// NewNpmBuilder 创建 npm 构建器
func NewNpmBuilder(cfg *config.CodeGenConfig) *NpmBuilder {
	timeout := cfg.BuildTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &NpmBuilder{timeout: timeout}
}

// Build 在 sourceDir 内执行构建，返回可部署的产物目录。
// 没有 package.json 的目录视为静态产物，原样返回。
func (b *NpmBuilder) Build(ctx context.Context, sourceDir string) (string, error) {
	if _, err := os.Stat(filepath.Join(sourceDir, "package.json")); err != nil {
		return sourceDir, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	for _, args := range [][]string{
		{"install"},
		{"run", "build"},
	} {
		if err := b.runNpm(ctx, sourceDir, args); err != nil {
			return "", err
		}
	}

	dist := filepath.Join(sourceDir, "dist")
	if _, err := os.Stat(dist); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeBuildFailed, "build produced no dist directory")
	}

	logger.FromContext(ctx).Info("project built",
		"dir", sourceDir, "duration", time.Since(start).String())
	return dist, nil
}

func (b *NpmBuilder) runNpm(ctx context.Context, dir string, args []string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "npm", args...)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		logger.FromContext(ctx).Error("npm command failed",
			"args", args, "dir", dir, "output", truncate(out.String(), 2000))
		return apperrors.Wrap(err, apperrors.CodeBuildFailed, "npm "+args[0]+" failed")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

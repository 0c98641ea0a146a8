// Package screenshot 提供页面截图实现
package screenshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-codegen-api/internal/config"
)

var tracer = otel.Tracer("screenshot")

// Renderer 调用外部无头浏览器渲染服务生成页面截图
type Renderer struct {
	endpoint string
	httpc    *http.Client
}

// NewRenderer 创建截图渲染客户端
func NewRenderer(cfg *config.ScreenshotConfig) *Renderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{
		endpoint: cfg.RendererEndpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

type captureRequest struct {
	URL string `json:"url"`
}

type captureResponse struct {
	ImageURL string `json:"image_url"`
}

// Capture 对目标页面截图，返回图片访问地址
func (r *Renderer) Capture(ctx context.Context, pageURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "screenshot.Capture",
		trace.WithAttributes(attribute.String("screenshot.url", pageURL)))
	defer span.End()

	body, err := json.Marshal(captureRequest{URL: pageURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("screenshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("screenshot renderer returned status %d", resp.StatusCode)
		span.RecordError(err)
		return "", err
	}

	var result captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to decode screenshot response: %w", err)
	}

	if result.ImageURL == "" {
		return "", fmt.Errorf("screenshot renderer returned empty image url")
	}
	return result.ImageURL, nil
}

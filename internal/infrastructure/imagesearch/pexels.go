// Package imagesearch 提供图片素材搜索实现（Pexels 兼容接口）
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-codegen-api/internal/config"
	apperrors "ai-codegen-api/pkg/errors"
	"ai-codegen-api/pkg/logger"
)

var tracer = otel.Tracer("imagesearch")

// Image 搜索到的图片素材
type Image struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Client Pexels 图片搜索客户端
type Client struct {
	endpoint string
	apiKey   string
	perQuery int
	httpc    *http.Client
}

// NewClient 创建图片搜索客户端
func NewClient(cfg *config.ImageSearchConfig) *Client {
	perQuery := cfg.PerQuery
	if perQuery <= 0 {
		perQuery = 6
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		perQuery: perQuery,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// searchResponse Pexels 搜索接口响应
type searchResponse struct {
	Photos []struct {
		Alt string `json:"alt"`
		Src struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Search 按关键词搜索图片素材
func (c *Client) Search(ctx context.Context, query string) ([]Image, error) {
	ctx, span := tracer.Start(ctx, "imagesearch.Search",
		trace.WithAttributes(attribute.String("imagesearch.query", query)))
	defer span.End()

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid image search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("per_page", fmt.Sprintf("%d", c.perQuery))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeImageSearchError, "image search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("image search returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeImageSearchError, "image search request failed")
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeImageSearchError, "failed to decode image search response")
	}

	images := make([]Image, 0, len(body.Photos))
	for _, p := range body.Photos {
		if p.Src.Large == "" {
			continue
		}
		images = append(images, Image{
			URL:         p.Src.Large,
			Description: p.Alt,
		})
	}

	span.SetAttributes(attribute.Int("imagesearch.result_count", len(images)))
	logger.FromContext(ctx).Debug("image search completed", "query", query, "count", len(images))
	return images, nil
}

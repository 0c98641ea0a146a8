// Package screenshot 实现封面截图任务的消费侧处理
package screenshot

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-codegen-api/internal/infrastructure/messaging"
	"ai-codegen-api/pkg/logger"
	"ai-codegen-api/pkg/metrics"
)

var tracer = otel.Tracer("screenshot.worker")

// Capturer 页面截图能力
type Capturer interface {
	Capture(ctx context.Context, pageURL string) (string, error)
}

// CoverUpdater 封面回写能力
type CoverUpdater interface {
	UpdateCover(ctx context.Context, appID int64, coverURL string) error
}

// Worker 截图任务处理器。部署完成后异步执行：
// 对部署页面截图并把图片地址回写为应用封面。
type Worker struct {
	capturer Capturer
	apps     CoverUpdater
}

// NewWorker 创建截图任务处理器
func NewWorker(capturer Capturer, apps CoverUpdater) *Worker {
	return &Worker{capturer: capturer, apps: apps}
}

// HandleScreenshotJob 处理一条截图任务消息。
// 返回错误会触发消费者的退避重试。
func (w *Worker) HandleScreenshotJob(ctx context.Context, msg *messaging.Message) error {
	ctx, span := tracer.Start(ctx, "worker.HandleScreenshotJob",
		trace.WithAttributes(attribute.String("message.id", msg.ID)))
	defer span.End()

	var job messaging.ScreenshotJobMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		// 载荷损坏重试也无济于事，打点后吞掉让消费者 ack
		metrics.ScreenshotJobsTotal.WithLabelValues("invalid").Inc()
		logger.FromContext(ctx).Error("invalid screenshot job payload", "error", err, "message_id", msg.ID)
		return nil
	}

	span.SetAttributes(attribute.Int64("app_id", job.AppID))

	imageURL, err := w.capturer.Capture(ctx, job.DeployURL)
	if err != nil {
		metrics.ScreenshotJobsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return fmt.Errorf("failed to capture %s: %w", job.DeployURL, err)
	}

	if err := w.apps.UpdateCover(ctx, job.AppID, imageURL); err != nil {
		metrics.ScreenshotJobsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return fmt.Errorf("failed to update cover for app %d: %w", job.AppID, err)
	}

	metrics.ScreenshotJobsTotal.WithLabelValues("success").Inc()
	logger.FromContext(ctx).Info("app cover updated",
		"app_id", job.AppID, "cover_url", imageURL)
	return nil
}

package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"blindtest/internal/bridge"
	"blindtest/internal/config"
	"blindtest/internal/export"
	"blindtest/internal/logging"
)

const userAgent = "blindtest/1"

// Service defines the notifications export code may send.
type Service interface {
	NotifyExportCompleted(ctx context.Context, output string, items int, elapsed time.Duration) error
	NotifyExportFailed(ctx context.Context, output string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyExportCompleted(ctx context.Context, output string, items int, elapsed time.Duration) error {
	elapsed = max(elapsed.Round(time.Second), 0)
	data := payload{
		title:   "Blind test - Export complete",
		message: fmt.Sprintf("✅ %s ready: %d clips in %s", filepath.Base(output), items, elapsed),
		tags:    []string{"blindtest", "export", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExportFailed(ctx context.Context, output string, err error) error {
	var builder strings.Builder
	if errors.Is(err, context.Canceled) {
		builder.WriteString("⏹️ Export cancelled: ")
		builder.WriteString(filepath.Base(output))
		return n.send(ctx, payload{
			title:   "Blind test - Export cancelled",
			message: builder.String(),
			tags:    []string{"blindtest", "export", "cancelled"},
		})
	}
	builder.WriteString("❌ Export failed: ")
	builder.WriteString(filepath.Base(output))
	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(err.Error())
	}
	return n.send(ctx, payload{
		title:    "Blind test - Export failed",
		message:  builder.String(),
		tags:     []string{"blindtest", "export", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Blind test - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"blindtest", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyExportCompleted(context.Context, string, int, time.Duration) error {
	return nil
}
func (noopService) NotifyExportFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }

// Sink returns a session sink that sends one notification when the export
// reaches a terminal event. Delivery failures are logged, never returned.
func Sink(svc Service, req export.Request, logger *slog.Logger) bridge.Sink {
	logger = logging.NewComponentLogger(logger, "notifications")
	return func(update bridge.Update) {
		if svc == nil || !update.Event.Terminal() {
			return
		}
		ctx := context.Background()
		var err error
		if update.Event.Kind == export.EventDone {
			elapsed := update.State.FinishedAt.Sub(update.State.StartedAt)
			err = svc.NotifyExportCompleted(ctx, req.Output, len(req.Items), elapsed)
		} else {
			err = svc.NotifyExportFailed(ctx, req.Output, update.Event.Err)
		}
		if err != nil {
			logging.WarnWithContext(logger, "export notification not delivered", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "no push message for this export"),
			)
		}
	}
}

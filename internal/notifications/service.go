package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelcast/internal/config"
)

const userAgent = "reelcast/0.1"

// Event identifies a notification category.
type Event string

const (
	EventRunCompleted  Event = "run_completed"
	EventItemFailed    Event = "item_failed"
	EventPublishFailed Event = "publish_failed"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields by name.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRunCompleted:  cfg.Notifications.RunSummary,
			EventItemFailed:    cfg.Notifications.Errors,
			EventPublishFailed: cfg.Notifications.PublishFailures,
			EventError:         cfg.Notifications.Errors,
			EventTest:          true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		processed := intValue(payload, "processed")
		failed := intValue(payload, "failed")
		duration := durationText(payload["duration"])
		if failed == 0 {
			return message{
				title: "reelcast - Run Complete",
				body:  fmt.Sprintf("Pipeline run complete: %d items processed in %s", processed, duration),
				tags:  []string{"reelcast", "run", "completed"},
			}, true
		}
		return message{
			title: "reelcast - Run Complete (with errors)",
			body:  fmt.Sprintf("Pipeline run complete: %d succeeded, %d failed in %s", processed-failed, failed, duration),
			tags:  []string{"reelcast", "run", "completed"},
		}, true
	case EventItemFailed:
		return message{
			title: "reelcast - Item Failed",
			body: fmt.Sprintf("%s failed at %s (%s)",
				stringValue(payload, "title"), stringValue(payload, "stage"), stringValue(payload, "kind")),
			tags: []string{"reelcast", "item", "failed"},
		}, true
	case EventPublishFailed:
		return message{
			title: "reelcast - Publish Failed",
			body: fmt.Sprintf("Unit %d on %s failed: %s\nRequeue with: reelcast units requeue %d",
				intValue(payload, "unit_id"), stringValue(payload, "platform"), stringValue(payload, "error"),
				intValue(payload, "unit_id")),
			tags:     []string{"reelcast", "publish", "failed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := stringValue(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if text := stringValue(payload, "error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "reelcast - Error",
			body:     b.String(),
			tags:     []string{"reelcast", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "reelcast - Test",
			body:     "Notification system test",
			tags:     []string{"reelcast", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func stringValue(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intValue(payload Payload, key string) int64 {
	switch v := payload[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func durationText(value any) string {
	d, _ := value.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

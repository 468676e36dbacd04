package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/poiesic/studyforge/core"
)

// Notification is the JSON body posted to a task's callback URL.
type Notification struct {
	TaskID                string          `json:"task_id"`
	Status                core.TaskStatus `json:"status"`
	TopicID               string          `json:"topic_id"`
	ContentID             string          `json:"content_id,omitempty"`
	Error                 string          `json:"error,omitempty"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
}

// Notifier posts completion callbacks. Delivery is best effort: failures
// are logged and never affect the task.
type Notifier struct {
	client *http.Client
	logger *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithHTTPClient sets the client used for callbacks.
func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

// WithNotifierLogger sets a custom logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier creates a Notifier with a 10 second client timeout.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts body to url.
func (n *Notifier) Notify(ctx context.Context, url string, body Notification) {
	body.ProcessingTimeSeconds = math.Round(body.ProcessingTimeSeconds*100) / 100
	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Warn("failed to encode callback", "task_id", body.TaskID, "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("invalid callback url", "task_id", body.TaskID, "url", url, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("callback failed", "task_id", body.TaskID, "url", url, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("callback rejected", "task_id", body.TaskID, "url", url, "status", resp.StatusCode)
		return
	}
	n.logger.Debug("callback sent", "task_id", body.TaskID, "url", url)
}

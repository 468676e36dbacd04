package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/poiesic/studyforge/core"
)

const (
	maxPageBytes = 5 << 20
	userAgent    = "Mozilla/5.0 (compatible; studyforge/1.0)"
)

// Webpage fetches a URL and reduces its HTML to readable text.
type Webpage struct {
	Client *http.Client
	Logger *slog.Logger
}

// Extract implements Extractor.
func (w *Webpage) Extract(ctx context.Context, payload core.Payload) (*Result, error) {
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.URL, nil)
	if err != nil {
		return nil, core.NewValidationError("url", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fetchError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fetchError(ctx, err)
	}

	title, text := "", string(body)
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") && !strings.Contains(contentType, "text/markdown") {
		title, text, err = htmlToText(text)
		if err != nil {
			return nil, core.NewExternalServiceError("webpage fetch", core.ReasonUpstream, false, err)
		}
	}
	if t := strings.TrimSpace(payload.Title); t != "" {
		title = t
	}
	if title == "" {
		title = payload.URL
	}

	logger.Debug("fetched webpage", "url", payload.URL, "bytes", len(body), "chars", len(text))
	return &Result{
		Title:     title,
		Text:      text,
		SourceURL: payload.URL,
		Metadata:  map[string]any{"content_type": contentType},
	}, nil
}

func fetchError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewExternalServiceError("webpage fetch", core.ReasonTimeout, true, err)
	}
	return core.NewExternalServiceError("webpage fetch", core.ReasonUnavailable, true, err)
}

func statusError(code int) error {
	err := fmt.Errorf("HTTP %d %s", code, http.StatusText(code))
	switch {
	case code == http.StatusTooManyRequests:
		return core.NewExternalServiceError("webpage fetch", core.ReasonRateLimited, true, err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return core.NewExternalServiceError("webpage fetch", core.ReasonAuth, false, err)
	case code >= 500:
		return core.NewExternalServiceError("webpage fetch", core.ReasonUnavailable, true, err)
	default:
		return core.NewExternalServiceError("webpage fetch", core.ReasonUpstream, false, err)
	}
}

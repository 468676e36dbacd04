package openai

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/poiesic/studyforge/core"
)

var errEmptyResponse = errors.New("model returned no choices")

// classifyError wraps a model-call failure as a core.ExternalServiceError
// whose reason and retryability follow the upstream status.
func classifyError(service string, err error) error {
	if err == nil {
		return nil
	}
	var ext *core.ExternalServiceError
	if errors.As(err, &ext) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return core.ErrCancelled
	}

	reason, retryable := core.ReasonUpstream, false
	msg := strings.ToLower(err.Error())
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(msg, "timeout"):
		reason, retryable = core.ReasonTimeout, true
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"):
		reason, retryable = core.ReasonRateLimited, true
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "api key"),
		strings.Contains(msg, "unauthorized"):
		reason = core.ReasonAuth
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"):
		reason, retryable = core.ReasonUnavailable, true
	case strings.Contains(msg, "500"):
		retryable = true
	}
	return core.NewExternalServiceError(service, reason, retryable, err)
}

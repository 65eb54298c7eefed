package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"insurease-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retrying struct {
	base  Client
	delay time.Duration
}

// WithRetry wraps base so that transient failures are retried once after a short delay.
func WithRetry(base Client) Client {
	if base == nil {
		return nil
	}
	return retrying{base: base, delay: retryBaseDelay}
}

func (r retrying) Chat(ctx context.Context, req ChatRequest) (string, error) {
	out, err := r.base.Chat(ctx, req)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}
	if err := r.wait(ctx, "chat", err); err != nil {
		return "", err
	}
	return r.base.Chat(ctx, req)
}

func (r retrying) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out, err := r.base.Embed(ctx, texts)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}
	if err := r.wait(ctx, "embed", err); err != nil {
		return nil, err
	}
	return r.base.Embed(ctx, texts)
}

func (r retrying) wait(ctx context.Context, op string, cause error) error {
	telemetry.Warn("llm.retry", map[string]any{
		"op":      op,
		"attempt": 1,
		"error":   cause,
	})
	select {
	case <-time.After(r.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldRetry reports whether err looks transient: timeouts, 5xx responses or dropped connections.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}

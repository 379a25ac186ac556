package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport logs every outgoing Admin API round trip with its status
// and duration.
type LoggingTransport struct {
	Next   http.RoundTripper
	Logger *zap.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	start := time.Now()

	resp, err := next.RoundTrip(r)

	duration := time.Since(start)
	if err != nil {
		t.logger().Warn("[HTTP] request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", duration),
			zap.Error(err))
		return resp, err
	}
	t.logger().Debug("[HTTP] request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("request_id", resp.Header.Get("X-Request-Id")))
	return resp, nil
}

func (t *LoggingTransport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// LoggingClient returns an HTTP client whose transport logs through logger.
// A zero timeout keeps the transport default (no overall deadline).
func LoggingClient(logger *zap.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &LoggingTransport{Next: http.DefaultTransport, Logger: logger},
	}
}

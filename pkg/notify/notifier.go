// Package notify delivers outbound webhook notifications for diagnostic
// steps.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeoutSeconds = 30

// HTTPNotifier posts step notifications to external endpoints.
type HTTPNotifier struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPNotifier(logger *slog.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		client: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger: logger.With("module", "notifier"),
	}
}

// Notify sends the request and returns the response status code. The response
// body is drained and discarded; webhook consumers own their own retries.
func (n *HTTPNotifier) Notify(ctx context.Context, url, method string, headers map[string]string, body []byte) (int, error) {
	if method == "" {
		method = http.MethodPost
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, reader)
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}

	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("deliver webhook: %w", err)
	}

	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	n.logger.Debug("Webhook delivered", "url", url, "status", resp.StatusCode)

	return resp.StatusCode, nil
}

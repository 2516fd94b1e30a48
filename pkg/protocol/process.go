package protocol

import "context"

// ProcessWatcher answers liveness questions about the job's owned OS
// process.
type ProcessWatcher interface {
	Alive(ctx context.Context, pid int32) (bool, error)
}

// Notifier delivers fire-and-forget outbound notifications (the webhook
// step). Delivery failures are diagnostic-only.
type Notifier interface {
	Notify(ctx context.Context, url, method string, headers map[string]string, body []byte) (int, error)
}

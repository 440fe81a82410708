package ports

import "context"

// Notification is one local notification request. Identifier doubles as the
// OS-side deduplication key and the deep-link target.
type Notification struct {
	Identifier string            `json:"identifier"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Sound      bool              `json:"sound"`
	UserInfo   map[string]string `json:"userInfo,omitempty"`
}

// NotificationScheduler delivers local notifications. Scheduling failures
// are reported but callers are expected to swallow them: notifications must
// never block the update pipeline.
type NotificationScheduler interface {
	Schedule(ctx context.Context, n Notification) error
}

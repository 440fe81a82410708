package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/XITRIX/iTorrent-v2/internal/domain/ports"
)

// PushScheduler delivers notifications by POSTing them to a configured
// push gateway. An empty endpoint makes every schedule a no-op, so the
// scheduler can always be wired in.
type PushScheduler struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewPushScheduler(endpoint string, logger *slog.Logger) *PushScheduler {
	return &PushScheduler{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

func (p *PushScheduler) Schedule(ctx context.Context, n ports.Notification) error {
	if p.endpoint == "" {
		p.logger.Debug("push endpoint not configured, dropping notification",
			slog.String("identifier", n.Identifier))
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}
	return nil
}

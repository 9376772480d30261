package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/pkg/protocol"
	"github.com/fruitsalade/filesurf/pkg/retry"
)

// SSEClient follows the server's index mutation stream.
type SSEClient struct {
	baseURL    string
	httpClient *http.Client
	backoff    retry.Config
	log        *zap.Logger
}

// NewSSEClient creates a new SSE client. A nil logger discards output.
func NewSSEClient(baseURL string, log *zap.Logger) *SSEClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &SSEClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // No timeout for SSE
		},
		backoff: retry.Config{
			InitialWait: time.Second,
			MaxWait:     30 * time.Second,
			Multiplier:  2,
			Jitter:      0.1,
		},
		log: log,
	}
}

// SetBackoff overrides the reconnect schedule.
func (c *SSEClient) SetBackoff(cfg retry.Config) {
	c.backoff = cfg
}

// Subscribe connects to the event stream and reconnects until ctx is done.
// Both channels are closed when the subscription ends.
func (c *SSEClient) Subscribe(ctx context.Context) (<-chan protocol.SSEEvent, <-chan error) {
	events := make(chan protocol.SSEEvent, 100)
	errs := make(chan error, 1)

	go c.subscribeLoop(ctx, events, errs)

	return events, errs
}

func (c *SSEClient) subscribeLoop(ctx context.Context, events chan<- protocol.SSEEvent, errs chan<- error) {
	defer close(events)
	defer close(errs)

	attempt := 0
	for ctx.Err() == nil {
		received, err := c.connect(ctx, events)
		if ctx.Err() != nil {
			return
		}
		if received {
			attempt = 0
		}
		attempt++
		wait := c.backoff.Backoff(attempt)
		c.log.Warn("event stream interrupted", zap.Error(err), zap.Duration("retry_in", wait))

		select {
		case errs <- err:
		default:
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect reads one stream until it ends. It reports whether the connection
// was established.
func (c *SSEClient) connect(ctx context.Context, events chan<- protocol.SSEEvent) (bool, error) {
	url := c.baseURL + "/api/v1/events"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	c.log.Debug("event stream connected", zap.String("url", url))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var eventType, data string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data != "" {
				var event protocol.SSEEvent
				if err := json.Unmarshal([]byte(data), &event); err != nil {
					c.log.Debug("malformed event", zap.Error(err))
				} else {
					if event.Type == "" {
						event.Type = eventType
					}
					select {
					case events <- event:
					case <-ctx.Done():
						return true, nil
					}
				}
			}
			eventType, data = "", ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("read: %w", err)
	}
	return true, fmt.Errorf("connection closed")
}

// Package webhook dispatches best-effort notifications to registered
// URLs when a server-side action completes, per the lifecycle-hook
// design: webhook delivery is never part of core consistency, so a
// failed or slow delivery never blocks or fails the request that
// triggered it. Grounded on internal/sync.Client's retryablehttp
// wrapper, reused here for the same reason — a webhook endpoint is
// just as likely to be briefly unreachable as a sync remote.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Event is the JSON body posted to every registered webhook URL.
type Event struct {
	Action    string      `json:"action"`
	Repo      string      `json:"repo"`
	Timestamp int64       `json:"timestamp"`
	Detail    interface{} `json:"detail,omitempty"`
}

// Dispatcher posts Events to a fixed set of URLs, retrying transient
// failures but never surfacing an error to the caller: Dispatch always
// returns immediately and logs delivery outcomes instead of returning
// them.
type Dispatcher struct {
	urls []string
	http *retryablehttp.Client
	log  *zap.Logger
}

// NewDispatcher builds a Dispatcher for the given webhook URLs. An
// empty list is valid: Dispatch becomes a no-op.
func NewDispatcher(urls []string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &Dispatcher{urls: urls, http: rc, log: logger}
}

// Dispatch posts event to every registered URL in its own goroutine,
// bounding each URL's delivery, retries included, to 10 seconds
// regardless of the caller's context so a slow webhook endpoint can't
// pin request goroutines open.
func (d *Dispatcher) Dispatch(event Event) {
	if len(d.urls) == 0 {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		d.log.Warn("webhook: encode event", zap.Error(err))
		return
	}
	for _, url := range d.urls {
		go d.deliver(url, body)
	}
}

func (d *Dispatcher) deliver(url string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		d.log.Warn("webhook: build request", zap.String("url", url), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		d.log.Warn("webhook: delivery failed", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.log.Warn("webhook: non-2xx response", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return
	}
	d.log.Debug("webhook: delivered", zap.String("url", url))
}

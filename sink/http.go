package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/strahe/pgreplay-sentinel/capture"
	"github.com/strahe/pgreplay-sentinel/pgerr"
)

// HTTPSink POSTs the canonical JSON encoding of each event to a fixed
// endpoint, retrying transient failures per the shared backoff policy
// and notifying an operator once retries are exhausted.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	notifier Notifier
	logger   Logger
}

func NewHTTPSink(endpoint string, notifier Notifier, logger Logger) *HTTPSink {
	if logger == nil {
		logger = NoopLogger
	}
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		notifier: notifier,
		logger:   logger,
	}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Deliver(ctx context.Context, ev *capture.Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return pgerr.NewPermanentSinkError(s.Name(), err)
	}

	err = WithRetry(ctx, s.Name(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return pgerr.NewPermanentSinkError(s.Name(), err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return pgerr.NewTransientSinkError(s.Name(), err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return pgerr.NewTransientSinkError(s.Name(), fmt.Errorf("status %d", resp.StatusCode))
		default:
			return pgerr.NewPermanentSinkError(s.Name(), fmt.Errorf("status %d", resp.StatusCode))
		}
	})

	if err != nil && pgerr.IsExhausted(err) && s.notifier != nil {
		if nerr := s.notifier.Notify(ctx, "pgreplay-sentinel: HTTP sink delivery failed",
			fmt.Sprintf("event kind=%s lsn=%s could not be delivered to %s: %v", ev.Kind, ev.LSN, s.endpoint, err)); nerr != nil {
			s.logger.Warnf("failure notification could not be sent: %v", nerr)
		}
	}
	return err
}

var _ Sink = (*HTTPSink)(nil)

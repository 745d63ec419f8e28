package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/strahe/pgreplay-sentinel/capture"
	"github.com/strahe/pgreplay-sentinel/pgerr"
)

// hook0Payload is the minimal Hook0 ingestion event shape: an
// application-scoped event type, a label set, and an opaque payload.
// This intentionally does not replicate the outbox-table decoding
// pipeline of a full Hook0 producer; the replication events this
// session emits already are the payload.
type hook0Payload struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Labels        map[string]string `json:"labels"`
	Payload       json.RawMessage   `json:"payload"`
	PayloadType   string            `json:"payload_content_type"`
	OccurredAt    string            `json:"occurred_at"`
	ApplicationID string            `json:"application_id"`
}

// Hook0Sink posts each event to a Hook0 application's event
// ingestion endpoint, authenticating with a bearer API token.
type Hook0Sink struct {
	apiURL        string
	applicationID string
	apiToken      string
	client        *http.Client
	notifier      Notifier
	logger        Logger
}

func NewHook0Sink(apiURL, applicationID, apiToken string, notifier Notifier, logger Logger) *Hook0Sink {
	if logger == nil {
		logger = NoopLogger
	}
	return &Hook0Sink{
		apiURL:        apiURL,
		applicationID: applicationID,
		apiToken:      apiToken,
		client:        &http.Client{Timeout: 10 * time.Second},
		notifier:      notifier,
		logger:        logger,
	}
}

func (s *Hook0Sink) Name() string { return "hook0" }

func (s *Hook0Sink) Deliver(ctx context.Context, ev *capture.Event) error {
	body, err := Encode(ev)
	if err != nil {
		return pgerr.NewPermanentSinkError(s.Name(), err)
	}

	payload := hook0Payload{
		EventID:       uuid.NewString(),
		EventType:     fmt.Sprintf("pgreplay.%s", ev.Kind),
		Labels:        map[string]string{"schema": ev.Schema, "table": ev.Table},
		Payload:       json.RawMessage(body),
		PayloadType:   "application/json",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		ApplicationID: s.applicationID,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pgerr.NewPermanentSinkError(s.Name(), err)
	}

	err = WithRetry(ctx, s.Name(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/event", bytes.NewReader(encoded))
		if err != nil {
			return pgerr.NewPermanentSinkError(s.Name(), err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiToken)

		resp, err := s.client.Do(req)
		if err != nil {
			return pgerr.NewTransientSinkError(s.Name(), err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			return pgerr.NewPermanentSinkError(s.Name(), fmt.Errorf("unauthorized: check HOOK0_API_TOKEN"))
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return pgerr.NewTransientSinkError(s.Name(), fmt.Errorf("status %d", resp.StatusCode))
		default:
			return pgerr.NewPermanentSinkError(s.Name(), fmt.Errorf("status %d", resp.StatusCode))
		}
	})

	if err != nil && pgerr.IsExhausted(err) && s.notifier != nil {
		if nerr := s.notifier.Notify(ctx, "pgreplay-sentinel: Hook0 sink delivery failed",
			fmt.Sprintf("event kind=%s lsn=%s could not be delivered to Hook0: %v", ev.Kind, ev.LSN, err)); nerr != nil {
			s.logger.Warnf("failure notification could not be sent: %v", nerr)
		}
	}
	return err
}

var _ Sink = (*Hook0Sink)(nil)

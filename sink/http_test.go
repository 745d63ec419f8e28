package sink_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/strahe/pgreplay-sentinel/capture"
	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/strahe/pgreplay-sentinel/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *capture.Event {
	return &capture.Event{Kind: capture.EventInsert, LSN: pgproto.LSN(1), Schema: "public", Table: "widgets"}
}

func TestHTTPSinkDeliversOnSuccess(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := sink.NewHTTPSink(srv.URL, nil, nil)
	err := s.Deliver(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
}

func TestHTTPSinkPermanentOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := sink.NewHTTPSink(srv.URL, nil, nil)
	err := s.Deliver(context.Background(), testEvent())
	require.Error(t, err)
	assert.False(t, pgerr.IsTransient(err))
}

func TestHTTPSinkDoesNotNotifyOnImmediatePermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var notified int32
	notifier := notifyFunc(func(context.Context, string, string) error {
		atomic.AddInt32(&notified, 1)
		return nil
	})

	s := sink.NewHTTPSink(srv.URL, notifier, nil)
	_ = s.Deliver(context.Background(), testEvent())
	assert.Equal(t, int32(0), atomic.LoadInt32(&notified), "a single 400 never spends the retry budget")
}

func TestHTTPSinkNotifiesAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var notified int32
	notifier := notifyFunc(func(context.Context, string, string) error {
		atomic.AddInt32(&notified, 1)
		return nil
	})

	s := sink.NewHTTPSink(srv.URL, notifier, nil)
	err := s.Deliver(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&notified))
}

type notifyFunc func(ctx context.Context, subject, body string) error

func (f notifyFunc) Notify(ctx context.Context, subject, body string) error { return f(ctx, subject, body) }

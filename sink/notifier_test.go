package sink_test

import (
	"context"
	"testing"

	"github.com/strahe/pgreplay-sentinel/sink"
	"github.com/stretchr/testify/require"
)

func TestSMTPNotifierWrapsDialFailure(t *testing.T) {
	n := sink.NewSMTPNotifier(sink.EmailConfig{
		SMTPHost: "127.0.0.1",
		SMTPPort: 1, // nothing listens here
		From:     "a@example.com",
		To:       "b@example.com",
	})

	err := n.Notify(context.Background(), "subject", "body")
	require.Error(t, err)
}

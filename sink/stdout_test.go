package sink_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/strahe/pgreplay-sentinel/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutSinkWritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	s := sink.NewStdoutSink(sink.WithWriter(&buf))

	err := s.Deliver(context.Background(), testEvent())
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "insert", out["kind"])
}

func TestStdoutSinkPrettyPrintDoesNotEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	s := sink.NewStdoutSink(sink.WithWriter(&buf), sink.WithPrettyPrint(true))

	require.NoError(t, s.Deliver(context.Background(), testEvent()))
	assert.NotEqual(t, byte('{'), buf.Bytes()[0])
}

package sink

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/strahe/pgreplay-sentinel/capture"
)

// StdoutSink prints every delivered event to stdout, either as one
// compact JSON line (the default, suitable for piping into another
// tool) or as a colorized table (PrettyPrint), matching the two
// presentation modes the teacher's console/stdout sinks offered.
type StdoutSink struct {
	out         io.Writer
	prettyPrint bool
	logger      Logger
}

type StdoutOption func(*StdoutSink)

func WithPrettyPrint(enabled bool) StdoutOption {
	return func(s *StdoutSink) { s.prettyPrint = enabled }
}

func WithLogger(l Logger) StdoutOption {
	return func(s *StdoutSink) { s.logger = l }
}

// WithWriter overrides the destination, normally os.Stdout; mainly
// useful for tests.
func WithWriter(w io.Writer) StdoutOption {
	return func(s *StdoutSink) { s.out = w }
}

func NewStdoutSink(opts ...StdoutOption) *StdoutSink {
	s := &StdoutSink{out: os.Stdout, logger: NoopLogger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Deliver(ctx context.Context, ev *capture.Event) error {
	if s.prettyPrint {
		s.writePretty(ev)
		return nil
	}
	data, err := Encode(ev)
	if err != nil {
		s.logger.Errorf("stdout sink: encode event: %v", err)
		return err
	}
	fmt.Fprintln(s.out, string(data))
	return nil
}

func (s *StdoutSink) writePretty(ev *capture.Event) {
	kindColor := color.New(color.FgCyan).SprintFunc()
	switch ev.Kind {
	case capture.EventInsert:
		kindColor = color.New(color.FgGreen).SprintFunc()
	case capture.EventUpdate:
		kindColor = color.New(color.FgYellow).SprintFunc()
	case capture.EventDelete:
		kindColor = color.New(color.FgRed).SprintFunc()
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"kind", kindColor(ev.Kind)})
	t.AppendRow(table.Row{"lsn", ev.LSN.String()})
	if ev.Xid != 0 {
		t.AppendRow(table.Row{"xid", ev.Xid})
	}
	if ev.Table != "" {
		t.AppendRow(table.Row{"table", ev.Schema + "." + ev.Table})
	}
	if ev.Old != nil {
		t.AppendRow(table.Row{"old", formatValues(ev.Old)})
	}
	if ev.New != nil {
		t.AppendRow(table.Row{"new", formatValues(ev.New)})
	}
	t.AppendRow(table.Row{"correlation_id", ev.CorrelationID})
	t.Render()
}

func formatValues(values map[string]any) string {
	s := ""
	for k, v := range values {
		if s != "" {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", k, v)
	}
	return s
}

var _ Sink = (*StdoutSink)(nil)

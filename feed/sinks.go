package feed

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/teamsfeed/feed/internal/sink"
)

// Sink receives feed updates. Re-exported from internal.
type Sink = sink.Sink

// Update is a feed snapshot delivered to sinks.
type Update = sink.Update

// NewStdoutSink writes updates as JSON lines to w (os.Stdout when nil).
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink POSTs updates to url with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink hands updates to fn.
func NewCallbackSink(fn func(ctx context.Context, u Update) error) Sink {
	return sink.NewCallback(fn)
}

// SinksFromConfig builds the configured sinks.
func SinksFromConfig(cfgs []SinkConfig, logger *slog.Logger) []Sink {
	var out []Sink
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, NewStdoutSink(nil))
		case "webhook":
			out = append(out, NewWebhookSink(c.URL, logger))
		}
	}
	return out
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// LoggerSink writes notifications as structured log events.
type LoggerSink struct {
	logg *logger.Logger
}

// NewLoggerSink builds a sink over logg; a nil logger discards.
func NewLoggerSink(logg *logger.Logger) *LoggerSink {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LoggerSink{logg: logg}
}

func (s *LoggerSink) Notify(ctx context.Context, n Notification) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"title":       n.Title,
		"description": n.Description,
		"severity":    string(n.Severity),
	})
	switch n.Severity {
	case SeverityError, SeverityWarning:
		s.logg.Warn(ctx, "cart.notification")
	default:
		s.logg.Info(ctx, "cart.notification")
	}
}

// WriterSink prints notifications as single lines, e.g. to a terminal.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Notify(_ context.Context, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Description == "" {
		fmt.Fprintf(s.w, "[%s] %s\n", n.Severity, n.Title)
		return
	}
	fmt.Fprintf(s.w, "[%s] %s: %s\n", n.Severity, n.Title, n.Description)
}

package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOutAndSkipsNil(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	sink := Multi(first, nil, second)

	sink.Notify(context.Background(), Notification{Title: "Added to cart", Severity: SeveritySuccess})

	assert.Len(t, first.All(), 1)
	assert.Len(t, second.All(), 1)
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	_, ok := rec.Last()
	assert.False(t, ok)

	rec.Notify(context.Background(), Notification{Title: "a"})
	rec.Notify(context.Background(), Notification{Title: "b"})

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Title)

	all := rec.All()
	all[0].Title = "mutated"
	assert.Equal(t, "a", rec.All()[0].Title)

	rec.Reset()
	assert.Empty(t, rec.All())
}

func TestWriterSinkFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	sink.Notify(context.Background(), Notification{Title: "Cart cleared", Severity: SeveritySuccess})
	sink.Notify(context.Background(), Notification{Title: "Could not update cart", Description: "item not in cart", Severity: SeverityError})

	assert.Equal(t, "[success] Cart cleared\n[error] Could not update cart: item not in cart\n", buf.String())
}

func TestLoggerSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	sink := NewLoggerSink(logg)

	sink.Notify(context.Background(), Notification{Title: "Cart updated", Severity: SeveritySuccess})
	sink.Notify(context.Background(), Notification{Title: "Out of stock", Severity: SeverityError})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var info, warn map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &info))
	require.NoError(t, json.Unmarshal(lines[1], &warn))
	assert.Equal(t, "info", info["level"])
	assert.Equal(t, "Cart updated", info["title"])
	assert.Equal(t, "warn", warn["level"])
	assert.Equal(t, "error", warn["severity"])
}

func TestDiscardIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Notify(context.Background(), Notification{Title: "ignored"})
	})
}

package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLine(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	emit(slog.New(h))
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "relay"), slog.LevelInfo, "relay.to_user",
			slog.String("status", "ok"),
			slog.Int("group_message_id", 555),
		)
	})

	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=relay", "event=relay.to_user", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	require.GreaterOrEqual(t, len(tokens), len(expected), line)
	for i, prefix := range expected {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
	assert.Contains(t, line, "group_message_id=555")
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-json")
	line := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "workflow"), slog.LevelError, "application.submit_failed",
			slog.String("status", "FAIL"),
			slog.Any("err", errors.New("boom")),
		)
	})

	require.True(t, strings.HasPrefix(line, "{"), line)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"workflow"`, `"event":"application.submit_failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		require.NotEqual(t, -1, idx, "missing %s in %s", pref, line)
		require.Greater(t, idx, pos, "out of order %s in %s", pref, line)
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	raw := "123:456:789"
	ctx := WithRID(context.Background(), raw)

	kv := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, kv, "rid="+CompactRID(raw))
	assert.NotContains(t, kv, "rid_full=")

	js := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, js, `"rid":"`+CompactRID(raw)+`"`)
	assert.Contains(t, js, `"rid_full":"`+raw+`"`)
	assert.Contains(t, js, `"ts_unix_nano"`)
}

func TestStructuredHandlerDurationsAndDefaults(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		log.Info("", slog.Duration("duration", 1500*time.Microsecond), slog.String("outcome", "weird"))
	})
	assert.Contains(t, line, "duration_ms=2")
	assert.Contains(t, line, "component=app")
	assert.Contains(t, line, "event=unknown")
	assert.NotContains(t, line, "outcome=")
}

func TestStructuredHandlerGroupsFlatten(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		log.WithGroup("file").Info("file.rejected", slog.String("name", "big report.pdf"))
	})
	assert.Contains(t, line, `file.name="big report.pdf"`)
	assert.Contains(t, line, "event=file.rejected")
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "16.c.z", CompactRID("42:12:35"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "1:x:2", CompactRID("1:x:2"))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "ab\tc", Sanitize("a\u200bb\t\x00c"))
	assert.Equal(t, "héll", SanitizeLimit("héllo", 4))
	assert.Empty(t, SanitizeLimit("x", 0))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	n, d := parseRatioSpec("2/5")
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, d)
	n, d = parseRatioSpec("10")
	assert.Equal(t, 1, n)
	assert.Equal(t, 10, d)
	n, d = parseRatioSpec("x/y")
	assert.Zero(t, n)
	assert.Zero(t, d)
}

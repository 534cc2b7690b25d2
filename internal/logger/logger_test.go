package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and returns a cleanup
// function restoring the previous sink and level.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	saved := current
	mu.Unlock()
	savedLevel := level.Level()

	setSink(sink{w: buf, format: "text"})

	return buf, func() {
		setSink(saved)
		level.Set(savedLevel)
	}
}

func decodeJSONLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	return entry
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		emitted []string
		dropped []string
	}{
		{"DEBUG", []string{"debug-msg", "info-msg", "warn-msg", "error-msg"}, nil},
		{"INFO", []string{"info-msg", "warn-msg", "error-msg"}, []string{"debug-msg"}},
		{"WARN", []string{"warn-msg", "error-msg"}, []string{"debug-msg", "info-msg"}},
		{"ERROR", []string{"error-msg"}, []string{"debug-msg", "info-msg", "warn-msg"}},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			buf, cleanup := captureOutput()
			defer cleanup()

			SetLevel(tc.level)
			Debug("debug-msg")
			Info("info-msg")
			Warn("warn-msg")
			Error("error-msg")

			out := buf.String()
			for _, m := range tc.emitted {
				assert.Contains(t, out, m)
			}
			for _, m := range tc.dropped {
				assert.NotContains(t, out, m)
			}
		})
	}
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	SetLevel("WARN")
	SetLevel("verbose")
	assert.Equal(t, slog.LevelWarn, level.Level())
	assert.False(t, Enabled(slog.LevelInfo))

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, level.Level())
	assert.True(t, Enabled(slog.LevelDebug))
}

func TestTextFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Info("user created", KeyUsername, "alice", KeyRole, "operator", "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "[INFO] user created")
	assert.Contains(t, out, "username=alice")
	assert.Contains(t, out, "role=operator")
	assert.Contains(t, out, `note="two words"`)
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	Info("authentication succeeded", KeyAuthMethod, "directory", KeyFallback, false)

	entry := decodeJSONLine(t, buf)
	assert.Equal(t, "authentication succeeded", entry["msg"])
	assert.Equal(t, "directory", entry["auth_method"])
	assert.Equal(t, false, entry["fallback"])
}

func TestRedaction(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		Info("config applied", "bind_password", "hunter2", "password_hash", "$2a$10$abc")

		out := buf.String()
		assert.NotContains(t, out, "hunter2")
		assert.NotContains(t, out, "$2a$10$abc")
		assert.Contains(t, out, "bind_password="+redactedValue)
	})

	t.Run("JSON", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetFormat("json")
		Info("password changed", "Password", "hunter2")

		entry := decodeJSONLine(t, buf)
		assert.Equal(t, redactedValue, entry["Password"])
	})
}

func TestContextLogging(t *testing.T) {
	t.Run("InjectsRequestFields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetFormat("json")

		lc := NewLogContext("req-1", "10.0.0.7").
			WithUser("alice").
			WithAuthMethod("local").
			WithTrace("abc123", "xyz789")
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "request completed", "extra_field", "value")

		entry := decodeJSONLine(t, buf)
		assert.Equal(t, "abc123", entry[KeyTraceID])
		assert.Equal(t, "xyz789", entry[KeySpanID])
		assert.Equal(t, "req-1", entry[KeyRequestID])
		assert.Equal(t, "10.0.0.7", entry[KeyClientIP])
		assert.Equal(t, "alice", entry[KeyUsername])
		assert.Equal(t, "local", entry[KeyAuthMethod])
		assert.Equal(t, "value", entry["extra_field"])
	})

	t.Run("NilContext", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		//nolint:staticcheck // nil context is tolerated on purpose
		require.NotPanics(t, func() { InfoCtx(nil, "test message") })
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("NoLogContext", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		InfoCtx(context.Background(), "test message")
		assert.Contains(t, buf.String(), "test message")
	})
}

func TestLogContext(t *testing.T) {
	lc := NewLogContext("req-1", "192.168.1.100")
	assert.False(t, lc.StartTime.IsZero())
	assert.GreaterOrEqual(t, lc.DurationMs(), 0.0)

	withUser := lc.WithUser("bob")
	assert.Equal(t, "bob", withUser.Username)
	assert.Empty(t, lc.Username)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Nil(t, nilCtx.WithRoute("/x"))
	assert.Zero(t, nilCtx.DurationMs())
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, KeyUsername, Username("alice").Key)
	assert.Equal(t, KeyDocument, Document("primary").Key)
	assert.Equal(t, "", Err(nil).Key)

	attr := Err(assert.AnError)
	assert.Equal(t, KeyError, attr.Key)
	assert.Contains(t, attr.Value.String(), "assert.AnError")
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent", "worker", n, "iteration", j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 400, strings.Count(buf.String(), "concurrent"))
}

func TestInit(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	t.Run("WithWriter", func(t *testing.T) {
		buf := new(bytes.Buffer)
		InitWithWriter(buf, "DEBUG", "text", false)

		Debug("test message")
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "warden.log")
		require.NoError(t, Init(Config{Level: "INFO", Format: "json", Output: path}))

		Info("to file")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"to file"`)

		// Switching away closes the file.
		InitWithWriter(new(bytes.Buffer), "", "text", false)
	})

	t.Run("BadPath", func(t *testing.T) {
		err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "warden.log")})
		assert.Error(t, err)
	})

	t.Run("EmptyConfig", func(t *testing.T) {
		require.NoError(t, Init(Config{}))
	})
}

func BenchmarkLogCtx(b *testing.B) {
	_, cleanup := captureOutput()
	defer cleanup()
	InitWithWriter(io.Discard, "DEBUG", "json", false)

	ctx := WithContext(context.Background(), NewLogContext("req-1", "10.0.0.1").WithUser("alice"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		InfoCtx(ctx, "test message", "count", i)
	}
}

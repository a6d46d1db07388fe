package libcable

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo)
	logger.(*writerLogger).now = func() time.Time {
		return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	}

	child := logger.WithField("type", "connection").WithField("attempt", "a1")
	child.Debugf("hidden %d", 1)
	child.Infof("state %s -> %s", StateConnecting, StateOpen)
	logger.Warnln("queue full")
	logger.Error("boom")

	assert.Equal(t,
		"[2024-05-01 10:30:00] INFO [attempt=a1, type=connection]: state connecting -> open\n"+
			"[2024-05-01 10:30:00] WARN: queue full\n"+
			"[2024-05-01 10:30:00] ERROR: boom\n",
		buf.String())
}

func TestWriterLogger_WithFieldDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug)

	_ = logger.WithField("type", "child")
	logger.Debug("parent")

	assert.NotContains(t, buf.String(), "type=child")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

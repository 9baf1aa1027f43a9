package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures every log line for assertions.
type recordingLogger struct {
	entries []entry
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *recordingLogger) record(level, msg string, args []any) {
	l.entries = append(l.entries, entry{level: level, msg: msg, args: args})
}

func TestLogToolCall(t *testing.T) {
	l := &recordingLogger{}

	LogToolCall(l, "query_poi", 5*time.Millisecond, nil)
	LogToolCall(l, "query_poi", 5*time.Millisecond, errors.New("backend unavailable"))

	require.Len(t, l.entries, 2)
	assert.Equal(t, "info", l.entries[0].level)
	assert.Equal(t, "tool.call.success", l.entries[0].msg)
	assert.Equal(t, "error", l.entries[1].level)
	assert.Equal(t, "tool.call.error", l.entries[1].msg)
	assert.Contains(t, l.entries[1].args, "backend unavailable")
}

func TestLogModelCall(t *testing.T) {
	l := &recordingLogger{}

	LogModelCall(l, "planner", "mock", 42, time.Millisecond, nil)
	LogModelCall(l, "planner", "mock", 0, time.Millisecond, errors.New("rate limited"))

	require.Len(t, l.entries, 2)
	assert.Equal(t, "model.call.complete", l.entries[0].msg)
	assert.Contains(t, l.entries[0].args, 42)
	assert.Equal(t, "model.call.error", l.entries[1].msg)
	assert.Contains(t, l.entries[1].args, "rate limited")
}

func TestLogNodeRun(t *testing.T) {
	l := &recordingLogger{}

	LogNodeRun(l, "planner", "worker", 3, time.Millisecond, nil)
	LogNodeRun(l, "planner", "", 0, time.Millisecond, errors.New("node blew up"))

	require.Len(t, l.entries, 2)
	assert.Equal(t, "graph.node.complete", l.entries[0].msg)
	assert.Contains(t, l.entries[0].args, "worker")
	assert.Equal(t, "graph.node.error", l.entries[1].msg)
	assert.Contains(t, l.entries[1].args, "node blew up")
}

package libcable

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel is the minimum level a writer logger emits.
type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// writerLogger writes one plain-text line per entry to an io.Writer. Fields are printed in key order so output is
// stable enough to assert on.
type writerLogger struct {
	mu     *sync.Mutex
	writer io.Writer
	level  LogLevel
	fields map[string]any
	now    func() time.Time
}

// NewWriterLogger creates a Logger writing entries at or above level to w.
func NewWriterLogger(w io.Writer, level LogLevel) Logger {
	return &writerLogger{
		mu:     &sync.Mutex{},
		writer: w,
		level:  level,
		fields: make(map[string]any),
		now:    time.Now,
	}
}

func (l *writerLogger) WithField(key string, value any) Logger {
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	return &writerLogger{
		mu:     l.mu,
		writer: l.writer,
		level:  l.level,
		fields: fields,
		now:    l.now,
	}
}

func (l *writerLogger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" [")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, l.fields[k])
	}
	b.WriteString("]")
	return b.String()
}

func (l *writerLogger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.writer, "[%s] %s%s: %s\n",
		l.now().Format("2006-01-02 15:04:05"), level, l.formatFields(), strings.TrimSuffix(msg, "\n"))
}

func (l *writerLogger) Debug(args ...any) { l.log(LevelDebug, fmt.Sprint(args...)) }

func (l *writerLogger) Debugf(format string, args ...any) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Debugln(args ...any) { l.log(LevelDebug, fmt.Sprintln(args...)) }

func (l *writerLogger) Info(args ...any) { l.log(LevelInfo, fmt.Sprint(args...)) }

func (l *writerLogger) Infof(format string, args ...any) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Infoln(args ...any) { l.log(LevelInfo, fmt.Sprintln(args...)) }

func (l *writerLogger) Warn(args ...any) { l.log(LevelWarn, fmt.Sprint(args...)) }

func (l *writerLogger) Warnf(format string, args ...any) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Warnln(args ...any) { l.log(LevelWarn, fmt.Sprintln(args...)) }

func (l *writerLogger) Error(args ...any) { l.log(LevelError, fmt.Sprint(args...)) }

func (l *writerLogger) Errorf(format string, args ...any) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Errorln(args ...any) { l.log(LevelError, fmt.Sprintln(args...)) }

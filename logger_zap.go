package libcable

import (
	"go.uber.org/zap"
)

// zapLogger adapts a zap sugared logger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil logger yields a no-op logger.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return NewZapLogger(zap.NewNop())
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{sugar: l.sugar.With(key, value)}
}

func (l *zapLogger) Debug(args ...any)                 { l.sugar.Debug(args...) }
func (l *zapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Debugln(args ...any)               { l.sugar.Debugln(args...) }
func (l *zapLogger) Info(args ...any)                  { l.sugar.Info(args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Infoln(args ...any)                { l.sugar.Infoln(args...) }
func (l *zapLogger) Warn(args ...any)                  { l.sugar.Warn(args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Warnln(args ...any)                { l.sugar.Warnln(args...) }
func (l *zapLogger) Error(args ...any)                 { l.sugar.Error(args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Errorln(args ...any)               { l.sugar.Errorln(args...) }

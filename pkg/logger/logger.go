package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	zl *zap.Logger
}

func New() *Logger {
	return newLogger(zapcore.AddSync(os.Stdout))
}

func newLogger(w zapcore.WriteSyncer) *Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		w,
		zapcore.DebugLevel,
	)

	// Skip the Logger method itself so lines are attributed to its caller.
	return &Logger{zl: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// wrapped returns a logger that skips one more frame, for use behind a
// forwarding function.
func (l *Logger) wrapped() *Logger {
	return &Logger{zl: l.zl.WithOptions(zap.AddCallerSkip(1))}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug(fmt.Sprintf(format, v...))
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.zl.Fatal(fmt.Sprintf(format, v...))
}

// Global logger instance
var GlobalLogger = New()

// The package-level funcs add a forwarding frame, so they log through a
// wrapped instance to keep caller attribution on their caller.
var global = GlobalLogger.wrapped()

// Convenience functions
func Info(format string, v ...interface{}) {
	global.Info(format, v...)
}

func Error(format string, v ...interface{}) {
	global.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	global.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	global.Fatal(format, v...)
}

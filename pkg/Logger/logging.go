package Logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

// BuildLogger constructs the application logger. Records are written as JSON
// lines to <logDir>/app.jsonl ({timestamp, level, name, message, ...props})
// and human-readable to stderr. Component names come from Named().
func BuildLogger(debug bool, logDir string) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.LevelKey = "level"
	encCfg.NameKey = "name"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	var cores []zapcore.Core

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(logDir, "app.jsonl"),
				os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err == nil {
				cores = append(cores, zapcore.NewCore(
					zapcore.NewJSONEncoder(encCfg),
					zapcore.AddSync(f),
					level,
				))
			}
		}
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores = append(cores, zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleCfg),
		zapcore.Lock(os.Stderr),
		level,
	))

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return &Logger{logger.Sugar()}
}

func New(debug bool, logDir string) *Logger {
	return BuildLogger(debug, logDir)
}

// Component returns a child logger carrying the component name in the
// JSONL "name" field.
func (l *Logger) Component(name string) *Logger {
	return &Logger{l.Named(name)}
}

// Nop returns a logger that discards everything; for tests.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

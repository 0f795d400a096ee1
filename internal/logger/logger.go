// Package logger builds the zap logger shared by the server, the migration
// tool and the background consumer.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logger.  level is one of debug, info, warn, error (default
// info); format is "json" or "console".  When file is non-empty, records are
// also written as JSON to a size-rotated file.
func New(level, format, file string) (*zap.Logger, error) {
	lvl := parseLevel(level)

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if file == "" {
		return cfg.Build()
	}

	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}
	var stdoutEnc zapcore.Encoder
	if format == "console" {
		stdoutEnc = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	} else {
		stdoutEnc = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	}
	fileEncCfg := zap.NewProductionEncoderConfig()
	fileEncCfg.TimeKey = "timestamp"
	fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), zapcore.AddSync(rotating), cfg.Level),
		zapcore.NewCore(stdoutEnc, zapcore.Lock(os.Stdout), cfg.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"ReviewScraper/pkg/config"
)

// DefaultEncoderConfig is the production encoder config with capital levels and ISO8601 time.
func DefaultEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

// DefaultOption adds caller info and records stack traces only from DPanic up.
func DefaultOption() []zap.Option {
	var stackTraceLevel zap.LevelEnablerFunc = func(level zapcore.Level) bool {
		return level >= zapcore.DPanicLevel
	}
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(stackTraceLevel),
	}
}

// DefaultLumberjackLogger rotates at 200MB, compresses old files and uses local time.
func DefaultLumberjackLogger() *lumberjack.Logger {
	return &lumberjack.Logger{
		MaxSize:   200,
		LocalTime: true,
		Compress:  true,
	}
}

// New builds the application logger: stderr always, plus a rotating file when cfg.File is set.
// The returned closer flushes the file writer; lumberjack has no Sync, so callers must Close it
// before exit.
func New(cfg config.LoggingConfig) (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(DefaultEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(DefaultEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		writer := DefaultLumberjackLogger()
		writer.Filename = cfg.File
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(DefaultEncoderConfig()), zapcore.AddSync(writer), level))
		closer = writer
	}

	return zap.New(zapcore.NewTee(cores...), DefaultOption()...), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

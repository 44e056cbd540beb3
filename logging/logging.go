// Package logging builds the zap loggers used across the module.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and encoding.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
	// Format is "console" or "json".
	Format string `json:"format" yaml:"format"`
	// OutputPaths defaults to stderr so stdout stays free for results.
	OutputPaths []string `json:"output_paths" yaml:"output_paths"`
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", OutputPaths: []string{"stderr"}}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(levelOrDefault(c.Level)); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return strings.ToLower(level)
}

// NewZapConfig returns a zap.Config with production keys, ISO8601 times and
// no stacktraces. Console output uses colored capital levels.
func NewZapConfig(c Config) (zap.Config, error) {
	if err := c.Validate(); err != nil {
		return zap.Config{}, err
	}
	level, _ := zapcore.ParseLevel(levelOrDefault(c.Level))

	encoding := strings.ToLower(c.Format)
	if encoding == "" {
		encoding = "console"
	}
	encodeLevel := zapcore.CapitalColorLevelEncoder
	if encoding == "json" {
		encodeLevel = zapcore.LowercaseLevelEncoder
	}

	outputs := c.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}, nil
}

// New builds a named logger from c.
func New(name string, c Config) (*zap.Logger, error) {
	zc, err := NewZapConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(name), nil
}

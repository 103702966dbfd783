/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logging provides the leveled logger used by both roles.
//
// It keeps the small printf style surface (tracef/debugf/infof/warnf/errorf)
// and delegates to zap for encoding, levels and output paths.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLevel overrides the configured level when set, e.g. SHMTABLE_LOG_LEVEL=debug.
const EnvLevel = "SHMTABLE_LOG_LEVEL"

// Logger wraps a zap.SugaredLogger.
type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "trace", "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// DefaultConfig returns the configuration used by the command line tools.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Development: true,
		OutputPaths: []string{"stdout"},
	}
}

// New creates a logger from cfg. EnvLevel, when set, wins over cfg.Level.
func New(cfg Config) (*Logger, error) {
	levelName := cfg.Level
	if env := os.Getenv(EnvLevel); env != "" {
		levelName = env
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoding := "json"
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
		encoding = "console"
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	base, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return wrap(base), nil
}

// NewWithCore builds a logger on top of an existing core.
func NewWithCore(core zapcore.Core) *Logger {
	return wrap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

func wrap(base *zap.Logger) *Logger {
	return &Logger{base: base, sugar: base.Sugar()}
}

// ParseLevel maps a level name to a zap level. "trace" is an alias of debug.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Named returns a child logger, e.g. "producer".
func (l *Logger) Named(name string) *Logger {
	return wrap(l.base.Named(name))
}

// With returns a child logger carrying key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	child := l.sugar.With(keysAndValues...)
	return &Logger{base: child.Desugar(), sugar: child}
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Tracef(format string, a ...interface{}) {
	l.sugar.Debugf(format, a...)
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.sugar.Debugf(format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.sugar.Infof(format, a...)
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	l.sugar.Warnf(format, a...)
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.sugar.Errorf(format, a...)
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}

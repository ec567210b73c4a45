// Copyright 2023 Silt Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig is the logging section of the engine configuration.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Filename enables a rotated file sink when non-empty.
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxDays    int    `toml:"max-days"`
	MaxBackups int    `toml:"max-backups"`
}

var globalLogger atomic.Pointer[zap.Logger]

func init() {
	SetupGlobalLogger(LogConfig{Level: "info", Format: "console"})
}

// SetupGlobalLogger replaces the process-wide logger.
func SetupGlobalLogger(conf LogConfig) {
	level := zapcore.InfoLevel
	if conf.Level != "" {
		if err := level.Set(conf.Level); err != nil {
			level = zapcore.InfoLevel
		}
	}

	encConf := zap.NewProductionEncoderConfig()
	encConf.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if conf.Format == "json" {
		enc = zapcore.NewJSONEncoder(encConf)
	} else {
		encConf.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encConf)
	}

	var sink zapcore.WriteSyncer
	if conf.Filename != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.Filename,
			MaxSize:    conf.MaxSize,
			MaxAge:     conf.MaxDays,
			MaxBackups: conf.MaxBackups,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	logger := zap.New(zapcore.NewCore(enc, sink, level), zap.AddCallerSkip(1))
	globalLogger.Store(logger)
}

func GetGlobalLogger() *zap.Logger {
	return globalLogger.Load()
}

// DebugEnabled gates row-level tracing on hot paths, where even building
// the log arguments is too expensive to do unconditionally.
func DebugEnabled() bool {
	return GetGlobalLogger().Core().Enabled(zapcore.DebugLevel)
}

// Adjust returns the given logger, or the global one when nil.
func Adjust(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return GetGlobalLogger()
}

func Debug(msg string, fields ...zap.Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetGlobalLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetGlobalLogger().Fatal(msg, fields...)
}

func Debugf(msg string, args ...any) {
	GetGlobalLogger().Sugar().Debugf(msg, args...)
}

func Infof(msg string, args ...any) {
	GetGlobalLogger().Sugar().Infof(msg, args...)
}

func Warnf(msg string, args ...any) {
	GetGlobalLogger().Sugar().Warnf(msg, args...)
}

func Errorf(msg string, args ...any) {
	GetGlobalLogger().Sugar().Errorf(msg, args...)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"sync"

	"github.com/orgvault/orgvault-go/pkg/internal/common/logging/metadata"
	"github.com/orgvault/orgvault-go/pkg/internal/common/logging/modlog"
	spilog "github.com/orgvault/orgvault-go/spi/log"
)

const (
	// loggerNotInitializedMsg is used when a logger is not initialized before logging.
	loggerNotInitializedMsg = "Default logger initialized (please call log.Initialize() if you wish to use a custom logger)"
	loggerModule            = "orgvault/common"
)

// Level is a log level for a logging message.
type Level = spilog.Level

// Log levels.
const (
	CRITICAL = spilog.CRITICAL
	ERROR    = spilog.ERROR
	WARNING  = spilog.WARNING
	INFO     = spilog.INFO
	DEBUG    = spilog.DEBUG
)

// Log is an implementation of the spi Logger interface.
// It encapsulates the default or a custom logger to provide module and level based logging.
type Log struct {
	instance spilog.Logger
	module   string
	once     sync.Once
}

// New creates and returns a Logger implementation based on the given module name.
// note: the underlying logger instance is lazy initialized on first use.
// To use your own logger implementation provide a logger provider in 'Initialize()' before logging any line.
// If 'Initialize()' is not called before logging any line then the default logging implementation is used.
func New(module string) *Log {
	return &Log{module: module}
}

// loggerProviderInstance is the logger factory singleton - access only via loggerProvider().
//
//nolint:gochecknoglobals
var (
	loggerProviderInstance spilog.LoggerProvider
	loggerProviderOnce     sync.Once
)

// Initialize sets a new custom logging provider which takes over logging operations.
// It must be called before the first log line is produced for the custom provider to take effect.
func Initialize(l spilog.LoggerProvider) {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = modlog.ModuledLoggerProvider(modlog.WithCustomProvider(l))
		logger := loggerProviderInstance.GetLogger(loggerModule)
		logger.Debugf("Logger provider initialized")
	})
}

func loggerProvider() spilog.LoggerProvider {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = modlog.ModuledLoggerProvider()
		logger := loggerProviderInstance.GetLogger(loggerModule)
		logger.Debugf(loggerNotInitializedMsg)
	})

	return loggerProviderInstance
}

// Fatalf calls the Fatalf function of the underlying logger.
// Should possibly cause system shutdown based on implementation.
func (l *Log) Fatalf(msg string, args ...interface{}) {
	l.logger().Fatalf(msg, args...)
}

// Panicf calls the Panicf function of the underlying logger.
// Should possibly cause a panic based on implementation.
func (l *Log) Panicf(msg string, args ...interface{}) {
	l.logger().Panicf(msg, args...)
}

// Debugf calls the Debugf function of the underlying logger.
func (l *Log) Debugf(msg string, args ...interface{}) {
	l.logger().Debugf(msg, args...)
}

// Infof calls the Infof function of the underlying logger.
func (l *Log) Infof(msg string, args ...interface{}) {
	l.logger().Infof(msg, args...)
}

// Warnf calls the Warnf function of the underlying logger.
func (l *Log) Warnf(msg string, args ...interface{}) {
	l.logger().Warnf(msg, args...)
}

// Errorf calls the Errorf function of the underlying logger.
func (l *Log) Errorf(msg string, args ...interface{}) {
	l.logger().Errorf(msg, args...)
}

func (l *Log) logger() spilog.Logger {
	l.once.Do(func() {
		l.instance = loggerProvider().GetLogger(l.module)
	})

	return l.instance
}

// SetLevel sets the log level for given module.
// If not set, the default logging level is info.
func SetLevel(module string, level Level) {
	metadata.SetLevel(module, level)
}

// GetLevel returns the log level for given module.
func GetLevel(module string) Level {
	return metadata.GetLevel(module)
}

// IsEnabledFor checks if the given log level is enabled for given module.
func IsEnabledFor(module string, level Level) bool {
	return metadata.IsEnabledFor(module, level)
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (Level, error) {
	return metadata.ParseLevel(level)
}

// ShowCallerInfo enables caller info in log lines for given log level and module.
func ShowCallerInfo(module string, level Level) {
	metadata.ShowCallerInfo(module, level)
}

// HideCallerInfo disables caller info in log lines for given log level and module.
func HideCallerInfo(module string, level Level) {
	metadata.HideCallerInfo(module, level)
}

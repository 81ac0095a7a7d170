/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/orgvault/orgvault-go/pkg/internal/common/logging/metadata"
	spilog "github.com/orgvault/orgvault-go/spi/log"
)

const (
	logLevelFormatter   = "UTC %s-> %s "
	callerInfoFormatter = "- %s "
)

// defLog is the built-in logger implementation backed by the standard library logger.
type defLog struct {
	logger *log.Logger
	module string
}

// Fatalf is a CRITICAL log formatted followed by a call to os.Exit(1).
func (l *defLog) Fatalf(format string, args ...interface{}) {
	l.logf(spilog.CRITICAL, format, args...)
	os.Exit(1)
}

// Panicf is a CRITICAL log formatted followed by a call to panic().
func (l *defLog) Panicf(format string, args ...interface{}) {
	l.logf(spilog.CRITICAL, format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *defLog) Debugf(format string, args ...interface{}) {
	l.logf(spilog.DEBUG, format, args...)
}

func (l *defLog) Infof(format string, args ...interface{}) {
	l.logf(spilog.INFO, format, args...)
}

func (l *defLog) Warnf(format string, args ...interface{}) {
	l.logf(spilog.WARNING, format, args...)
}

func (l *defLog) Errorf(format string, args ...interface{}) {
	l.logf(spilog.ERROR, format, args...)
}

func (l *defLog) logf(level spilog.Level, format string, args ...interface{}) {
	prefix := fmt.Sprintf(logLevelFormatter, l.getCallerInfo(level), metadata.ParseString(level))

	err := l.logger.Output(3, prefix+fmt.Sprintf(format, args...)) //nolint:gomnd
	if err != nil {
		fmt.Printf("error from logger.Output %v\n", err)
	}
}

// getCallerInfo returns the caller function of the log line, if enabled for the
// module and level.
func (l *defLog) getCallerInfo(level spilog.Level) string {
	if !metadata.IsCallerInfoEnabled(l.module, level) {
		return ""
	}

	const (
		maxCallers  = 6 // search maxCallers frames for the real caller
		skipCallers = 5 // skip logging wrapper frames when determining the real caller
		notFound    = "n/a"
	)

	fpcs := make([]uintptr, maxCallers)

	n := runtime.Callers(skipCallers, fpcs)
	if n == 0 {
		return fmt.Sprintf(callerInfoFormatter, notFound)
	}

	frames := runtime.CallersFrames(fpcs[:n])

	f, _ := frames.Next()
	if f.Function == "" {
		return fmt.Sprintf(callerInfoFormatter, notFound)
	}

	_, fnName := filepath.Split(f.Function)

	return fmt.Sprintf(callerInfoFormatter, fnName)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orgvault/orgvault-go/pkg/internal/common/logging/metadata"
	spilog "github.com/orgvault/orgvault-go/spi/log"
)

const testModule = "modlog-test-module"

// recordingLogger remembers every line it was asked to log.
type recordingLogger struct {
	lock  sync.Mutex
	lines []string
}

func (r *recordingLogger) record(level, msg string, args ...interface{}) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.lines = append(r.lines, level+": "+fmt.Sprintf(msg, args...))
}

func (r *recordingLogger) Fatalf(msg string, args ...interface{}) { r.record("FATAL", msg, args...) }
func (r *recordingLogger) Panicf(msg string, args ...interface{}) { r.record("PANIC", msg, args...) }
func (r *recordingLogger) Debugf(msg string, args ...interface{}) { r.record("DEBUG", msg, args...) }
func (r *recordingLogger) Infof(msg string, args ...interface{})  { r.record("INFO", msg, args...) }
func (r *recordingLogger) Warnf(msg string, args ...interface{})  { r.record("WARN", msg, args...) }
func (r *recordingLogger) Errorf(msg string, args ...interface{}) { r.record("ERROR", msg, args...) }

type recordingProvider struct {
	logger *recordingLogger
}

func (p *recordingProvider) GetLogger(string) spilog.Logger {
	return p.logger
}

func TestModuledLoggerLevels(t *testing.T) {
	recorder := &recordingLogger{}
	provider := ModuledLoggerProvider(WithCustomProvider(&recordingProvider{logger: recorder}))

	logger := provider.GetLogger(testModule)

	metadata.SetLevel(testModule, spilog.INFO)

	logger.Debugf("hidden %s", "line")
	logger.Infof("visible info")
	logger.Warnf("visible warning")
	logger.Errorf("visible error")

	require.Equal(t, []string{
		"INFO: visible info",
		"WARN: visible warning",
		"ERROR: visible error",
	}, recorder.lines)

	metadata.SetLevel(testModule, spilog.DEBUG)

	logger.Debugf("now visible")
	require.Contains(t, recorder.lines, "DEBUG: now visible")

	metadata.SetLevel(testModule, spilog.CRITICAL)

	logger.Errorf("suppressed")
	require.NotContains(t, recorder.lines, "ERROR: suppressed")
}

func TestModuledLoggerDefaultProvider(t *testing.T) {
	provider := ModuledLoggerProvider()

	logger := provider.GetLogger(testModule)
	require.NotNil(t, logger)

	// writes go to stderr; only verifying that the default path does not blow up
	logger.Infof("default logger line %d", 1)
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"log"
	"os"

	"github.com/orgvault/orgvault-go/pkg/internal/common/logging/metadata"
	spilog "github.com/orgvault/orgvault-go/spi/log"
)

// ModuledLoggerProvider returns a LoggerProvider that enforces module-based log
// levels on top of the given provider. If no provider is given, then the
// built-in logger writing to stderr is used.
func ModuledLoggerProvider(opts ...Opt) spilog.LoggerProvider {
	providerOpts := &providerOpts{}

	for _, opt := range opts {
		opt(providerOpts)
	}

	return &provider{custom: providerOpts.custom}
}

// Opt is an option for the moduled logger provider.
type Opt func(*providerOpts)

type providerOpts struct {
	custom spilog.LoggerProvider
}

// WithCustomProvider replaces the built-in logger implementation with a custom one.
func WithCustomProvider(custom spilog.LoggerProvider) Opt {
	return func(opts *providerOpts) {
		opts.custom = custom
	}
}

type provider struct {
	custom spilog.LoggerProvider
}

func (p *provider) GetLogger(module string) spilog.Logger {
	if p.custom != nil {
		return &modLog{logger: p.custom.GetLogger(module), module: module}
	}

	return &modLog{
		logger: &defLog{logger: log.New(os.Stderr, " ["+module+"] ", log.Ldate|log.Ltime|log.LUTC), module: module},
		module: module,
	}
}

// modLog enforces the configured module log level before delegating to the
// underlying logger implementation.
type modLog struct {
	logger spilog.Logger
	module string
}

func (m *modLog) Fatalf(format string, args ...interface{}) {
	m.logger.Fatalf(format, args...)
}

func (m *modLog) Panicf(format string, args ...interface{}) {
	m.logger.Panicf(format, args...)
}

func (m *modLog) Debugf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, spilog.DEBUG) {
		return
	}

	m.logger.Debugf(format, args...)
}

func (m *modLog) Infof(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, spilog.INFO) {
		return
	}

	m.logger.Infof(format, args...)
}

func (m *modLog) Warnf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, spilog.WARNING) {
		return
	}

	m.logger.Warnf(format, args...)
}

func (m *modLog) Errorf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, spilog.ERROR) {
		return
	}

	m.logger.Errorf(format, args...)
}

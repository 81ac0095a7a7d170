/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

import (
	"errors"
	"strings"
	"sync"

	"github.com/orgvault/orgvault-go/spi/log"
)

const (
	defaultLogLevel   = log.INFO
	defaultModuleName = ""
)

// levelNames - log level names in string.
var levelNames = []string{ //nolint:gochecknoglobals
	"CRITICAL",
	"ERROR",
	"WARNING",
	"INFO",
	"DEBUG",
}

//nolint:gochecknoglobals
var (
	rwmutex     = &sync.RWMutex{}
	levels      = &moduleLevels{levels: make(map[string]log.Level)}
	callerInfos = &callerInfo{}
)

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (log.Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(name, level) {
			return log.Level(i), nil
		}
	}

	return log.ERROR, errors.New("logger: invalid log level")
}

// ParseString returns string representation of given log level.
func ParseString(level log.Level) string {
	return levelNames[level]
}

// SetLevel - setting log level for given module.
func SetLevel(module string, level log.Level) {
	rwmutex.Lock()
	defer rwmutex.Unlock()
	levels.levels[module] = level
}

// GetLevel - getting log level for given module.
func GetLevel(module string) log.Level {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return levels.getLevel(module)
}

// IsEnabledFor - check if given log level is enabled for given module.
func IsEnabledFor(module string, level log.Level) bool {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return level <= levels.getLevel(module)
}

// ShowCallerInfo - show caller info in log lines for given log level and module.
func ShowCallerInfo(module string, level log.Level) {
	rwmutex.Lock()
	defer rwmutex.Unlock()
	callerInfos.set(module, level, true)
}

// HideCallerInfo - do not show caller info in log lines for given log level and module.
func HideCallerInfo(module string, level log.Level) {
	rwmutex.Lock()
	defer rwmutex.Unlock()
	callerInfos.set(module, level, false)
}

// IsCallerInfoEnabled - returns if caller info enabled for given log level and module.
func IsCallerInfoEnabled(module string, level log.Level) bool {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return callerInfos.enabled(module, level)
}

// moduleLevels maintains log levels based on modules.
type moduleLevels struct {
	levels map[string]log.Level
}

func (l *moduleLevels) getLevel(module string) log.Level {
	level, exists := l.levels[module]
	if !exists {
		level, exists = l.levels[defaultModuleName]
		// no configuration exists, default to info
		if !exists {
			return defaultLogLevel
		}
	}

	return level
}

type callerInfoKey struct {
	module string
	level  log.Level
}

// callerInfo maintains module-level based settings to show or hide caller info.
type callerInfo struct {
	showcaller map[callerInfoKey]bool
}

func (c *callerInfo) set(module string, level log.Level, enabled bool) {
	if c.showcaller == nil {
		c.showcaller = defaultCallerInfoSetting()
	}

	c.showcaller[callerInfoKey{module, level}] = enabled
}

func (c *callerInfo) enabled(module string, level log.Level) bool {
	if c.showcaller == nil {
		c.showcaller = defaultCallerInfoSetting()
	}

	enabled, exists := c.showcaller[callerInfoKey{module, level}]
	if !exists {
		// no setting exists for given module, fall back to the default
		return c.showcaller[callerInfoKey{defaultModuleName, level}]
	}

	return enabled
}

func defaultCallerInfoSetting() map[callerInfoKey]bool {
	return map[callerInfoKey]bool{
		{defaultModuleName, log.CRITICAL}: true,
		{defaultModuleName, log.ERROR}:    true,
		{defaultModuleName, log.WARNING}:  true,
		{defaultModuleName, log.INFO}:     true,
		{defaultModuleName, log.DEBUG}:    true,
	}
}

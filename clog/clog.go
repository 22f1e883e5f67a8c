// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog provides the pluggable logging facade used throughout the
// node: datatypes, modules, the poller and the dispatcher all log through
// a LogProvider rather than a concrete backend.
package clog

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogProvider RFC5424 log message levels Critical, Error, Warn, Debug and Info
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	// With returns a child provider carrying an additional field, mirroring
	// frappy/secnode.py's self.log.parent.getChild(modulename).
	With(key, value string) LogProvider
}

// Clog is the internal debugging/observability handle handed to every
// module, the poller and the dispatcher.
type Clog struct {
	provider LogProvider
	// is log output enabled,1: enable, 0: disable
	has uint32
}

// NewLogger creates a new Clog backed by a zerolog console writer tagged
// with the given component name.
func NewLogger(name string) Clog {
	return NewLoggerFrom(zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", name).Logger())
}

// NewLoggerFrom wraps an already-configured zerolog.Logger; NewLogger is
// built on it. Per-module child loggers come from Clog.With instead.
func NewLoggerFrom(l zerolog.Logger) Clog {
	return Clog{
		provider: zerologProvider{l},
		has:      1,
	}
}

// LogMode set enable or disable log output when you has set provider
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider set provider provider
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// With returns a Clog scoped to the given field, e.g. the owning module
// name, without mutating the receiver.
func (sf Clog) With(key, value string) Clog {
	if sf.provider == nil {
		return sf
	}
	child := sf
	child.provider = sf.provider.With(key, value)
	return child
}

// Critical Log CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

// Error Log ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

// Warn Log WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

// Debug Log DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}

// Info Log INFO level message.
func (sf Clog) Info(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Info(format, v...)
	}
}

// zerologProvider is the default LogProvider, backed by github.com/rs/zerolog.
type zerologProvider struct {
	l zerolog.Logger
}

var _ LogProvider = zerologProvider{}

func (sf zerologProvider) Critical(format string, v ...interface{}) {
	sf.l.Error().Str("level", "critical").Msgf(format, v...)
}

func (sf zerologProvider) Error(format string, v ...interface{}) {
	sf.l.Error().Msgf(format, v...)
}

func (sf zerologProvider) Warn(format string, v ...interface{}) {
	sf.l.Warn().Msgf(format, v...)
}

func (sf zerologProvider) Debug(format string, v ...interface{}) {
	sf.l.Debug().Msgf(format, v...)
}

func (sf zerologProvider) Info(format string, v ...interface{}) {
	sf.l.Info().Msgf(format, v...)
}

func (sf zerologProvider) With(key, value string) LogProvider {
	return zerologProvider{sf.l.With().Str(key, value).Logger()}
}

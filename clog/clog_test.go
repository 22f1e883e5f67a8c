// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package clog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	calls  *[]string
	fields map[string]string
}

func newFakeProvider() (Clog, *[]string) {
	calls := &[]string{}
	c := Clog{}
	c.LogMode(true)
	c.SetLogProvider(fakeProvider{calls: calls, fields: map[string]string{}})
	return c, calls
}

func (f fakeProvider) Critical(format string, v ...interface{}) { *f.calls = append(*f.calls, "critical") }
func (f fakeProvider) Error(format string, v ...interface{})    { *f.calls = append(*f.calls, "error") }
func (f fakeProvider) Warn(format string, v ...interface{})     { *f.calls = append(*f.calls, "warn") }
func (f fakeProvider) Debug(format string, v ...interface{})    { *f.calls = append(*f.calls, "debug") }
func (f fakeProvider) Info(format string, v ...interface{})     { *f.calls = append(*f.calls, "info") }
func (f fakeProvider) With(key, value string) LogProvider {
	child := map[string]string{key: value}
	for k, v := range f.fields {
		child[k] = v
	}
	return fakeProvider{calls: f.calls, fields: child}
}

func TestLogModeGatesOutput(t *testing.T) {
	c, calls := newFakeProvider()
	c.Info("hello")
	require := assert.New(t)
	require.Equal([]string{"info"}, *calls)

	c.LogMode(false)
	c.Info("should be suppressed")
	require.Equal([]string{"info"}, *calls, "disabled Clog drops further calls")

	c.LogMode(true)
	c.Warn("resumed")
	require.Equal([]string{"info", "warn"}, *calls)
}

func TestWithReturnsIndependentChildLogger(t *testing.T) {
	c, calls := newFakeProvider()
	child := c.With("module", "sensor")

	child.Error("boom")
	c.Debug("parent still works")

	assert.Equal(t, []string{"error", "debug"}, *calls)
}

func TestNewLoggerIsEnabledByDefault(t *testing.T) {
	l := NewLogger("test")
	assert.Equal(t, uint32(1), l.has, "a new logger starts with output enabled")
	assert.NotPanics(t, func() {
		l.Info("ready")
	})
}

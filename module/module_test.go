// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package module

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secoptype"
)

func newTestModule() *Module {
	m := NewModule("sensor", "a test sensor", clog.NewLogger("test"))
	m.AddAccessible(accessible.NewParameter("value", "value", secoptype.NewFloatRange(-100, 100), true))
	m.AddAccessible(accessible.NewParameter("target", "target", secoptype.NewFloatRange(-100, 100), false))
	m.AddAccessible(accessible.NewCommand("stop", "stop", secoptype.NewCommandType(nil, nil)))
	return m
}

func TestReadParamInvokesBoundFunc(t *testing.T) {
	m := newTestModule()
	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) {
		return accessible.Value(3.5), nil
	})

	v, err := m.ReadParam("value")
	require.Nil(t, err)
	assert.Equal(t, 3.5, v)

	cached, _, cerr := m.Cached("value")
	require.Nil(t, cerr)
	assert.Equal(t, 3.5, cached)
}

func TestReadParamWithoutBoundFuncReturnsCache(t *testing.T) {
	m := newTestModule()
	v, err := m.ReadParam("value")
	require.Nil(t, err)
	assert.Nil(t, v)
}

func TestChangeParamRejectsReadOnly(t *testing.T) {
	m := newTestModule()
	_, err := m.ChangeParam("value", 1.0)
	require.NotNil(t, err)
	assert.Equal(t, "ReadOnly", err.Name())
}

func TestChangeParamValidatesAndAnnounces(t *testing.T) {
	m := newTestModule()
	var seen []any
	m.Subscribe(func(moduleName, paramName string, value any, ts time.Time, err secoperr.Error) {
		seen = append(seen, value)
	})

	v, err := m.ChangeParam("target", 50.0)
	require.Nil(t, err)
	assert.Equal(t, 50.0, v)
	require.Len(t, seen, 1)
	assert.Equal(t, 50.0, seen[0])
}

func TestChangeParamRangeError(t *testing.T) {
	m := newTestModule()
	_, err := m.ChangeParam("target", 1000.0)
	require.NotNil(t, err)
	assert.Equal(t, "RangeError", err.Name())
}

func TestAnnounceUpdateCoalescesWithinWindow(t *testing.T) {
	m := newTestModule()
	p, _ := m.parameter("target")
	p.UpdateUnchanged = accessible.UpdateUnchangedPolicy{Seconds: 3600}
	count := 0
	m.Subscribe(func(string, string, any, time.Time, secoperr.Error) { count++ })

	now := time.Now()
	m.announceUpdate("target", 1.0, nil, now)
	m.announceUpdate("target", 1.0, nil, now.Add(time.Millisecond))

	assert.Equal(t, 1, count, "identical value within the coalescing window announces once")
}

func TestAnnounceUpdateDedupsIdenticalConsecutiveErrors(t *testing.T) {
	m := newTestModule()
	count := 0
	m.Subscribe(func(string, string, any, time.Time, secoperr.Error) { count++ })

	now := time.Now()
	m.announceUpdate("target", nil, secoperr.CommunicationFailed("timeout"), now)
	m.announceUpdate("target", nil, secoperr.CommunicationFailed("timeout"), now.Add(time.Millisecond))

	assert.Equal(t, 1, count, "two consecutive identical errors announce exactly once")
}

func TestAnnounceUpdateAnnouncesWhenErrorChanges(t *testing.T) {
	m := newTestModule()
	count := 0
	m.Subscribe(func(string, string, any, time.Time, secoperr.Error) { count++ })

	now := time.Now()
	m.announceUpdate("target", nil, secoperr.CommunicationFailed("timeout"), now)
	m.announceUpdate("target", nil, secoperr.CommunicationFailed("reset by peer"), now.Add(time.Millisecond))

	assert.Equal(t, 2, count, "a differing error message re-announces")
}

func TestAnnounceUpdateAnnouncesWhenErrorReplacesValue(t *testing.T) {
	m := newTestModule()
	count := 0
	m.Subscribe(func(string, string, any, time.Time, secoperr.Error) { count++ })

	now := time.Now()
	m.announceUpdate("target", 1.0, nil, now)
	m.announceUpdate("target", nil, secoperr.CommunicationFailed("timeout"), now.Add(time.Millisecond))

	assert.Equal(t, 2, count, "an error replacing a clean value always announces")
}

func TestDoCommandNoArgNoResult(t *testing.T) {
	m := newTestModule()
	called := false
	m.BindDo("stop", func(any) (any, secoperr.Error) {
		called = true
		return nil, nil
	})

	_, err := m.DoCommand("stop", nil)
	require.Nil(t, err)
	assert.True(t, called)
}

func TestDoCommandUnknownCommand(t *testing.T) {
	m := newTestModule()
	_, err := m.DoCommand("nope", nil)
	require.NotNil(t, err)
	assert.Equal(t, "NoSuchCommand", err.Name())
}

func TestDeriveClassesReadableAndWritable(t *testing.T) {
	m := newTestModule()
	m.DeriveClasses()
	classes := make(map[InterfaceClass]bool)
	for _, c := range m.Classes {
		classes[c] = true
	}
	assert.True(t, classes[ClassReadable])
	assert.True(t, classes[ClassWritable])
	assert.False(t, classes[ClassDrivable])
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package poll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secoptype"
)

func newPollTestModule() *module.Module {
	m := module.NewModule("sensor", "a test sensor", clog.NewLogger("test"))
	m.AddAccessible(accessible.NewParameter("value", "value", secoptype.NewFloatRange(-100, 100), true))
	m.AddAccessible(accessible.NewParameter("status", "status", secoptype.NewFloatRange(0, 400), true))
	m.AddAccessible(accessible.NewParameter("ramp_rate", "slow-polled config", secoptype.NewFloatRange(0, 10), false))
	return m
}

func TestNewSchedulerClassifiesValueAndStatusAsFast(t *testing.T) {
	m := newPollTestModule()
	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) { return accessible.Value(1.0), nil })
	m.BindRead("status", func() (accessible.WriteOutcome, secoperr.Error) { return accessible.Value(100.0), nil })
	m.BindRead("ramp_rate", func() (accessible.WriteOutcome, secoperr.Error) { return accessible.Value(2.0), nil })

	s, err := NewScheduler(m, clog.NewLogger("test"), time.Second, nil)
	require.NoError(t, err)

	assert.True(t, s.infos["value"].FastFlag)
	assert.True(t, s.infos["status"].FastFlag)
	assert.False(t, s.infos["ramp_rate"].FastFlag)
}

func TestNewSchedulerSkipsParametersWithoutReadFunc(t *testing.T) {
	m := newPollTestModule()
	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) { return accessible.Value(1.0), nil })

	s, err := NewScheduler(m, clog.NewLogger("test"), time.Second, nil)
	require.NoError(t, err)

	_, hasStatus := s.infos["status"]
	assert.False(t, hasStatus, "a parameter with no bound read function has nothing to poll")
}

func TestWriteInitParamsAppliesConfiguredValues(t *testing.T) {
	m := newPollTestModule()
	s, err := NewScheduler(m, clog.NewLogger("test"), time.Second, nil)
	require.NoError(t, err)

	s.WriteInitParams(map[string]any{"ramp_rate": 5.0})

	cached, _, cerr := m.Cached("ramp_rate")
	require.Nil(t, cerr)
	assert.Equal(t, 5.0, cached)
}

func TestWriteInitParamsIgnoresUnknownParameter(t *testing.T) {
	m := newPollTestModule()
	s, err := NewScheduler(m, clog.NewLogger("test"), time.Second, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		s.WriteInitParams(map[string]any{"nonexistent": 1.0})
	})
}

func TestInitialReadsPopulatesCacheAndTreatsCommunicationFailureAsTolerable(t *testing.T) {
	m := newPollTestModule()
	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) { return accessible.Value(23.0), nil })
	m.BindRead("status", func() (accessible.WriteOutcome, secoperr.Error) {
		return accessible.WriteOutcome{}, secoperr.CommunicationFailed("no response yet")
	})

	s, err := NewScheduler(m, clog.NewLogger("test"), time.Second, nil)
	require.NoError(t, err)

	s.InitialReads()

	cached, _, cerr := m.Cached("value")
	require.Nil(t, cerr)
	assert.Equal(t, 23.0, cached)

	assert.Equal(t, 1, s.infos["status"].PendingErrors)
}

func TestTriggerNowMarksParameterForImmediatePoll(t *testing.T) {
	m := newPollTestModule()
	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) { return accessible.Value(1.0), nil })

	s, err := NewScheduler(m, clog.NewLogger("test"), time.Second, nil)
	require.NoError(t, err)

	s.TriggerNow("value")
	assert.True(t, s.infos["value"].Trigger)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	m := newPollTestModule()
	polls := 0
	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) {
		polls++
		return accessible.Value(float64(polls)), nil
	})

	s, err := NewScheduler(m, clog.NewLogger("test"), 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.Greater(t, polls, 0)
}

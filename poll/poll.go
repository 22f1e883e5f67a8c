// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package poll implements C5: the per-module poll scheduler — initial
// parameter writes, an initial full read sweep, then a steady-state loop
// alternating fast ("main") and slow polled parameters, grounded on
// _examples/original_source/frappy/modulebase.py's Module.pollLoop /
// startModule machinery, with the slow-poll cadence backed by
// github.com/go-co-op/gocron/v2 per SPEC_FULL.md's domain-stack wiring.
package poll

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/secoperr"
)

// PollInfo tracks one parameter's scheduling state: its declared
// interval, the last time it was polled on the main (fast) and slow
// cycles, how many consecutive errors it has produced, and whether it's
// currently in the fast group (modulebase.py's PollInfo).
type PollInfo struct {
	Name           string
	Interval       time.Duration
	LastMain       time.Time
	LastSlow       time.Time
	PendingErrors  int
	FastFlag       bool
	Trigger        bool // force a poll on the next tick regardless of interval
}

// Scheduler drives one module's poll loop: a fast ticker for
// FastFlag-marked parameters (typically "value"/"status") and a
// gocron-backed slow cadence for everything else, exactly the two-tier
// split modulebase.py's doPoll implements with its fast_flag/slow
// iterator.
type Scheduler struct {
	Module   *module.Module
	Log      clog.Clog
	FastTick time.Duration

	infos map[string]*PollInfo
	order []string

	errorsTotal  prometheus.Counter
	pollsTotal   prometheus.Counter

	scheduler gocron.Scheduler
}

// NewScheduler builds a scheduler for the given module's parameters
// (names come from the module so the caller doesn't need to know which
// ones are pollable); params not in ReadFuncs are skipped, since
// announceUpdate-only parameters have nothing to poll.
func NewScheduler(m *module.Module, log clog.Clog, fastTick time.Duration, reg prometheus.Registerer) (*Scheduler, error) {
	if fastTick <= 0 {
		fastTick = time.Second
	}
	g, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		Module:   m,
		Log:      log,
		FastTick: fastTick,
		infos:    make(map[string]*PollInfo),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secop_poll_errors_total", Help: "Poll function errors, all modules.",
			ConstLabels: prometheus.Labels{"module": m.Name},
		}),
		pollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secop_polls_total", Help: "Poll function invocations, all modules.",
			ConstLabels: prometheus.Labels{"module": m.Name},
		}),
		scheduler: g,
	}
	if reg != nil {
		reg.MustRegister(s.errorsTotal, s.pollsTotal)
	}
	for _, name := range m.Order {
		if _, pollable := m.ReadFuncs[name]; !pollable {
			continue
		}
		fast := name == "value" || name == "status"
		s.infos[name] = &PollInfo{Name: name, Interval: fastInterval(fast, m.PollInterval), FastFlag: fast}
		s.order = append(s.order, name)
	}
	return s, nil
}

func fastInterval(fast bool, moduleInterval float64) time.Duration {
	if moduleInterval <= 0 {
		moduleInterval = 5
	}
	if fast {
		return time.Second
	}
	return time.Duration(moduleInterval * float64(time.Second))
}

// WriteInitParams pushes every config-supplied value whose name is one
// of the module's accessibles through ChangeParam before the first read, the write_init_params step
// modulebase.py runs before startModule (§4.5, seed scenario 8).
func (s *Scheduler) WriteInitParams(initial map[string]any) {
	for name, val := range initial {
		if _, ok := s.Module.Accessibles[name]; !ok {
			continue
		}
		if _, err := s.Module.ChangeParam(name, val); err != nil {
			s.Log.Warn("write_init_params: %s.%s: %v", s.Module.Name, name, err)
		}
	}
}

// InitialReads performs one unconditional read of every pollable
// parameter before the steady-state loop starts, so a client that
// activates immediately after startup sees real data rather than zero
// values (§4.5). A CommunicationFailedError on this sweep is logged at
// Warn rather than escalated, matching the source's startup-tolerant
// behavior.
func (s *Scheduler) InitialReads() {
	for _, name := range s.order {
		s.poll(name)
	}
}

func (s *Scheduler) poll(name string) {
	info := s.infos[name]
	_, err := s.Module.ReadParam(name)
	s.pollsTotal.Inc()
	if err != nil {
		info.PendingErrors++
		s.errorsTotal.Inc()
		if secoperr.AsSECoP(err).Name() == "CommunicationFailed" {
			s.Log.Warn("%s.%s: communication failed: %v", s.Module.Name, name, err)
		} else {
			s.Log.Error("%s.%s: poll error: %v", s.Module.Name, name, err)
		}
		return
	}
	info.PendingErrors = 0
}

// Run starts the fast ticker loop (blocking) and the gocron slow
// cadence (background), until ctx is cancelled. Each fast tick polls
// every FastFlag parameter whose Interval has elapsed, and any parameter
// whose Trigger was set; slow parameters are each given their own gocron job at their
// declared interval, matching the two-scheduler split in modulebase.py.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, name := range s.order {
		info := s.infos[name]
		if info.FastFlag {
			continue
		}
		name := name
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(info.Interval),
			gocron.NewTask(func() { s.poll(name) }),
		); err != nil {
			return err
		}
	}
	s.scheduler.Start()
	defer func() { _ = s.scheduler.Shutdown() }()

	ticker := time.NewTicker(s.FastTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, name := range s.order {
				info := s.infos[name]
				if !info.FastFlag && !info.Trigger {
					continue
				}
				if info.Trigger || now.Sub(info.LastMain) >= info.Interval {
					info.Trigger = false
					info.LastMain = now
					s.poll(name)
				}
			}
		}
	}
}

// TriggerNow forces a parameter to be polled on the next tick
// regardless of its interval, used after a write whose effect should be
// observed promptly (e.g. "target" changed, so "status" should be
// re-read soon).
func (s *Scheduler) TriggerNow(name string) {
	if info, ok := s.infos[name]; ok {
		info.Trigger = true
	}
}

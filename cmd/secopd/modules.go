// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sync"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/secnode"
	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secoptype"
)

// registry maps a config's "class" string to a module.Module builder, the
// Go stand-in for frappy's import-by-dotted-path module loading — this
// build ships a small fixed set of example modules rather than a plugin
// loader, since dynamic Go plugin loading is out of scope for a demo
// node (§9's translation guidance favors an explicit, static mapping
// over reflection-driven dynamism).
var registry = map[string]func(name string, mc secnode.ModuleConfig, log clog.Clog) (*module.Module, error){
	"Readable": newReadableModule,
	"Drivable": newDrivableModule,
	"Bus":      newBusModule,
}

func moduleFactory(name string, mc secnode.ModuleConfig) secnode.ModuleFactory {
	return func(log clog.Clog) (*module.Module, error) {
		build, ok := registry[mc.Class]
		if !ok {
			return nil, fmt.Errorf("unknown module class %q", mc.Class)
		}
		return build(name, mc, log)
	}
}

// newReadableModule is a minimal Readable: "value" is a simulated sensor
// reading, "status" always reports IDLE.
func newReadableModule(name string, mc secnode.ModuleConfig, log clog.Clog) (*module.Module, error) {
	m := module.NewModule(name, "a readable sensor", log)

	m.AddAccessible(accessible.NewParameter("value", "the main value", secoptype.NewFloatRange(-1e9, 1e9), true))
	m.AddAccessible(accessible.NewParameter("status", "the module status", secoptype.NewStatusType(), true))
	m.AddAccessible(accessible.NewParameter("pollinterval", "poll interval", secoptype.NewFloatRange(0.1, 3600), false))

	var mu sync.Mutex
	phase := 0.0

	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) {
		mu.Lock()
		phase += 0.1
		v := 10.0 + phase
		mu.Unlock()
		return accessible.Value(v), nil
	})
	m.BindRead("status", func() (accessible.WriteOutcome, secoperr.Error) {
		return accessible.Value([]any{int64(secoptype.StatusIdle), "idle"}), nil
	})
	m.BindWrite("pollinterval", func(v any) (accessible.WriteOutcome, secoperr.Error) {
		if f, ok := v.(float64); ok {
			m.PollInterval = f
		}
		return accessible.Value(v), nil
	})

	if err := applyParameters(m, mc.Parameters); err != nil {
		return nil, err
	}
	return m, nil
}

// newDrivableModule adds target/stop on top of Readable, simulating a
// ramp toward the last-written target (§3's Drivable/time_to_target
// attributes, simplified: no ramp rate property, a fixed step per poll).
func newDrivableModule(name string, mc secnode.ModuleConfig, log clog.Clog) (*module.Module, error) {
	m, err := newReadableModule(name, mc, log)
	if err != nil {
		return nil, err
	}
	m.Description = "a drivable actuator"

	m.AddAccessible(accessible.NewParameter("target", "the setpoint", secoptype.NewFloatRange(-1e9, 1e9), false))
	m.AddAccessible(accessible.NewCommand("stop", "halt motion", secoptype.NewCommandType(nil, nil)))

	var mu sync.Mutex
	var target float64
	var current float64
	var moving bool

	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) {
		mu.Lock()
		defer mu.Unlock()
		if moving {
			if current < target {
				current += 1.0
				if current >= target {
					current = target
					moving = false
				}
			} else if current > target {
				current -= 1.0
				if current <= target {
					current = target
					moving = false
				}
			} else {
				moving = false
			}
		}
		return accessible.Value(current), nil
	})
	m.BindRead("status", func() (accessible.WriteOutcome, secoperr.Error) {
		mu.Lock()
		defer mu.Unlock()
		if moving {
			return accessible.Value([]any{int64(secoptype.StatusBusyRamping), "moving"}), nil
		}
		return accessible.Value([]any{int64(secoptype.StatusIdle), "idle"}), nil
	})
	m.BindWrite("target", func(v any) (accessible.WriteOutcome, secoperr.Error) {
		f, ok := v.(float64)
		if !ok {
			return accessible.WriteOutcome{}, secoperr.WrongType("target must be numeric")
		}
		mu.Lock()
		target = f
		moving = true
		mu.Unlock()
		return accessible.Value(f), nil
	})
	m.BindDo("stop", func(any) (any, secoperr.Error) {
		mu.Lock()
		target = current
		moving = false
		mu.Unlock()
		return nil, nil
	})

	if err := applyParameters(m, mc.Parameters); err != nil {
		return nil, err
	}
	return m, nil
}

// newBusModule is a Pinata: a bus-level Communicator that carries no
// data accessibles of its own, only a Scan func that probes its
// configured channel list once at startup and declares one Readable per
// channel, the Go analogue of frappy/secnode.py's "isinstance(modobj,
// Pinata)" branch (e.g. a serial multiplexer that doesn't know which
// sensor addresses are populated until it walks the bus).
func newBusModule(name string, mc secnode.ModuleConfig, log clog.Clog) (*module.Module, error) {
	m := module.NewModule(name, "a bus of dynamically scanned channels", log)

	var channels []string
	if raw, ok := mc.Parameters["channels"]; ok {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("module %s: channels must be a list", name)
		}
		for _, c := range list {
			s, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("module %s: channel entries must be strings", name)
			}
			channels = append(channels, s)
		}
	}

	m.Scan = func(clog.Clog) ([]module.ScanResult, error) {
		results := make([]module.ScanResult, 0, len(channels))
		for _, ch := range channels {
			childName := name + "_" + ch
			desc := fmt.Sprintf("channel %s on bus %s", ch, name)
			results = append(results, module.ScanResult{
				Name: childName,
				Factory: func(log clog.Clog) (*module.Module, error) {
					return newReadableModule(childName, secnode.ModuleConfig{
						Class:      "Readable",
						Parameters: map[string]interface{}{"description": desc},
					}, log)
				},
			})
		}
		return results, nil
	}

	return m, nil
}

func applyParameters(m *module.Module, params map[string]interface{}) error {
	for name, val := range params {
		if name == "description" {
			if s, ok := val.(string); ok {
				m.Description = s
			}
			continue
		}
		if _, ok := m.Accessibles[name]; !ok {
			continue
		}
		if _, err := m.ChangeParam(name, val); err != nil {
			return fmt.Errorf("module %s: init parameter %s: %w", m.Name, name, err)
		}
	}
	return nil
}

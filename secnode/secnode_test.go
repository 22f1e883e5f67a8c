// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secnode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/secoptype"
)

func sensorFactory(name string) ModuleFactory {
	return func(log clog.Clog) (*module.Module, error) {
		m := module.NewModule(name, "test", log)
		m.AddAccessible(accessible.NewParameter("value", "v", secoptype.NewFloatRange(0, 100), true))
		return m, nil
	}
}

func failingFactory() ModuleFactory {
	return func(log clog.Clog) (*module.Module, error) {
		return nil, errors.New("hardware not found")
	}
}

func TestGetModuleCachesAndTracksFailures(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("ok", sensorFactory("ok"))
	n.Declare("broken", failingFactory())

	m1, ok := n.GetModule("ok")
	require.True(t, ok)
	m2, ok := n.GetModule("ok")
	require.True(t, ok)
	assert.Same(t, m1, m2, "module is constructed once and cached")

	_, ok = n.GetModule("broken")
	assert.False(t, ok)
	assert.Contains(t, n.FailedModules(), "broken")

	// a second GetModule on a failed module doesn't retry construction
	_, ok = n.GetModule("broken")
	assert.False(t, ok)
}

func TestShutdownOrderRespectsDependencies(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("a", sensorFactory("a"))
	n.Declare("b", sensorFactory("b"), "a")
	n.Declare("c", sensorFactory("c"), "b")
	n.CreateModules()

	order := n.ShutdownOrder()
	require.Len(t, order, 3)

	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["c"], pos["b"], "c depends on b, so c shuts down first")
	assert.Less(t, pos["b"], pos["a"], "b depends on a, so b shuts down before a")
}

func TestShutdownOrderHandlesCycleWithoutHanging(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("a", sensorFactory("a"), "b")
	n.Declare("b", sensorFactory("b"), "a")
	n.CreateModules()

	order := n.ShutdownOrder()
	assert.Len(t, order, 2)
}

func TestGetDescriptiveDataWholeNode(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1", Firmware: "fw", Version: "1.0"}, clog.NewLogger("test"))
	n.Declare("sensor", sensorFactory("sensor"))
	n.CreateModules()

	data := n.GetDescriptiveData("", "")
	assert.Equal(t, "node1", data["equipment_id"])
	modules, ok := data["modules"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, modules, "sensor")
}

func TestGetDescriptiveDataSingleAccessible(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("sensor", sensorFactory("sensor"))
	n.CreateModules()

	data := n.GetDescriptiveData("sensor", "value")
	require.NotNil(t, data)
	assert.Contains(t, data, "datainfo")
}

// pinataFactory builds a Pinata: a bus module with no data accessibles
// of its own whose Scan declares one sub-module per given channel name.
func pinataFactory(channels ...string) ModuleFactory {
	return func(log clog.Clog) (*module.Module, error) {
		m := module.NewModule("bus", "test bus", log)
		m.Scan = func(clog.Clog) ([]module.ScanResult, error) {
			results := make([]module.ScanResult, 0, len(channels))
			for _, ch := range channels {
				name := "bus_" + ch
				results = append(results, module.ScanResult{
					Name:    name,
					Factory: sensorFactory(name),
				})
			}
			return results, nil
		}
		return m, nil
	}
}

func TestCreateModulesRunsPinataScanAndDeclaresDiscoveredModules(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("bus", pinataFactory("a", "b"))
	n.CreateModules()

	_, ok := n.GetModule("bus_a")
	assert.True(t, ok, "a module discovered by a Pinata's Scan is constructed")
	_, ok = n.GetModule("bus_b")
	assert.True(t, ok)

	data := n.GetDescriptiveData("", "")
	modules, ok := data["modules"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, modules, "bus_a")
	assert.Contains(t, modules, "bus_b")
}

func TestCreateModulesSkipsPinataScanResultNameClash(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("bus", pinataFactory("a"))
	n.Declare("bus_a", sensorFactory("bus_a")) // already statically declared
	n.CreateModules()

	m, ok := n.GetModule("bus_a")
	require.True(t, ok)
	assert.Equal(t, "test", m.Description, "the statically declared module wins, the Pinata's duplicate is dropped")
}

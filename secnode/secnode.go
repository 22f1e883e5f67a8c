// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package secnode implements the node-level registry: module
// construction order, failed-module tracking, descriptive-data assembly
// and topological shutdown, grounded on
// _examples/original_source/frappy/secnode.py's SecNode class.
package secnode

import (
	"github.com/google/uuid"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
)

// NodeProperties is the node-level descriptive metadata merged into
// every describe reply (equipment_id, firmware, version, plus free-form
// extras), grounded on secnode.py's self.properties.
type NodeProperties struct {
	EquipmentID string
	Description string
	Firmware    string
	Version     string
	Extra       map[string]any
}

// ModuleFactory lazily builds a module instance; construction is
// deferred until get_module is first called, mirroring secnode.py's
// get_module_instance (and the reason a module may legitimately fail to
// construct: a missing piece of hardware is not a program bug).
type ModuleFactory func(log clog.Clog) (*module.Module, error)

// SecNode is the per-process module registry: the Go analogue of
// secnode.py's SecNode. ID is stamped with a fresh uuid by New, the way
// Jeeves-core's commbus stamps correlation IDs; it is not part of the
// GetDescriptiveData output.
type SecNode struct {
	ID         string
	Properties NodeProperties
	Log        clog.Clog

	factories map[string]ModuleFactory
	order     []string // declared config order, preserved (secnode.py iterates module_cfg in order)

	modules       map[string]*module.Module
	failedModules map[string]error
	dependsOn     map[string][]string // module -> modules it reads from at initModule time (for shutdown ordering)
}

func New(props NodeProperties, log clog.Clog) *SecNode {
	return &SecNode{
		ID:            uuid.NewString(),
		Properties:    props,
		Log:           log,
		factories:     make(map[string]ModuleFactory),
		modules:       make(map[string]*module.Module),
		failedModules: make(map[string]error),
		dependsOn:     make(map[string][]string),
	}
}

// Declare registers a module factory without constructing it yet
// (secnode.py's module_cfg population step, before create_modules runs).
func (n *SecNode) Declare(name string, factory ModuleFactory, dependsOn ...string) {
	if _, exists := n.factories[name]; !exists {
		n.order = append(n.order, name)
	}
	n.factories[name] = factory
	n.dependsOn[name] = dependsOn
}

// GetModule lazily constructs (once) and returns a module, the Go
// analogue of secnode.py's get_module_instance: a construction failure
// is recorded in failedModules rather than propagated, so the rest of
// the node can still start (§9 "Partial startup").
func (n *SecNode) GetModule(name string) (*module.Module, bool) {
	if m, ok := n.modules[name]; ok {
		return m, true
	}
	if err, failed := n.failedModules[name]; failed {
		n.Log.Warn("module %s previously failed to initialize: %v", name, err)
		return nil, false
	}
	factory, ok := n.factories[name]
	if !ok {
		return nil, false
	}
	childLog := n.Log.With("module", name)
	m, err := factory(childLog)
	if err != nil {
		n.failedModules[name] = err
		n.Log.Error("module %s failed to initialize: %v", name, err)
		return nil, false
	}
	m.DeriveClasses()
	n.modules[name] = m
	return m, true
}

// CreateModules constructs every declared module, the eager-startup
// counterpart to the lazy GetModule (secnode.py's create_modules todos
// loop). A module whose Scan func is set is a Pinata: once it
// constructs successfully, CreateModules calls Scan and declares every
// ScanResult it returns, extending the construction queue exactly as
// create_modules extends todos with pinata.scanModules() — so a
// dynamically discovered module is itself eligible to be a Pinata.
func (n *SecNode) CreateModules() {
	todo := append([]string(nil), n.order...)
	for len(todo) > 0 {
		name := todo[0]
		todo = todo[1:]

		m, ok := n.GetModule(name)
		if !ok || m.Scan == nil {
			continue
		}
		found, err := m.Scan(m.Log)
		if err != nil {
			n.Log.Error("pinata %s: scan failed: %v", name, err)
			continue
		}
		n.Log.Info("pinata %s found %d modules", name, len(found))
		for _, r := range found {
			if _, exists := n.factories[r.Name]; exists {
				n.Log.Error("module %s, from pinata %s, already exists", r.Name, name)
				continue
			}
			n.Declare(r.Name, r.Factory)
			todo = append(todo, r.Name)
		}
	}
}

// AllModuleNames returns every declared module name in config order, the
// set activate("") subscribes to.
func (n *SecNode) AllModuleNames() []string {
	return append([]string(nil), n.order...)
}

// FailedModules returns the name/error pairs for modules that failed
// construction, so the caller can report them (cmd/secopd logs them)
// rather than crashing the process.
func (n *SecNode) FailedModules() map[string]error {
	out := make(map[string]error, len(n.failedModules))
	for k, v := range n.failedModules {
		out[k] = v
	}
	return out
}

// ExportAccessibles builds the wire-visible accessible map for one
// module: every accessible whose ExportName() is non-empty, keyed by
// that export name, value the merged property set plus datainfo
// (secnode.py's export_accessibles).
func ExportAccessibles(m *module.Module) map[string]any {
	out := make(map[string]any, len(m.Order))
	for _, name := range m.Order {
		a := m.Accessibles[name]
		exportName := a.ExportName()
		if exportName == "" {
			continue
		}
		entry := map[string]any{"datainfo": a.Datatype().Datainfo()}
		if p, ok := a.(*accessible.Parameter); ok {
			entry["description"] = p.Description
			entry["readonly"] = p.Readonly
			if p.Group != "" {
				entry["group"] = p.Group
			}
			entry["visibility"] = string(p.Visibility)
		}
		if c, ok := a.(*accessible.Command); ok {
			entry["description"] = c.Description
			entry["visibility"] = string(c.Visibility)
		}
		out[exportName] = entry
	}
	return out
}

// GetDescriptiveData assembles the describe reply, optionally scoped to
// a single module or a single module:accessible (secnode.py's
// get_descriptive_data specifier-partition logic).
func (n *SecNode) GetDescriptiveData(moduleSpec, accessibleSpec string) map[string]any {
	moduleData := func(m *module.Module) map[string]any {
		out := m.ExportProperties()
		out["accessibles"] = ExportAccessibles(m)
		return out
	}
	if moduleSpec != "" {
		m, ok := n.GetModule(moduleSpec)
		if !ok {
			return nil
		}
		if accessibleSpec != "" {
			a, ok := m.Accessibles[accessibleSpec]
			if !ok {
				return nil
			}
			return map[string]any{"datainfo": a.Datatype().Datainfo()}
		}
		return moduleData(m)
	}

	modules := make(map[string]any, len(n.order))
	for _, name := range n.order {
		m, ok := n.GetModule(name)
		if !ok {
			continue
		}
		modules[name] = moduleData(m)
	}
	extra := map[string]any{}
	for k, v := range n.Properties.Extra {
		extra[k] = v
	}
	extra["equipment_id"] = n.Properties.EquipmentID
	extra["firmware"] = n.Properties.Firmware
	extra["version"] = n.Properties.Version
	extra["description"] = n.Properties.Description
	extra["modules"] = modules
	return extra
}

// ShutdownOrder computes a dependency-respecting shutdown sequence via
// depth-first topological sort, falling back to visitation order on a
// cycle rather than erroring, exactly as secnode.py's _getSortedModules
// does: `l[::-1] + list(visited) + list(unmarked)`.
func (n *SecNode) ShutdownOrder() []string {
	unmarked := make(map[string]bool, len(n.order))
	for _, name := range n.order {
		unmarked[name] = true
	}
	visited := map[string]bool{}
	done := map[string]bool{}
	var l []string

	var visit func(string)
	visit = func(name string) {
		if done[name] {
			return
		}
		if visited[name] {
			return // cycle: leave it for the fallback tail
		}
		visited[name] = true
		delete(unmarked, name)
		for _, dep := range n.dependsOn[name] {
			visit(dep)
		}
		done[name] = true
		delete(visited, name)
		l = append(l, name)
	}

	for len(unmarked) > 0 {
		var next string
		for name := range unmarked {
			next = name
			break
		}
		visit(next)
	}

	// reverse l (shutdown happens in dependency-last order)
	out := make([]string, 0, len(l))
	for i := len(l) - 1; i >= 0; i-- {
		out = append(out, l[i])
	}
	for name := range visited {
		out = append(out, name)
	}
	for name := range unmarked {
		out = append(out, name)
	}
	return out
}

// ShutdownModules calls ShutdownFunc (if bound) on every module in
// ShutdownOrder, logging but not stopping on individual failures
// (secnode.py's shutdown_modules).
func (n *SecNode) ShutdownModules(shutdown func(*module.Module) error) {
	for _, name := range n.ShutdownOrder() {
		m, ok := n.modules[name]
		if !ok {
			continue
		}
		if err := shutdown(m); err != nil {
			n.Log.Error("module %s: shutdown error: %v", name, err)
		}
	}
}

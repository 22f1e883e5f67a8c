// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package module implements C4: the per-instance module runtime — the
// parameter cache, the synthesized read/write wrapper pair, and the
// single announceUpdate entry point through which every state change
// reaches subscribers, grounded on
// _examples/original_source/frappy/modulebase.py and the lock-discipline
// style of Jeeves-Cluster-Organization-jeeves-core's commbus.InMemoryCommBus.
package module

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secoptype"
)

// InterfaceClass is one of the SECoP interface classes a module may
// advertise, derived from which accessibles it carries (§3 "Module
// attributes", frappy's Readable/Writable/Drivable/Communicator
// hierarchy).
type InterfaceClass string

const (
	ClassCommunicator        InterfaceClass = "Communicator"
	ClassReadable            InterfaceClass = "Readable"
	ClassWritable            InterfaceClass = "Writable"
	ClassDrivable            InterfaceClass = "Drivable"
	ClassAcquisitionChannel  InterfaceClass = "AcquisitionChannel"
	ClassAcquisitionControl  InterfaceClass = "AcquisitionController"
)

// UpdateCallback is invoked by announceUpdate for every parameter change
// that survives coalescing; the dispatcher subscribes one of these per
// module to fan updates out to connections (C6).
type UpdateCallback func(moduleName, paramName string, value any, timestamp time.Time, err secoperr.Error)

// ScanResult is one dynamically discovered module a Pinata-style bus
// module finds after it has been constructed itself: a name plus the
// factory that constructs it, grounded on
// _examples/original_source/frappy/secnode.py's create_modules (the
// `isinstance(modobj, Pinata)` branch, which extends its construction
// queue with pinata.scanModules()'s (name, cfg) pairs). Go has no
// per-instance conditional interface satisfaction on a concrete struct,
// so the Go analogue of "a module may satisfy Pinata" is this optional
// function field on Module rather than a type assertion.
type ScanResult struct {
	Name    string
	Factory func(log clog.Clog) (*Module, error)
}

// Module is the runtime instance wrapping one accessible set: Accessibles
// (listed in Order, accessible.PredefinedOrder names first, then
// declaration order), properties (C2), and the read/write dispatch table
// that ReadParam/ChangeParam/DoCommand use.
//
// Lock discipline (§5): accessLock is one mutex per module, held while a
// bound read or write function runs. It is not reentrant (Go has no
// reentrant mutex primitive), so read/write handlers must not re-enter
// through ReadParam/ChangeParam on the same module. updateLock guards
// the cache+subscriber notification path. accessLock is always released
// before updateLock is taken; the two are never held together.
type Module struct {
	secoptype.HasProperties

	Name        string
	Description string
	ImplPath    string
	Accessibles map[string]accessible.Accessible
	Order       []string
	Classes     []InterfaceClass

	OmitUnchangedWithin float64 // module-level default, seconds (§4.4)
	PollInterval        float64

	Log clog.Clog

	ReadFuncs  map[string]func() (accessible.WriteOutcome, secoperr.Error)
	WriteFuncs map[string]func(any) (accessible.WriteOutcome, secoperr.Error)
	DoFuncs    map[string]func(any) (any, secoperr.Error)

	// Scan marks this module as a Pinata-style bus scanner: when set,
	// CreateModules calls it once right after this module is constructed
	// and declares every returned ScanResult for construction in turn
	// (frappy/secnode.py's Pinata.scanModules). nil means an ordinary
	// module with no dynamic discovery.
	Scan func(log clog.Clog) ([]ScanResult, error)

	accessLock sync.Mutex
	updateLock sync.Mutex

	subscribers []UpdateCallback

	Disabled    bool
	failedError secoperr.Error
}

// NewModule builds an empty module shell; accessibles are attached with
// AddAccessible before the module is handed to a SecNode.
func NewModule(name, description string, log clog.Clog) *Module {
	return &Module{
		HasProperties: secoptype.NewHasProperties(),
		Name:          name,
		Description:   description,
		Accessibles:   make(map[string]accessible.Accessible),
		ReadFuncs:     make(map[string]func() (accessible.WriteOutcome, secoperr.Error)),
		WriteFuncs:    make(map[string]func(any) (accessible.WriteOutcome, secoperr.Error)),
		DoFuncs:       make(map[string]func(any) (any, secoperr.Error)),
		Log:           log,
		OmitUnchangedWithin: 0.1,
	}
}

// AddAccessible registers a Parameter, Limit or Command, preserving the
// accessible.PredefinedOrder order when the name appears there, else
// appending in call order (§4.3's MRO-merge order guarantee).
func (m *Module) AddAccessible(a accessible.Accessible) {
	name := a.AccessibleName()
	if _, exists := m.Accessibles[name]; !exists {
		pos := len(m.Order)
		if rank := slices.Index(accessible.PredefinedOrder, name); rank >= 0 {
			for i, other := range m.Order {
				if r := slices.Index(accessible.PredefinedOrder, other); r < 0 || r > rank {
					pos = i
					break
				}
			}
		}
		m.Order = slices.Insert(m.Order, pos, name)
	}
	m.Accessibles[name] = a
}

// BindRead/BindWrite/BindDo wire the user-supplied handler functions the
// way frappy's read_P/write_P naming convention implicitly does; Go has
// no method-name reflection convention worth relying on, so wiring is
// explicit, grounded on accessible.Command.Impl's same explicitness.
func (m *Module) BindRead(param string, fn func() (accessible.WriteOutcome, secoperr.Error)) {
	m.ReadFuncs[param] = fn
}

func (m *Module) BindWrite(param string, fn func(any) (accessible.WriteOutcome, secoperr.Error)) {
	m.WriteFuncs[param] = fn
}

func (m *Module) BindDo(cmd string, fn func(any) (any, secoperr.Error)) {
	m.DoFuncs[cmd] = fn
	if c, ok := m.Accessibles[cmd].(*accessible.Command); ok {
		c.Impl = func(arg any) (any, error) {
			v, err := fn(arg)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
}

// Subscribe registers a callback invoked by announceUpdate; the
// dispatcher calls this once per module at startup (C6).
func (m *Module) Subscribe(cb UpdateCallback) {
	m.updateLock.Lock()
	defer m.updateLock.Unlock()
	m.subscribers = append(m.subscribers, cb)
}

// parameter looks up a Parameter (or Limit, which embeds one) by name.
func (m *Module) parameter(name string) (*accessible.Parameter, secoperr.Error) {
	a, ok := m.Accessibles[name]
	if !ok {
		return nil, secoperr.NoSuchParameter(m.Name, name)
	}
	p, ok := a.(*accessible.Parameter)
	if !ok {
		if l, ok := a.(*accessible.Limit); ok {
			return l.Parameter, nil
		}
		return nil, secoperr.NoSuchParameter(m.Name, name)
	}
	return p, nil
}

// ReadParam implements the read_P wrapper (§4.4): invoke the bound read
// function if any, else return the cached value (or cached read error)
// without announcing. A bound function's validated result or error flows
// through announceUpdate so subscribers see it exactly once; a Done or
// Unchanged outcome returns the cache without announcing.
func (m *Module) ReadParam(name string) (any, secoperr.Error) {
	p, err := m.parameter(name)
	if err != nil {
		return nil, err
	}
	if p.Constant != nil {
		return *p.Constant, nil
	}

	m.accessLock.Lock()
	fn, hasFn := m.ReadFuncs[name]
	m.accessLock.Unlock()

	if !hasFn {
		if p.ReadError != nil {
			return nil, p.ReadError
		}
		return p.Value, nil
	}

	m.accessLock.Lock()
	outcome, ferr := fn()
	m.accessLock.Unlock()

	if ferr != nil {
		m.announceUpdate(name, nil, ferr, time.Time{})
		return nil, ferr
	}
	switch outcome.Kind {
	case accessible.OutcomeDone:
		return p.Value, p.ReadError
	case accessible.OutcomeUnchanged:
		return p.Value, p.ReadError
	default:
		validated, verr := p.DT.Validate(outcome.Value)
		if verr != nil {
			m.announceUpdate(name, nil, verr, time.Time{})
			return nil, verr
		}
		m.announceUpdate(name, validated, nil, time.Time{})
		return validated, nil
	}
}

// ChangeParam implements the write_P wrapper (§4.4): validate the
// incoming wire value against the client-visible datatype, invoke the
// bound write function (if writable), and announce the result.
func (m *Module) ChangeParam(name string, wireValue any) (any, secoperr.Error) {
	p, err := m.parameter(name)
	if err != nil {
		return nil, err
	}
	if !p.IsWritable() {
		return nil, secoperr.ReadOnly(m.Name, name)
	}

	validated, verr := p.DT.Validate(wireValue)
	if verr != nil {
		return nil, verr
	}

	m.accessLock.Lock()
	fn, hasFn := m.WriteFuncs[name]
	m.accessLock.Unlock()

	if !hasFn {
		m.announceUpdate(name, validated, nil, time.Time{})
		return validated, nil
	}

	m.accessLock.Lock()
	outcome, ferr := fn(validated)
	m.accessLock.Unlock()

	if ferr != nil {
		m.announceUpdate(name, nil, ferr, time.Time{})
		return nil, ferr
	}
	switch outcome.Kind {
	case accessible.OutcomeDone:
		return p.Value, p.ReadError
	case accessible.OutcomeUnchanged:
		return p.Value, p.ReadError
	default:
		out, oerr := p.DT.Validate(outcome.Value)
		if oerr != nil {
			m.announceUpdate(name, nil, oerr, time.Time{})
			return nil, oerr
		}
		m.announceUpdate(name, out, nil, time.Time{})
		return out, nil
	}
}

// DoCommand dispatches a command: validates the argument against the
// command's declared Argument type (if any), invokes the bound
// implementation, then validates the result against the Result type
// (§4.3).
func (m *Module) DoCommand(name string, arg any) (any, secoperr.Error) {
	a, ok := m.Accessibles[name]
	if !ok {
		return nil, secoperr.NoSuchCommand(m.Name, name)
	}
	cmd, ok := a.(*accessible.Command)
	if !ok {
		return nil, secoperr.NoSuchCommand(m.Name, name)
	}
	if cmd.CT.Argument != nil {
		validated, verr := cmd.CT.Validate(arg)
		if verr != nil {
			return nil, verr
		}
		arg = validated
	}
	fn, ok := m.DoFuncs[name]
	if !ok {
		return nil, secoperr.Internal(fmt.Sprintf("command %s not bound", name))
	}
	result, err := fn(arg)
	if err != nil {
		return nil, err
	}
	if cmd.CT.Result == nil {
		return nil, nil
	}
	return cmd.CT.ValidateResult(result)
}

// announceUpdate is the single entry point through which every state
// change reaches the parameter cache and subscribers (§4.4). It
// implements: change detection (skip no-op re-announcements within the
// coalescing window), error-repeat detection (skip a broadcast when the
// new error has the same class and message as the last announced one,
// §4.4/§8 "Error dedup"), error replacing value (and vice versa) always
// updates, and timestamp stamping when the caller left it zero.
func (m *Module) announceUpdate(name string, value any, err secoperr.Error, timestamp time.Time) {
	p, perr := m.parameter(name)
	if perr != nil {
		return
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	m.updateLock.Lock()
	skip := false
	switch {
	case err != nil:
		skip = equalError(p.ReadError, err)
	case p.ReadError == nil:
		if omit, window := p.OmitUnchangedWithin(m.OmitUnchangedWithin); omit && window >= 0 {
			skip = equalValue(p.Value, value) && timestamp.Sub(p.Timestamp) < window
		}
	}
	if !skip {
		p.Value = value
		p.ReadError = err
		p.Timestamp = timestamp
	}
	subs := append([]UpdateCallback(nil), m.subscribers...)
	m.updateLock.Unlock()

	if skip {
		return
	}
	for _, cb := range subs {
		cb(m.Name, name, value, timestamp, err)
	}
}

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// equalError reports whether two errors have the same class and message
// (§4.4 "same class, same message"); a nil on either side is never equal
// to a non-nil error, so an error replacing a clean read always announces.
func equalError(a, b secoperr.Error) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Name() == b.Name() && a.Error() == b.Error()
}

// Cached returns the last known (value, timestamp, error) triple for a
// parameter without triggering a read (I3, dispatcher's "activate"
// initial flush).
func (m *Module) Cached(name string) (any, time.Time, secoperr.Error) {
	p, err := m.parameter(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	m.updateLock.Lock()
	defer m.updateLock.Unlock()
	return p.Value, p.Timestamp, p.ReadError
}

// DeriveClasses computes the interface class list from which
// accessibles are present, the Go equivalent of frappy's MRO-based
// isinstance checks (§3).
func (m *Module) DeriveClasses() {
	classes := []InterfaceClass{ClassCommunicator}
	if _, ok := m.Accessibles["value"]; ok {
		classes = append(classes, ClassReadable)
	}
	if _, ok := m.Accessibles["target"]; ok {
		classes = append(classes, ClassWritable)
	}
	_, hasStatus := m.Accessibles["status"]
	if _, ok := m.Accessibles["stop"]; ok && hasStatus {
		classes = append(classes, ClassDrivable)
	}
	m.Classes = classes
}

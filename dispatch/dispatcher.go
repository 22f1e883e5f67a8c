// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package dispatch implements C6: request decoding/routing, the
// subscription registry and update fan-out, grounded on
// _examples/original_source/secop/protocol/dispatcher.py's Dispatcher
// class, restructured around secopcodec.Frame and module.Module instead
// of the source's string/exception based request handling.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/secnode"
	"github.com/secop-io/secopd/secopcodec"
	"github.com/secop-io/secopd/secoperr"
)

// Conn is the minimal connection surface the dispatcher needs: send one
// reply/update frame, and an identity used for subscription bookkeeping.
// cmd/secopd's lineConn (the line-protocol driver) adapts a net.Conn to
// this.
type Conn interface {
	ID() string
	Send(secopcodec.Frame) error
}

// Dispatcher routes decoded frames to modules and fans announceUpdate
// callbacks out to subscribed connections (§4.6, §5's documented lock
// order: dispatcher lock is always acquired before a module's own
// accessLock/updateLock are touched from within a request handler, and
// never held while calling into module.Module, since that call may
// itself re-enter the dispatcher via announceUpdate on another
// goroutine).
type Dispatcher struct {
	Node *secnode.SecNode
	Log  clog.Clog

	mu     sync.Mutex
	active map[string]map[string]Conn // moduleName -> connID -> Conn, the subscription registry (§6 activate)

	updatesTotal prometheus.Counter
	errorsTotal  *prometheus.CounterVec
}

func New(node *secnode.SecNode, log clog.Clog, reg prometheus.Registerer) *Dispatcher {
	d := &Dispatcher{
		Node:   node,
		Log:    log,
		active: make(map[string]map[string]Conn),
		updatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secop_dispatch_updates_total",
			Help: "Number of parameter updates fanned out to subscribers.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secop_dispatch_errors_total",
			Help: "Number of error replies sent, by error class.",
		}, []string{"class"}),
	}
	if reg != nil {
		reg.MustRegister(d.updatesTotal, d.errorsTotal)
	}
	return d
}

// AttachModule subscribes the dispatcher's fan-out callback to a
// module's announceUpdate stream; called once per module at startup.
func (d *Dispatcher) AttachModule(name string, m *module.Module) {
	m.Subscribe(func(moduleName, paramName string, value any, ts time.Time, err secoperr.Error) {
		spec := moduleName + ":" + paramName
		if err != nil {
			d.errorsTotal.WithLabelValues(err.Name()).Inc()
			d.Broadcast(moduleName, paramName, errorUpdateFrame(err, spec))
			return
		}
		d.Broadcast(moduleName, paramName, secopcodec.Frame{
			Action: secopcodec.ActionUpdate, Specifier: spec, HasData: true,
			Data: []any{value, map[string]any{"t": ts.Unix()}},
		})
	})
}

// Handle decodes and executes one request frame, returning the reply
// frame(s) to send back: exactly one for every request except activate,
// which also flushes cached values first per §6's documented ordering
// requirement.
func (d *Dispatcher) Handle(conn Conn, raw []byte) []secopcodec.Frame {
	frame, err := secopcodec.Decode(raw)
	if err != nil {
		return []secopcodec.Frame{errorFrame(secoperr.ProtocolError(err.Error()), secopcodec.ActionError, "")}
	}

	switch frame.Action {
	case secopcodec.ActionIdentify:
		return []secopcodec.Frame{{Action: secopcodec.Action("ISSE,SECoP,V2019-09-16,v1.0")}}
	case secopcodec.ActionPing:
		return []secopcodec.Frame{{Action: secopcodec.ActionPong, Specifier: frame.Specifier, HasData: frame.HasData, Data: frame.Data}}
	case secopcodec.ActionDescribe:
		mod, acc := secopcodec.SplitSpecifier(frame.Specifier)
		data := d.Node.GetDescriptiveData(mod, acc)
		if data == nil {
			return []secopcodec.Frame{errorFrame(secoperr.NoSuchModule(mod), frame.Action, frame.Specifier)}
		}
		return []secopcodec.Frame{{Action: secopcodec.ActionDescribing, Specifier: frame.Specifier, HasData: true, Data: data}}
	case secopcodec.ActionActivate:
		return d.activate(conn, frame)
	case secopcodec.ActionDeactivate:
		d.deactivate(conn, frame)
		return []secopcodec.Frame{{Action: secopcodec.ActionInactive, Specifier: frame.Specifier}}
	case secopcodec.ActionRead:
		return d.read(frame)
	case secopcodec.ActionChange:
		return d.change(frame)
	case secopcodec.ActionDo:
		return d.do(frame)
	default:
		return []secopcodec.Frame{errorFrame(secoperr.ProtocolError(fmt.Sprintf("unknown action %q", frame.Action)), secopcodec.ActionError, frame.Specifier)}
	}
}

func (d *Dispatcher) read(frame secopcodec.Frame) []secopcodec.Frame {
	modName, accName := secopcodec.SplitSpecifier(frame.Specifier)
	if accName == "" {
		accName = "value"
	}
	m, ok := d.Node.GetModule(modName)
	if !ok {
		return []secopcodec.Frame{errorFrame(secoperr.NoSuchModule(modName), frame.Action, frame.Specifier)}
	}
	v, err := m.ReadParam(accName)
	if err != nil {
		return []secopcodec.Frame{errorFrame(err, frame.Action, frame.Specifier)}
	}
	return []secopcodec.Frame{{Action: secopcodec.ActionUpdate, Specifier: frame.Specifier, HasData: true, Data: []any{v, map[string]any{}}}}
}

func (d *Dispatcher) change(frame secopcodec.Frame) []secopcodec.Frame {
	modName, accName := secopcodec.SplitSpecifier(frame.Specifier)
	m, ok := d.Node.GetModule(modName)
	if !ok {
		return []secopcodec.Frame{errorFrame(secoperr.NoSuchModule(modName), frame.Action, frame.Specifier)}
	}
	var wire any
	if pair, ok := frame.Data.([]any); ok && len(pair) > 0 {
		wire = pair[0]
	} else {
		wire = frame.Data
	}
	v, err := m.ChangeParam(accName, wire)
	if err != nil {
		return []secopcodec.Frame{errorFrame(err, frame.Action, frame.Specifier)}
	}
	return []secopcodec.Frame{{Action: secopcodec.ActionChanged, Specifier: frame.Specifier, HasData: true, Data: []any{v, map[string]any{}}}}
}

func (d *Dispatcher) do(frame secopcodec.Frame) []secopcodec.Frame {
	modName, cmdName := secopcodec.SplitSpecifier(frame.Specifier)
	m, ok := d.Node.GetModule(modName)
	if !ok {
		return []secopcodec.Frame{errorFrame(secoperr.NoSuchModule(modName), frame.Action, frame.Specifier)}
	}
	result, err := m.DoCommand(cmdName, frame.Data)
	if err != nil {
		return []secopcodec.Frame{errorFrame(err, frame.Action, frame.Specifier)}
	}
	return []secopcodec.Frame{{Action: secopcodec.ActionDone, Specifier: frame.Specifier, HasData: true, Data: []any{result, map[string]any{}}}}
}

// activate subscribes a connection to one module (or the whole node on
// an empty specifier) and flushes every cached parameter value as a
// synthetic update before the terminal "active" reply — the ordering
// §6 requires so a client never sees "active" before it has a complete
// initial snapshot.
func (d *Dispatcher) activate(conn Conn, frame secopcodec.Frame) []secopcodec.Frame {
	var names []string
	if frame.Specifier == "" {
		names = d.Node.AllModuleNames()
	} else {
		mod, _ := secopcodec.SplitSpecifier(frame.Specifier)
		names = []string{mod}
	}

	d.mu.Lock()
	for _, name := range names {
		if d.active[name] == nil {
			d.active[name] = make(map[string]Conn)
		}
		d.active[name][conn.ID()] = conn
	}
	d.mu.Unlock()

	var out []secopcodec.Frame
	for _, name := range names {
		m, ok := d.Node.GetModule(name)
		if !ok {
			continue
		}
		for _, pname := range m.Order {
			v, ts, err := m.Cached(pname)
			if v == nil && err == nil {
				continue
			}
			spec := name + ":" + pname
			if err != nil {
				out = append(out, errorUpdateFrame(err, spec))
				continue
			}
			out = append(out, secopcodec.Frame{
				Action: secopcodec.ActionUpdate, Specifier: spec, HasData: true,
				Data: []any{v, map[string]any{"t": ts.Unix()}},
			})
		}
	}
	out = append(out, secopcodec.Frame{Action: secopcodec.ActionActive, Specifier: frame.Specifier})
	return out
}

func (d *Dispatcher) deactivate(conn Conn, frame secopcodec.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if frame.Specifier == "" {
		for _, conns := range d.active {
			delete(conns, conn.ID())
		}
		return
	}
	mod, _ := secopcodec.SplitSpecifier(frame.Specifier)
	if conns, ok := d.active[mod]; ok {
		delete(conns, conn.ID())
	}
}

// Broadcast fans an update out to every connection active on this
// module, invoked from the per-module UpdateCallback wired in
// AttachModule.
func (d *Dispatcher) Broadcast(moduleName, paramName string, frame secopcodec.Frame) {
	d.mu.Lock()
	conns := d.active[moduleName]
	targets := make([]Conn, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	d.mu.Unlock()

	d.updatesTotal.Inc()
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			d.Log.Warn("send to %s failed: %v", c.ID(), err)
		}
	}
}

// errorFrame builds an error reply for the given request action, resolved
// to its "error_<request>" form via secopcodec.ErrorAction (§6, §4.6).
func errorFrame(err secoperr.Error, request secopcodec.Action, specifier string) secopcodec.Frame {
	return secopcodec.Frame{
		Action:    secopcodec.ErrorAction(request),
		Specifier: specifier,
		HasData:   true,
		Data:      []any{err.Name(), err.Error(), map[string]any{}},
	}
}

// errorUpdateFrame builds the asynchronous "error_update" broadcast a
// module's announceUpdate emits when it reports an error instead of a
// value — it has no originating request to name, so it always uses
// ActionErrorUpdate rather than ErrorAction.
func errorUpdateFrame(err secoperr.Error, specifier string) secopcodec.Frame {
	return secopcodec.Frame{
		Action:    secopcodec.ActionErrorUpdate,
		Specifier: specifier,
		HasData:   true,
		Data:      []any{err.Name(), err.Error(), map[string]any{}},
	}
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package secoperr is the SECoP error taxonomy (see spec §7), grounded on
// _examples/original_source/frappy/errors.py's SECoPError hierarchy. Go has
// no exceptions, so every fallible operation in this module returns one of
// these as its second value instead of raising.
package secoperr

import "fmt"

// Error is the interface every SECoP wire-error implements. Name is the
// identifier sent as the error class on the wire (e.g. "RangeError");
// Silent suppresses repeated-error logging the way frappy.errors.
// CommunicationFailedError's Silent subtype does.
type Error interface {
	error
	Name() string
	Silent() bool
}

// base carries the common shape of every concrete error below: a class
// name for the wire, a human text, and optional extra fields echoed back
// to the client alongside the error reply (§6 "error_<req> ... {<extra>}").
type base struct {
	name   string
	text   string
	extra  map[string]any
	silent bool
}

func (e *base) Error() string {
	if e.text == "" {
		return e.name
	}
	return fmt.Sprintf("%s: %s", e.name, e.text)
}

func (e *base) Name() string    { return e.name }
func (e *base) Silent() bool    { return e.silent }
func (e *base) Extra() map[string]any {
	return e.extra
}

func newBase(name, text string) *base {
	return &base{name: name, text: text}
}

// WithExtra attaches origin-trace-hint fields, mirroring the "extra fields
// carry an origin trace hint" requirement in §7.
func WithExtra(err Error, extra map[string]any) Error {
	if b, ok := err.(*base); ok {
		clone := *b
		clone.extra = extra
		return &clone
	}
	return err
}

// Extra returns the attached extra fields, if any.
func Extra(err Error) map[string]any {
	if b, ok := err.(*base); ok {
		return b.extra
	}
	return nil
}

// Concrete taxonomy, named exactly as spec §7 lists them.

// NoSuchModule — lookup failure in the dispatcher.
func NoSuchModule(module string) Error {
	return newBase("NoSuchModule", fmt.Sprintf("module %q does not exist on this SEC-node", module))
}

// NoSuchParameter — lookup failure in the dispatcher.
func NoSuchParameter(module, param string) Error {
	return newBase("NoSuchParameter", fmt.Sprintf("module %q has no parameter %q", module, param))
}

// NoSuchCommand — lookup failure in the dispatcher.
func NoSuchCommand(module, cmd string) Error {
	return newBase("NoSuchCommand", fmt.Sprintf("module %q has no command %q", module, cmd))
}

// ReadOnly — write request to a constant or readonly parameter.
func ReadOnly(module, param string) Error {
	return newBase("ReadOnly", fmt.Sprintf("%s:%s is not writable", module, param))
}

// WrongType — validate rejects value by shape.
func WrongType(text string) Error {
	return newBase("WrongType", text)
}

// RangeError — validate rejects value by bounds.
func RangeError(text string) Error {
	return newBase("RangeError", text)
}

// BadValue is the catch-all parent of WrongType/RangeError. Not raised
// directly, per spec §7, but kept so callers can type-switch on it.
func BadValue(text string) Error {
	return newBase("BadValue", text)
}

// ProtocolError — malformed frame or unsupported action.
func ProtocolError(text string) Error {
	return newBase("ProtocolError", text)
}

// CommandFailed — command dispatch outcome.
func CommandFailed(text string) Error {
	return newBase("CommandFailed", text)
}

// CommandRunning — a prior invocation of the same command has not finished.
func CommandRunning(text string) Error {
	return newBase("CommandRunning", text)
}

// CommunicationFailed — transport or hardware I/O failure.
func CommunicationFailed(text string) Error {
	return newBase("CommunicationFailed", text)
}

// CommunicationFailedSilent is the Silent subtype: same class on the wire,
// but suppresses repeated logging (poller error-dedup, §4.5).
func CommunicationFailedSilent(text string) Error {
	e := newBase("CommunicationFailed", text)
	e.silent = true
	return e
}

// IsBusy — state-guarded rejection: the module is busy.
func IsBusy(text string) Error {
	return newBase("IsBusy", text)
}

// IsError — state-guarded rejection: the module is in error state.
func IsError(text string) Error {
	return newBase("IsError", text)
}

// Disabled — state-guarded rejection: the module/feature is disabled.
func Disabled(text string) Error {
	return newBase("Disabled", text)
}

// HardwareError — generic device fault.
func HardwareError(text string) Error {
	return newBase("HardwareError", text)
}

// Internal — programming error, config error, unexpected panic recovery.
// Never raised deliberately from the happy path (§7).
func Internal(text string) Error {
	return newBase("Internal", text)
}

// ConfigError is raised during module construction when checkProperties
// accumulates mandatory-without-default violations (§4.2, §4.4).
func ConfigError(text string) Error {
	return newBase("ConfigError", text)
}

// Classes maps the class name used on the wire back to a constructor,
// mirroring frappy/errors.py's EXCEPTIONS dict used to reconstruct an
// error from [class, text, extra] on a proxy's receiving side (§7).
var Classes = map[string]func(string) Error{
	"NoSuchModule":         func(t string) Error { return newBase("NoSuchModule", t) },
	"NoSuchParameter":      func(t string) Error { return newBase("NoSuchParameter", t) },
	"NoSuchCommand":        func(t string) Error { return newBase("NoSuchCommand", t) },
	"ReadOnly":             func(t string) Error { return newBase("ReadOnly", t) },
	"WrongType":            WrongType,
	"RangeError":           RangeError,
	"BadValue":             BadValue,
	"ProtocolError":        ProtocolError,
	"CommandFailed":        CommandFailed,
	"CommandRunning":       CommandRunning,
	"CommunicationFailed":  CommunicationFailed,
	"IsBusy":               IsBusy,
	"IsError":              IsError,
	"Disabled":             Disabled,
	"HardwareError":        HardwareError,
	"Internal":             Internal,
	"ConfigError":          ConfigError,
}

// FromWire reconstructs an Error from the [class, text, extra] triple a
// proxy receives; unknown classes degrade to Internal (§7).
func FromWire(class, text string, extra map[string]any) Error {
	ctor, ok := Classes[class]
	if !ok {
		ctor = Internal
	}
	return WithExtra(ctor(text), extra)
}

// AsSECoP coerces an arbitrary Go error into a SECoP Error, converting
// uncaught exceptions into Internal the way the dispatcher does (§7).
func AsSECoP(err error) Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(Error); ok {
		return se
	}
	return Internal(err.Error())
}

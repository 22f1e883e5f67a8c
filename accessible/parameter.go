// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package accessible

import (
	"time"

	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secoptype"
)

// WriteOutcomeKind replaces the source's Done sentinel (§9 "Sentinel
// Done") with an explicit enum: a user write_P method returns one of
// these instead of relying on a special return value meaning "already
// handled".
type WriteOutcomeKind int

const (
	// OutcomeValue means the returned value should replace v and continue
	// through the normal wrapping (announce, etc).
	OutcomeValue WriteOutcomeKind = iota
	// OutcomeDone means the setter has already fired and announced; the
	// wrapper must not announce again.
	OutcomeDone
	// OutcomeUnchanged means "return the cached value without further
	// processing" — the absence-of-a-user-method case folded into the
	// same enum for uniform handling at the call site.
	OutcomeUnchanged
)

// WriteOutcome is the explicit return value a user write_P/read_P
// implementation produces, replacing the source's Done sentinel and
// None-means-something-else conventions.
type WriteOutcome struct {
	Kind  WriteOutcomeKind
	Value any
}

func Value(v any) WriteOutcome    { return WriteOutcome{Kind: OutcomeValue, Value: v} }
func Done() WriteOutcome          { return WriteOutcome{Kind: OutcomeDone} }
func Unchanged() WriteOutcome     { return WriteOutcome{Kind: OutcomeUnchanged} }

// UpdateUnchangedPolicy implements the update_unchanged property:
// Always/Never/a float seconds window/Default (falls back to the
// module's omit_unchanged_within, spec §3, §4.4).
type UpdateUnchangedPolicy struct {
	Always     bool
	Never      bool
	Seconds    float64 // valid when neither Always nor Never
	UseDefault bool
}

var UpdateUnchangedDefault = UpdateUnchangedPolicy{UseDefault: true}

// Parameter is a named, typed, cached value with optional writability
// (spec §3's Parameter attributes + runtime (value, timestamp,
// read_error) triple).
type Parameter struct {
	Name        string
	Description string
	DT          secoptype.DataType
	Readonly    bool
	Group       string
	Visibility  Visibility
	// Constant, if non-nil, is a fixed value making the parameter truly
	// read-only regardless of Readonly.
	Constant       *any
	Default        any
	exportName     string
	exportDisabled bool
	NeedsCfg       bool
	UpdateUnchanged UpdateUnchangedPolicy
	Influences     []string

	// Runtime cache triple (I3, I4): value is always the internal
	// representation, set by datatype.Validate or the last successful
	// read/write.
	Value      any
	Timestamp  time.Time
	ReadError  secoperr.Error
}

var _ Accessible = (*Parameter)(nil)

// NewParameter builds a Parameter with export defaulting to its own name,
// mirroring frappy.params.Parameter's default export behavior.
func NewParameter(name, description string, dt secoptype.DataType, readonly bool) *Parameter {
	return &Parameter{
		Name:        name,
		Description: description,
		DT:          dt,
		Readonly:    readonly,
		Visibility:  VisibilityUser,
		Default:     dt.Default(),

		UpdateUnchanged: UpdateUnchangedDefault,
	}
}

func (p *Parameter) AccessibleName() string         { return p.Name }
func (p *Parameter) Datatype() secoptype.DataType    { return p.DT }

func (p *Parameter) ExportName() string {
	if p.exportDisabled {
		return ""
	}
	if p.exportName != "" {
		return p.exportName
	}
	return p.Name
}

// SetExportName overrides the exported wire name; SetExportDisabled(true)
// is the "export name (or false)" case from §3.
func (p *Parameter) SetExportName(name string) { p.exportName = name }
func (p *Parameter) SetExportDisabled(v bool)  { p.exportDisabled = v }

// IsWritable reports whether a write is ever permitted: not Constant and
// not Readonly (§3, §4.3).
func (p *Parameter) IsWritable() bool {
	return p.Constant == nil && !p.Readonly
}

// Clone deep-clones this Parameter for a new module instance, per the
// Lifecycles note: "cloned per module instance at construction so cached
// state is per-instance."
func (p *Parameter) Clone() Accessible {
	clone := *p
	if p.Constant != nil {
		v := *p.Constant
		clone.Constant = &v
	}
	clone.Influences = append([]string(nil), p.Influences...)
	clone.Value = nil
	clone.Timestamp = time.Time{}
	clone.ReadError = nil
	return &clone
}

// OmitUnchangedWithin resolves UpdateUnchanged against the module-level
// default (given in seconds), returning whether unchanged values may be
// omitted and the effective coalescing window as a time.Duration (§4.4
// "announceUpdate ... omit_unchanged_within").
func (p *Parameter) OmitUnchangedWithin(moduleDefault float64) (omit bool, window time.Duration) {
	switch {
	case p.UpdateUnchanged.Always:
		return false, 0
	case p.UpdateUnchanged.Never:
		return false, -1 // -1 signals "never omit" to announceUpdate
	case p.UpdateUnchanged.UseDefault:
		return true, time.Duration(moduleDefault * float64(time.Second))
	default:
		return true, time.Duration(p.UpdateUnchanged.Seconds * float64(time.Second))
	}
}

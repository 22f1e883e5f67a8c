// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package accessible

import "github.com/secop-io/secopd/secoptype"

// Command is a named, typed RPC endpoint on a module (spec §3): argument
// type, result type, group, visibility, export name.
type Command struct {
	Name        string
	Description string
	CT          *secoptype.CommandType
	Group       string
	Visibility  Visibility

	exportName     string
	exportDisabled bool

	// Impl is the bound Go function invoked by Do; module.Module.BindDo
	// sets it, and it is nil until then.
	Impl func(arg any) (any, error)
}

var _ Accessible = (*Command)(nil)

func NewCommand(name, description string, ct *secoptype.CommandType) *Command {
	return &Command{Name: name, Description: description, CT: ct, Visibility: VisibilityUser}
}

func (c *Command) AccessibleName() string        { return c.Name }
func (c *Command) Datatype() secoptype.DataType  { return c.CT }

func (c *Command) ExportName() string {
	if c.exportDisabled {
		return ""
	}
	if c.exportName != "" {
		return c.exportName
	}
	return c.Name
}

func (c *Command) SetExportName(name string) { c.exportName = name }
func (c *Command) SetExportDisabled(v bool)  { c.exportDisabled = v }

// Clone copies the descriptor for a new module instance; Impl is rebound
// by the owning module's constructor after cloning (it closes over the
// instance receiver).
func (c *Command) Clone() Accessible {
	clone := *c
	return &clone
}

// Do dispatches the command the way spec §4.3 describes: validates the
// argument, invokes Impl, validates the result (or ignores it if no
// result type is declared). Structural splat for TupleOf/StructOf
// arguments is the caller's (module's) responsibility, since only the
// module knows how to map a tuple/struct onto its Go method signature.
func (c *Command) Do(arg any) (any, error) {
	if c.CT.Argument != nil {
		validated, verr := c.CT.Validate(arg)
		if verr != nil {
			return nil, verr
		}
		arg = validated
	}
	result, err := c.Impl(arg)
	if err != nil {
		return nil, err
	}
	return c.CT.ValidateResult(result)
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import "github.com/secop-io/secopd/secoperr"

// CommandType describes the argument/result shape of a Command accessible
// (§3, §4.3). It is itself a DataType so it can appear in Datainfo, but
// Validate/Export/Import operate on the argument, never the result —
// module.Module.DoCommand validates the result separately through
// ValidateResult.
type CommandType struct {
	Argument DataType // nil if the command takes no argument
	Result   DataType // nil if the command returns nothing
}

var _ DataType = (*CommandType)(nil)

func NewCommandType(argument, result DataType) *CommandType {
	return &CommandType{Argument: argument, Result: result}
}

func (t *CommandType) Validate(v any) (any, secoperr.Error) {
	if t.Argument == nil {
		if v != nil {
			return nil, secoperr.WrongType("command takes no argument")
		}
		return nil, nil
	}
	return t.Argument.Validate(v)
}

func (t *CommandType) ExportValue(internal any) any {
	if t.Argument == nil {
		return nil
	}
	return t.Argument.ExportValue(internal)
}

func (t *CommandType) ImportValue(wire any) (any, secoperr.Error) {
	if t.Argument == nil {
		return nil, nil
	}
	return t.Argument.ImportValue(wire)
}

func (t *CommandType) FormatValue(internal any, unit string) string {
	if t.Argument == nil {
		return ""
	}
	return t.Argument.FormatValue(internal, unit)
}

func (t *CommandType) FromString(s string) (any, secoperr.Error) {
	if t.Argument == nil {
		return nil, nil
	}
	return t.Argument.FromString(s)
}

func (t *CommandType) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*CommandType)
	if !ok {
		return secoperr.BadValue("not a command type")
	}
	if (t.Argument == nil) != (o.Argument == nil) {
		return secoperr.BadValue("argument presence mismatch")
	}
	if t.Argument != nil {
		if err := t.Argument.Compatible(o.Argument); err != nil {
			return err
		}
	}
	if (t.Result == nil) != (o.Result == nil) {
		return secoperr.BadValue("result presence mismatch")
	}
	if t.Result != nil {
		return t.Result.Compatible(o.Result)
	}
	return nil
}

func (t *CommandType) Default() any { return nil }

func (t *CommandType) Datainfo() map[string]any {
	m := map[string]any{"type": "command"}
	if t.Argument != nil {
		m["argument"] = t.Argument.Datainfo()
	}
	if t.Result != nil {
		m["result"] = t.Result.Datainfo()
	}
	return m
}

func (t *CommandType) SetMainUnit(unit string) {
	if t.Argument != nil {
		t.Argument.SetMainUnit(unit)
	}
	if t.Result != nil {
		t.Result.SetMainUnit(unit)
	}
}

// ValidateResult validates a command's return value against Result,
// ignoring it entirely if no result type was declared (§4.3).
func (t *CommandType) ValidateResult(v any) (any, secoperr.Error) {
	if t.Result == nil {
		return nil, nil
	}
	return t.Result.Validate(v)
}

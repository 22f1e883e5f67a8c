// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import "github.com/secop-io/secopd/secoperr"

// NoneOr(t) accepts either nil or a value of the wrapped type — used for
// optional property defaults before the real type is known (§3, internal-
// only, never appears in descriptive data).
type NoneOr struct {
	Wrapped DataType
}

var _ DataType = (*NoneOr)(nil)

func NewNoneOr(wrapped DataType) *NoneOr { return &NoneOr{Wrapped: wrapped} }

func (t *NoneOr) Validate(v any) (any, secoperr.Error) {
	if v == nil {
		return nil, nil
	}
	return t.Wrapped.Validate(v)
}

func (t *NoneOr) ExportValue(internal any) any {
	if internal == nil {
		return nil
	}
	return t.Wrapped.ExportValue(internal)
}

func (t *NoneOr) ImportValue(wire any) (any, secoperr.Error) {
	if wire == nil {
		return nil, nil
	}
	return t.Wrapped.ImportValue(wire)
}

func (t *NoneOr) FormatValue(internal any, unit string) string {
	if internal == nil {
		return "None"
	}
	return t.Wrapped.FormatValue(internal, unit)
}

func (t *NoneOr) FromString(s string) (any, secoperr.Error) {
	if s == "" || s == "None" {
		return nil, nil
	}
	return t.Wrapped.FromString(s)
}

func (t *NoneOr) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*NoneOr)
	if !ok {
		return t.Wrapped.Compatible(other)
	}
	return t.Wrapped.Compatible(o.Wrapped)
}

func (t *NoneOr) Default() any { return nil }

func (t *NoneOr) Datainfo() map[string]any {
	return map[string]any{"type": "none_or", "members": t.Wrapped.Datainfo()}
}

func (t *NoneOr) SetMainUnit(unit string) { t.Wrapped.SetMainUnit(unit) }

// OrType(t...) accepts any value accepted by one of the wrapped types, in
// order (§3, internal-only).
type OrType struct {
	Options []DataType
}

var _ DataType = (*OrType)(nil)

func NewOrType(options ...DataType) *OrType { return &OrType{Options: options} }

func (t *OrType) Validate(v any) (any, secoperr.Error) {
	var lastErr secoperr.Error
	for _, o := range t.Options {
		val, err := o.Validate(v)
		if err == nil {
			return val, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = secoperr.WrongType("no alternative type configured")
	}
	return nil, lastErr
}

func (t *OrType) ExportValue(internal any) any {
	for _, o := range t.Options {
		if _, err := o.Validate(internal); err == nil {
			return o.ExportValue(internal)
		}
	}
	return internal
}

func (t *OrType) ImportValue(wire any) (any, secoperr.Error) {
	var lastErr secoperr.Error
	for _, o := range t.Options {
		val, err := o.ImportValue(wire)
		if err == nil {
			return val, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (t *OrType) FormatValue(internal any, unit string) string {
	for _, o := range t.Options {
		if _, err := o.Validate(internal); err == nil {
			return o.FormatValue(internal, unit)
		}
	}
	return ""
}

func (t *OrType) FromString(s string) (any, secoperr.Error) {
	var lastErr secoperr.Error
	for _, o := range t.Options {
		val, err := o.FromString(s)
		if err == nil {
			return val, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (t *OrType) Compatible(other DataType) secoperr.Error {
	for _, o := range t.Options {
		if err := o.Compatible(other); err == nil {
			return nil
		}
	}
	return secoperr.BadValue("no alternative compatible with other")
}

func (t *OrType) Default() any {
	if len(t.Options) == 0 {
		return nil
	}
	return t.Options[0].Default()
}

func (t *OrType) Datainfo() map[string]any {
	opts := make([]any, len(t.Options))
	for i, o := range t.Options {
		opts[i] = o.Datainfo()
	}
	return map[string]any{"type": "or", "members": opts}
}

func (t *OrType) SetMainUnit(unit string) {
	for _, o := range t.Options {
		o.SetMainUnit(unit)
	}
}

// ValueType is an any-valued type restricted to JSON-representable
// shapes, used internally as the datatype of a Property's default before
// the real datatype exists (§3, §9 "Dynamic property overlay").
type ValueType struct {
	Validator func(any) secoperr.Error
}

var _ DataType = (*ValueType)(nil)

func NewValueType() *ValueType { return &ValueType{} }

func (t *ValueType) Validate(v any) (any, secoperr.Error) {
	if t.Validator != nil {
		if err := t.Validator(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (t *ValueType) ExportValue(internal any) any                 { return internal }
func (t *ValueType) ImportValue(wire any) (any, secoperr.Error)    { return t.Validate(wire) }
func (t *ValueType) FormatValue(internal any, _ string) string    { return formatAny(internal) }
func (t *ValueType) FromString(s string) (any, secoperr.Error)     { return s, nil }
func (t *ValueType) Compatible(DataType) secoperr.Error            { return nil }
func (t *ValueType) Default() any                                 { return nil }
func (t *ValueType) Datainfo() map[string]any                      { return map[string]any{"type": "any"} }
func (t *ValueType) SetMainUnit(string)                            {}

func formatAny(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "None"
	default:
		return "?"
	}
}

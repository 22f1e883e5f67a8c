// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/secop-io/secopd/secoperr"
)

// MaxDouble is the clamp target for ±∞ on Float import, per §4.1.
const MaxDouble = math.MaxFloat64

// FloatRange is the SECoP `double` type: {min, max, unit, fmtstr,
// absolute_resolution, relative_resolution}.
type FloatRange struct {
	Min, Max             float64
	Unit                 string
	Fmtstr               string
	AbsoluteResolution   float64
	RelativeResolution   float64
}

var _ DataType = (*FloatRange)(nil)

// NewFloatRange builds a FloatRange with the spec's default resolutions
// (absolute_resolution=1e-12, relative_resolution=1e-12).
func NewFloatRange(min, max float64) *FloatRange {
	return &FloatRange{Min: min, Max: max, Fmtstr: "%g", AbsoluteResolution: 1e-12, RelativeResolution: 1e-12}
}

func (t *FloatRange) Unit_() string { return t.Unit }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (t *FloatRange) Validate(v any) (any, secoperr.Error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not a number", v))
	}
	if math.IsInf(f, 1) {
		f = MaxDouble
	} else if math.IsInf(f, -1) {
		f = -MaxDouble
	}
	clamped, within := clampToRange(f, t.Min, t.Max, t.AbsoluteResolution, t.RelativeResolution)
	if !within {
		return nil, secoperr.RangeError(fmt.Sprintf("%g not in range [%g, %g]", f, t.Min, t.Max))
	}
	return clamped, nil
}

func (t *FloatRange) ExportValue(internal any) any { f, _ := toFloat(internal); return f }

func (t *FloatRange) ImportValue(wire any) (any, secoperr.Error) { return t.Validate(wire) }

func (t *FloatRange) FormatValue(internal any, overrideUnit string) string {
	f, _ := toFloat(internal)
	unit := t.Unit
	if overrideUnit != "" {
		unit = overrideUnit
	}
	fmtstr := t.Fmtstr
	if fmtstr == "" {
		fmtstr = "%g"
	}
	s := fmt.Sprintf(fmtstr, f)
	if unit != "" {
		return s + " " + unit
	}
	return s
}

func (t *FloatRange) FromString(s string) (any, secoperr.Error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, secoperr.WrongType(fmt.Sprintf("not a float: %q", s))
	}
	return t.Validate(f)
}

func (t *FloatRange) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*FloatRange)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not a numeric type")
	}
	if _, e := o.Validate(t.Min); e != nil {
		return secoperr.BadValue("incompatible range (min)")
	}
	if _, e := o.Validate(t.Max); e != nil {
		return secoperr.BadValue("incompatible range (max)")
	}
	return nil
}

func (t *FloatRange) Default() any { return 0.0 }

func (t *FloatRange) Datainfo() map[string]any {
	m := map[string]any{"type": "double", "min": t.Min, "max": t.Max}
	if t.Unit != "" {
		m["unit"] = t.Unit
	}
	if t.Fmtstr != "" {
		m["fmtstr"] = t.Fmtstr
	}
	if t.AbsoluteResolution != 0 {
		m["absolute_resolution"] = t.AbsoluteResolution
	}
	if t.RelativeResolution != 0 {
		m["relative_resolution"] = t.RelativeResolution
	}
	return m
}

func (t *FloatRange) SetMainUnit(unit string) {
	t.Unit = strings.ReplaceAll(t.Unit, "$", unit)
}

// IntRange is the SECoP `int` type: {min, max}.
type IntRange struct {
	Min, Max int64
}

var _ DataType = (*IntRange)(nil)

func NewIntRange(min, max int64) *IntRange { return &IntRange{Min: min, Max: max} }

func (t *IntRange) Validate(v any) (any, secoperr.Error) {
	switch n := v.(type) {
	case int:
		return t.validateInt(int64(n))
	case int64:
		return t.validateInt(n)
	case float64:
		if n != math.Trunc(n) {
			return nil, secoperr.WrongType(fmt.Sprintf("%v is not a whole number", v))
		}
		return t.validateInt(int64(n))
	default:
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not an int", v))
	}
}

func (t *IntRange) validateInt(n int64) (any, secoperr.Error) {
	if n < t.Min || n > t.Max {
		return nil, secoperr.RangeError(fmt.Sprintf("%d not in range [%d, %d]", n, t.Min, t.Max))
	}
	return n, nil
}

func (t *IntRange) ExportValue(internal any) any {
	switch n := internal.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return internal
}

func (t *IntRange) ImportValue(wire any) (any, secoperr.Error) { return t.Validate(wire) }

func (t *IntRange) FormatValue(internal any, overrideUnit string) string {
	return fmt.Sprintf("%d", internal)
}

func (t *IntRange) FromString(s string) (any, secoperr.Error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, secoperr.WrongType(fmt.Sprintf("not an int: %q", s))
	}
	return t.Validate(n)
}

func (t *IntRange) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*IntRange)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not an integer type")
	}
	if t.Min < o.Min || t.Max > o.Max {
		return secoperr.BadValue("incompatible range")
	}
	return nil
}

func (t *IntRange) Default() any { return int64(0) }

func (t *IntRange) Datainfo() map[string]any {
	return map[string]any{"type": "int", "min": t.Min, "max": t.Max}
}

func (t *IntRange) SetMainUnit(string) {}

// Int8/Int16/.../UInt64 are the canonical ranged shortcuts from
// frappy/datatypes.py's constants, preserved for config-syntax ergonomics.
var (
	Int8   = func() *IntRange { return NewIntRange(-1<<7, 1<<7-1) }
	Int16  = func() *IntRange { return NewIntRange(-1<<15, 1<<15-1) }
	Int32  = func() *IntRange { return NewIntRange(-1<<31, 1<<31-1) }
	Int64  = func() *IntRange { return NewIntRange(math.MinInt64, math.MaxInt64) }
	UInt8  = func() *IntRange { return NewIntRange(0, 1<<8-1) }
	UInt16 = func() *IntRange { return NewIntRange(0, 1<<16-1) }
	UInt32 = func() *IntRange { return NewIntRange(0, 1<<32-1) }
	UInt64 = func() *IntRange { return NewIntRange(0, math.MaxInt64) }
)

// ScaledInteger is the SECoP `scaled` type. Internal value is
// count*scale; wire value is the integer count (§3, §4.1).
type ScaledInteger struct {
	Scale                float64 // > 0
	Min, Max             float64 // in internal (scaled) units
	Unit                 string
	Fmtstr               string
	AbsoluteResolution   float64
	RelativeResolution   float64
}

var _ DataType = (*ScaledInteger)(nil)

func NewScaledInteger(scale, min, max float64) *ScaledInteger {
	return &ScaledInteger{Scale: scale, Min: min, Max: max, Fmtstr: "%g", AbsoluteResolution: 0, RelativeResolution: 0}
}

func (t *ScaledInteger) roundToScale(v float64) float64 {
	return math.Round(v/t.Scale) * t.Scale
}

func (t *ScaledInteger) Validate(v any) (any, secoperr.Error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not a number", v))
	}
	rounded := t.roundToScale(f)
	absRes := t.AbsoluteResolution
	if absRes == 0 {
		absRes = t.Scale / 2
	}
	clamped, within := clampToRange(rounded, t.Min, t.Max, absRes, t.RelativeResolution)
	if !within {
		return nil, secoperr.RangeError(fmt.Sprintf("%g not in range [%g, %g]", f, t.Min, t.Max))
	}
	return t.roundToScale(clamped), nil
}

func (t *ScaledInteger) ExportValue(internal any) any {
	f, _ := toFloat(internal)
	return int64(math.Round(f / t.Scale))
}

func (t *ScaledInteger) ImportValue(wire any) (any, secoperr.Error) {
	count, ok := toFloat(wire)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not an integer count", wire))
	}
	return t.Validate(count * t.Scale)
}

func (t *ScaledInteger) FormatValue(internal any, overrideUnit string) string {
	f, _ := toFloat(internal)
	unit := t.Unit
	if overrideUnit != "" {
		unit = overrideUnit
	}
	fmtstr := t.Fmtstr
	if fmtstr == "" {
		fmtstr = "%g"
	}
	s := fmt.Sprintf(fmtstr, f)
	if unit != "" {
		return s + " " + unit
	}
	return s
}

func (t *ScaledInteger) FromString(s string) (any, secoperr.Error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, secoperr.WrongType(fmt.Sprintf("not a float: %q", s))
	}
	return t.Validate(f)
}

func (t *ScaledInteger) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*ScaledInteger)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not a scaled type")
	}
	if _, e := o.Validate(t.Min); e != nil {
		return secoperr.BadValue("incompatible range (min)")
	}
	if _, e := o.Validate(t.Max); e != nil {
		return secoperr.BadValue("incompatible range (max)")
	}
	return nil
}

func (t *ScaledInteger) Default() any { return 0.0 }

func (t *ScaledInteger) Datainfo() map[string]any {
	m := map[string]any{
		"type": "scaled", "scale": t.Scale,
		"min": int64(math.Round(t.Min / t.Scale)), "max": int64(math.Round(t.Max / t.Scale)),
	}
	if t.Unit != "" {
		m["unit"] = t.Unit
	}
	return m
}

func (t *ScaledInteger) SetMainUnit(unit string) {
	t.Unit = strings.ReplaceAll(t.Unit, "$", unit)
}

// BoolType is the SECoP `bool` type. Validate accepts the literal set
// {0,1,true,false,"on","off","yes","no"} case-insensitively; exports
// strictly 0/1 (§4.1).
type BoolType struct{}

var _ DataType = BoolType{}

func (BoolType) Validate(v any) (any, secoperr.Error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		if b == 0 {
			return false, nil
		}
		if b == 1 {
			return true, nil
		}
	case int:
		if b == 0 {
			return false, nil
		}
		if b == 1 {
			return true, nil
		}
	case string:
		switch strings.ToLower(b) {
		case "true", "on", "yes":
			return true, nil
		case "false", "off", "no":
			return false, nil
		}
	}
	return nil, secoperr.WrongType(fmt.Sprintf("%v is not a bool", v))
}

func (BoolType) ExportValue(internal any) any {
	if b, _ := internal.(bool); b {
		return 1
	}
	return 0
}

func (t BoolType) ImportValue(wire any) (any, secoperr.Error) { return t.Validate(wire) }

func (BoolType) FormatValue(internal any, _ string) string {
	if b, _ := internal.(bool); b {
		return "True"
	}
	return "False"
}

func (t BoolType) FromString(s string) (any, secoperr.Error) { return t.Validate(s) }

func (BoolType) Compatible(other DataType) secoperr.Error {
	switch other.(type) {
	case BoolType, *ValueType:
		return nil
	default:
		return secoperr.BadValue("not a bool type")
	}
}

func (BoolType) Default() any { return false }

func (BoolType) Datainfo() map[string]any { return map[string]any{"type": "bool"} }

func (BoolType) SetMainUnit(string) {}

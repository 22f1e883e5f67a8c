// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package secoptype is the closed SECoP datatype algebra (spec §3, §4.1),
// grounded on _examples/original_source/frappy/datatypes.py. Where the
// Python source uses a metaclass and duck-typed validate()/export_value()
// methods, this package uses a plain interface: no method of a concrete
// type below changes it after construction except SetMainUnit (Struct's
// "frozen after initModule", I1).
package secoptype

import "github.com/secop-io/secopd/secoperr"

// DataType is the closed-algebra contract every SECoP type implements.
// Validate/ExportValue/ImportValue/FormatValue/FromString are the five
// total functions named in spec §4.1; Compatible implements §4.2.
type DataType interface {
	// Validate converts an arbitrary decoded-JSON value into the type's
	// internal representation, or fails with WrongType (shape) or
	// RangeError (bounds).
	Validate(v any) (any, secoperr.Error)
	// ExportValue converts an already-validated internal value to its
	// wire (transport JSON) representation. Total on validate's range.
	ExportValue(internal any) any
	// ImportValue is ExportValue's inverse: wire JSON -> internal. It
	// revalidates, so out-of-tolerance wire values still raise RangeError.
	ImportValue(wire any) (any, secoperr.Error)
	// FormatValue renders a human-readable string. FloatRange and
	// ScaledInteger append overrideUnit when it is non-empty, else their
	// own unit when set; compound types pass overrideUnit to their
	// members, and the other types ignore it.
	FormatValue(internal any, overrideUnit string) string
	// FromString parses the textual configuration-value syntax (§6).
	FromString(s string) (any, secoperr.Error)
	// Compatible succeeds iff every value this type accepts is also
	// accepted by other (§4.2).
	Compatible(other DataType) secoperr.Error
	// Default is the canonical zero value within the declared range.
	Default() any
	// Datainfo is the wire encoding used in descriptive data (§6).
	Datainfo() map[string]any
	// SetMainUnit substitutes "$" in unit properties (§4.1), applied once
	// before startModule; a no-op for unitless types.
	SetMainUnit(unit string)
}

// HasUnit mirrors frappy.datatypes.HasUnit. No datatype in this package
// implements it: FloatRange and ScaledInteger keep their unit in a Unit
// field, and FloatRange also returns it from Unit_.
type HasUnit interface {
	Unit() string
}

// withinTolerance implements the "tolerates overshoot by up to
// max(absolute_resolution, |value|*relative_resolution)" rule from §4.1.
func withinTolerance(v, bound, absRes, relRes float64) bool {
	tol := absRes
	if t := relRes * absFloat(v); t > tol {
		tol = t
	}
	return absFloat(v-bound) <= tol
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clampToRange(v, min, max, absRes, relRes float64) (float64, bool) {
	if v < min {
		if withinTolerance(v, min, absRes, relRes) {
			return min, true
		}
		return v, false
	}
	if v > max {
		if withinTolerance(v, max, absRes, relRes) {
			return max, true
		}
		return v, false
	}
	return v, true
}

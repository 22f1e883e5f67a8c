// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package accessible

import (
	"fmt"

	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secoptype"
)

// LimitKind distinguishes the three naming conventions frappy.params.Limit
// recognizes: a bare X_min/X_max pair, or a combined X_limits tuple.
type LimitKind int

const (
	LimitMin LimitKind = iota
	LimitMax
	LimitRange
)

// Limit is a Parameter specialization bound to a base parameter X, named
// X_min, X_max or X_limits (spec §3). Its datatype range is derived from
// the base parameter's datatype rather than declared independently,
// grounded on frappy.params.Limit.set_datatype.
type Limit struct {
	*Parameter
	Kind   LimitKind
	BaseOf string // the X in X_min/X_max/X_limits
}

// NewLimit derives a Limit's datatype from the base parameter's datatype:
// a FloatRange mirroring the base's bounds for X_min/X_max (scalar), or a
// TupleOf two such FloatRanges for X_limits, per the source's
// set_datatype.
func NewLimit(name, baseOf string, kind LimitKind, base secoptype.DataType, readonly bool) *Limit {
	dt := limitDatatype(base, kind)
	return &Limit{
		Parameter: NewParameter(name, limitDescription(baseOf, kind), dt, readonly),
		Kind:      kind,
		BaseOf:    baseOf,
	}
}

func limitDescription(baseOf string, kind LimitKind) string {
	switch kind {
	case LimitMin:
		return "lower limit for " + baseOf
	case LimitMax:
		return "upper limit for " + baseOf
	default:
		return "allowed (min, max) range for " + baseOf
	}
}

func limitDatatype(base secoptype.DataType, kind LimitKind) secoptype.DataType {
	lo, hi := limitBounds(base)
	if kind == LimitRange {
		return secoptype.NewTupleOf(
			secoptype.NewFloatRange(lo, hi),
			secoptype.NewFloatRange(lo, hi),
		)
	}
	return secoptype.NewFloatRange(lo, hi)
}

// limitBounds extracts a (min, max) pair from the base parameter's
// datatype; types without a natural range (Bool, Enum, String, ...) fall
// back to an unrestricted real-number range, matching the source's
// behavior of widening rather than rejecting when the base has no
// numeric range of its own.
func limitBounds(base secoptype.DataType) (float64, float64) {
	switch dt := base.(type) {
	case *secoptype.FloatRange:
		return dt.Min, dt.Max
	case *secoptype.IntRange:
		return float64(dt.Min), float64(dt.Max)
	case *secoptype.ScaledInteger:
		return dt.Min, dt.Max
	default:
		return -1e308, 1e308
	}
}

// Validate additionally enforces min<=max for the X_limits tuple form,
// mirroring the source's Limit.check_limits.
func (l *Limit) Validate(v any) (any, secoperr.Error) {
	value, err := l.DT.Validate(v)
	if err != nil {
		return nil, err
	}
	if l.Kind == LimitRange {
		if pair, ok := value.([]any); ok && len(pair) == 2 {
			lo, loOK := pair[0].(float64)
			hi, hiOK := pair[1].(float64)
			if loOK && hiOK && lo > hi {
				return nil, secoperr.RangeError(fmt.Sprintf("lower limit exceeds upper limit for %s", l.BaseOf))
			}
		}
	}
	return value, nil
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/secop-io/secopd/secoperr"
)

// EnumType is the SECoP `enum` type: an ordered mapping name -> int (§3).
type EnumType struct {
	EnumName string
	byName   map[string]int64
	byValue  map[int64]string
	order    []string // member names sorted by value; Default uses the first
}

var _ DataType = (*EnumType)(nil)

// NewEnumType builds an EnumType from a name and an ordered set of
// name=value pairs, mirroring frappy.datatypes.EnumType(name, **kwds).
func NewEnumType(name string, members map[string]int64) *EnumType {
	t := &EnumType{EnumName: name, byName: map[string]int64{}, byValue: map[int64]string{}}
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return members[keys[i]] < members[keys[j]] })
	for _, k := range keys {
		t.byName[k] = members[k]
		t.byValue[members[k]] = k
		t.order = append(t.order, k)
	}
	return t
}

func (t *EnumType) Validate(v any) (any, secoperr.Error) {
	switch n := v.(type) {
	case string:
		val, ok := t.byName[n]
		if !ok {
			return nil, secoperr.RangeError(fmt.Sprintf("%q is not a member of enum %s", n, t.EnumName))
		}
		return val, nil
	case float64:
		iv := int64(n)
		if _, ok := t.byValue[iv]; !ok {
			return nil, secoperr.RangeError(fmt.Sprintf("%d is not a member of enum %s", iv, t.EnumName))
		}
		return iv, nil
	case int64:
		if _, ok := t.byValue[n]; !ok {
			return nil, secoperr.RangeError(fmt.Sprintf("%d is not a member of enum %s", n, t.EnumName))
		}
		return n, nil
	case int:
		return t.Validate(int64(n))
	default:
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not an enum member", v))
	}
}

func (t *EnumType) ExportValue(internal any) any {
	n, _ := internal.(int64)
	return n
}

func (t *EnumType) ImportValue(wire any) (any, secoperr.Error) { return t.Validate(wire) }

func (t *EnumType) FormatValue(internal any, _ string) string {
	n, _ := internal.(int64)
	name := t.byValue[n]
	return fmt.Sprintf("%s<%d>", name, n)
}

func (t *EnumType) FromString(s string) (any, secoperr.Error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return t.Validate(n)
	}
	return t.Validate(s)
}

func (t *EnumType) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*EnumType)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not an enum type")
	}
	for name, val := range t.byName {
		ov, ok := o.byName[name]
		if !ok || ov != val {
			return secoperr.BadValue(fmt.Sprintf("member %q not accepted by other enum", name))
		}
	}
	return nil
}

func (t *EnumType) Default() any {
	if len(t.order) == 0 {
		return int64(0)
	}
	return t.byName[t.order[0]]
}

func (t *EnumType) Datainfo() map[string]any {
	members := make(map[string]any, len(t.byName))
	for k, v := range t.byName {
		members[k] = v
	}
	return map[string]any{"type": "enum", "members": members}
}

func (t *EnumType) SetMainUnit(string) {}

// Standard status enum alphabet (§3): IDLE=100, WARN=200, BUSY=300,
// ERROR=400, plus the sub-codes used by real modules.
const (
	StatusIdle        int64 = 100
	StatusWarn        int64 = 200
	StatusBusy        int64 = 300
	StatusBusyRamping int64 = 370
	StatusError       int64 = 400
)

// StatusEnum is the canonical status code enumeration.
var StatusEnum = NewEnumType("Status", map[string]int64{
	"DISABLED":     0,
	"IDLE":         StatusIdle,
	"WARN":         StatusWarn,
	"WARN_STANDBY": 130,
	"BUSY":         StatusBusy,
	"RAMPING":      StatusBusyRamping,
	"STABILIZING":  380,
	"FINALIZING":   390,
	"ERROR":        StatusError,
	"DISCONNECTED": 401,
	"UNKNOWN":      401,
})

// IsBusyCode implements I6: a Drivable's isBusy is true exactly when
// BUSY ≤ status.code < ERROR.
func IsBusyCode(code int64) bool {
	return code >= StatusBusy && code < StatusError
}

// NewStatusType builds the Tuple(Enum, String) compound named StatusType
// in §3.
func NewStatusType() *TupleOf {
	return NewTupleOf(StatusEnum, NewStringType())
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/secop-io/secopd/secoperr"
)

// splitTopLevel splits s on sep, skipping occurrences nested inside a
// matching (), [], {} pair or inside a quoted string, the bracket-depth
// tracking frappy/parse.py's tokenizer uses so a compound from_string
// literal can itself contain compound members (§4.1's "permissive
// bracketed/keyed syntax" for TupleOf/StructOf/ArrayOf).
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	var quoteCh byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote:
			if c == quoteCh {
				inQuote = false
			}
		case c == '\'' || c == '"':
			inQuote = true
			quoteCh = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// splitKeyValue splits one "key=value" or "key:value" struct literal
// member on its top-level (not bracket- or quote-nested) separator.
func splitKeyValue(s string) (key, value string, ok bool) {
	depth := 0
	inQuote := false
	var quoteCh byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote:
			if c == quoteCh {
				inQuote = false
			}
		case c == '\'' || c == '"':
			inQuote = true
			quoteCh = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && (c == '=' || c == ':'):
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// trimBrackets strips a leading open and a trailing close bracket (the
// style the caller names) plus surrounding whitespace.
func trimBrackets(s, open, close string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, open)
	s = strings.TrimSuffix(s, close)
	return strings.TrimSpace(s)
}

// ArrayOf is the SECoP `array` type: Array(member, minlen, maxlen) (§3).
type ArrayOf struct {
	Member         DataType
	MinLen, MaxLen int
}

var _ DataType = (*ArrayOf)(nil)

func NewArrayOf(member DataType, minlen, maxlen int) *ArrayOf {
	return &ArrayOf{Member: member, MinLen: minlen, MaxLen: maxlen}
}

func (t *ArrayOf) Validate(v any) (any, secoperr.Error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not an array", v))
	}
	if len(arr) < t.MinLen || len(arr) > t.MaxLen {
		return nil, secoperr.RangeError(fmt.Sprintf("length %d not in [%d, %d]", len(arr), t.MinLen, t.MaxLen))
	}
	out := make([]any, len(arr))
	for i, elem := range arr {
		validated, err := t.Member.Validate(elem)
		if err != nil {
			return nil, secoperr.WrongType(fmt.Sprintf("element %d: %s", i, err.Error()))
		}
		out[i] = validated
	}
	return out, nil
}

func (t *ArrayOf) ExportValue(internal any) any {
	arr, _ := internal.([]any)
	out := make([]any, len(arr))
	for i, elem := range arr {
		out[i] = t.Member.ExportValue(elem)
	}
	return out
}

func (t *ArrayOf) ImportValue(wire any) (any, secoperr.Error) {
	arr, ok := wire.([]any)
	if !ok {
		return nil, secoperr.WrongType("expected array on wire")
	}
	internal := make([]any, len(arr))
	for i, elem := range arr {
		v, err := t.Member.ImportValue(elem)
		if err != nil {
			return nil, err
		}
		internal[i] = v
	}
	return t.Validate(internal)
}

func (t *ArrayOf) FormatValue(internal any, unit string) string {
	arr, _ := internal.([]any)
	parts := make([]string, len(arr))
	for i, elem := range arr {
		parts[i] = t.Member.FormatValue(elem, unit)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (t *ArrayOf) FromString(s string) (any, secoperr.Error) {
	s = trimBrackets(s, "[", "]")
	if s == "" {
		return t.Validate([]any{})
	}
	parts := splitTopLevel(s, ',')
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := t.Member.FromString(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return t.Validate(out)
}

func (t *ArrayOf) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*ArrayOf)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not an array type")
	}
	if o.MinLen > t.MinLen || o.MaxLen < t.MaxLen {
		return secoperr.BadValue("incompatible length range")
	}
	return t.Member.Compatible(o.Member)
}

func (t *ArrayOf) Default() any {
	n := t.MinLen
	out := make([]any, n)
	for i := range out {
		out[i] = t.Member.Default()
	}
	return out
}

func (t *ArrayOf) Datainfo() map[string]any {
	m := map[string]any{"type": "array", "members": t.Member.Datainfo()}
	if t.MinLen != 0 {
		m["minlen"] = t.MinLen
	}
	if t.MaxLen != 0 {
		m["maxlen"] = t.MaxLen
	}
	return m
}

func (t *ArrayOf) SetMainUnit(unit string) { t.Member.SetMainUnit(unit) }

// TupleOf is the SECoP `tuple` type: Tuple(members...) (§3).
type TupleOf struct {
	Members []DataType
}

var _ DataType = (*TupleOf)(nil)

func NewTupleOf(members ...DataType) *TupleOf { return &TupleOf{Members: members} }

func (t *TupleOf) Validate(v any) (any, secoperr.Error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not a tuple", v))
	}
	if len(arr) != len(t.Members) {
		return nil, secoperr.WrongType(fmt.Sprintf("tuple has %d elements, want %d", len(arr), len(t.Members)))
	}
	out := make([]any, len(arr))
	for i, elem := range arr {
		validated, err := t.Members[i].Validate(elem)
		if err != nil {
			return nil, err
		}
		out[i] = validated
	}
	return out, nil
}

func (t *TupleOf) ExportValue(internal any) any {
	arr, _ := internal.([]any)
	out := make([]any, len(arr))
	for i, elem := range arr {
		out[i] = t.Members[i].ExportValue(elem)
	}
	return out
}

func (t *TupleOf) ImportValue(wire any) (any, secoperr.Error) {
	arr, ok := wire.([]any)
	if !ok || len(arr) != len(t.Members) {
		return nil, secoperr.WrongType("tuple shape mismatch on wire")
	}
	internal := make([]any, len(arr))
	for i, elem := range arr {
		v, err := t.Members[i].ImportValue(elem)
		if err != nil {
			return nil, err
		}
		internal[i] = v
	}
	return t.Validate(internal)
}

func (t *TupleOf) FormatValue(internal any, unit string) string {
	arr, _ := internal.([]any)
	parts := make([]string, len(arr))
	for i, elem := range arr {
		parts[i] = t.Members[i].FormatValue(elem, unit)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FromString parses a bracketed tuple literal, "(a, b, c)" or "[a, b, c]",
// one element per declared member in order (§4.1's "permissive
// bracketed/keyed syntax" for compound types, the Go analogue of
// frappy/parse.py's TupleOf.from_string).
func (t *TupleOf) FromString(s string) (any, secoperr.Error) {
	s = trimBrackets(s, "(", ")")
	s = trimBrackets(s, "[", "]")
	if s == "" && len(t.Members) == 0 {
		return t.Validate([]any{})
	}
	parts := splitTopLevel(s, ',')
	if len(parts) != len(t.Members) {
		return nil, secoperr.WrongType(fmt.Sprintf("tuple literal has %d elements, want %d", len(parts), len(t.Members)))
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		v, err := t.Members[i].FromString(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return t.Validate(out)
}

func (t *TupleOf) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*TupleOf)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not a tuple type")
	}
	if len(o.Members) != len(t.Members) {
		return secoperr.BadValue("tuple arity mismatch")
	}
	for i, m := range t.Members {
		if err := m.Compatible(o.Members[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *TupleOf) Default() any {
	out := make([]any, len(t.Members))
	for i, m := range t.Members {
		out[i] = m.Default()
	}
	return out
}

func (t *TupleOf) Datainfo() map[string]any {
	members := make([]any, len(t.Members))
	for i, m := range t.Members {
		members[i] = m.Datainfo()
	}
	return map[string]any{"type": "tuple", "members": members}
}

func (t *TupleOf) SetMainUnit(unit string) {
	for _, m := range t.Members {
		m.SetMainUnit(unit)
	}
}

// StructOf is the SECoP `struct` type: Struct(members, optional) (§3).
type StructOf struct {
	Members  map[string]DataType
	Optional map[string]bool
	order    []string // declaration order, preserved for FormatValue
}

var _ DataType = (*StructOf)(nil)

// NewStructOf builds a StructOf; names lists the declaration order (Go
// maps have none), optional the subset that may be omitted on Validate.
func NewStructOf(names []string, members map[string]DataType, optional []string) *StructOf {
	opt := make(map[string]bool, len(optional))
	for _, n := range optional {
		opt[n] = true
	}
	return &StructOf{Members: members, Optional: opt, order: names}
}

func (t *StructOf) Validate(v any) (any, secoperr.Error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not a struct", v))
	}
	out := make(map[string]any, len(m))
	for name, dt := range t.Members {
		val, present := m[name]
		if !present {
			if t.Optional[name] {
				continue
			}
			return nil, secoperr.WrongType(fmt.Sprintf("missing mandatory member %q", name))
		}
		validated, err := dt.Validate(val)
		if err != nil {
			return nil, err
		}
		out[name] = validated
	}
	for name := range m {
		if _, known := t.Members[name]; !known {
			return nil, secoperr.WrongType(fmt.Sprintf("superfluous member %q", name))
		}
	}
	return out, nil
}

func (t *StructOf) ExportValue(internal any) any {
	m, _ := internal.(map[string]any)
	out := make(map[string]any, len(m))
	for name, val := range m {
		out[name] = t.Members[name].ExportValue(val)
	}
	return out
}

func (t *StructOf) ImportValue(wire any) (any, secoperr.Error) {
	m, ok := wire.(map[string]any)
	if !ok {
		return nil, secoperr.WrongType("expected struct on wire")
	}
	internal := make(map[string]any, len(m))
	for name, val := range m {
		dt, known := t.Members[name]
		if !known {
			return nil, secoperr.WrongType(fmt.Sprintf("superfluous member %q", name))
		}
		v, err := dt.ImportValue(val)
		if err != nil {
			return nil, err
		}
		internal[name] = v
	}
	return t.Validate(internal)
}

func (t *StructOf) FormatValue(internal any, unit string) string {
	m, _ := internal.(map[string]any)
	names := t.order
	if len(names) == 0 {
		for n := range t.Members {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if val, ok := m[n]; ok {
			parts = append(parts, n+"="+t.Members[n].FormatValue(val, unit))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FromString parses a bracketed keyed literal, "{a=1, b=2}" (or using
// ':' in place of '='), one member at a time, omitting an entry leaves
// it to Validate to reject if the member isn't optional (§4.1, the Go
// analogue of frappy/parse.py's StructOf.from_string).
func (t *StructOf) FromString(s string) (any, secoperr.Error) {
	s = trimBrackets(s, "{", "}")
	out := make(map[string]any, len(t.Members))
	if s != "" {
		for _, part := range splitTopLevel(s, ',') {
			key, value, ok := splitKeyValue(strings.TrimSpace(part))
			if !ok {
				return nil, secoperr.WrongType(fmt.Sprintf("struct literal member %q missing '=' or ':'", part))
			}
			key = strings.TrimSpace(key)
			dt, known := t.Members[key]
			if !known {
				return nil, secoperr.WrongType(fmt.Sprintf("superfluous member %q", key))
			}
			v, err := dt.FromString(strings.TrimSpace(value))
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
	}
	return t.Validate(out)
}

func (t *StructOf) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*StructOf)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not a struct type")
	}
	for name, dt := range t.Members {
		odt, present := o.Members[name]
		if !present {
			if !o.Optional[name] {
				return secoperr.BadValue(fmt.Sprintf("other lacks member %q", name))
			}
			continue
		}
		if err := dt.Compatible(odt); err != nil {
			return err
		}
	}
	// every mandatory member of other must be present in this (§4.1).
	for name := range o.Members {
		if o.Optional[name] {
			continue
		}
		if _, present := t.Members[name]; !present {
			return secoperr.BadValue(fmt.Sprintf("this lacks mandatory member %q required by other", name))
		}
	}
	return nil
}

func (t *StructOf) Default() any {
	out := make(map[string]any, len(t.Members))
	for name, dt := range t.Members {
		if t.Optional[name] {
			continue
		}
		out[name] = dt.Default()
	}
	return out
}

func (t *StructOf) Datainfo() map[string]any {
	members := make(map[string]any, len(t.Members))
	for name, dt := range t.Members {
		members[name] = dt.Datainfo()
	}
	m := map[string]any{"type": "struct", "members": members}
	if len(t.Optional) > 0 {
		opt := make([]string, 0, len(t.Optional))
		for n := range t.Optional {
			opt = append(opt, n)
		}
		sort.Strings(opt)
		m["optional"] = opt
	}
	return m
}

func (t *StructOf) SetMainUnit(unit string) {
	for _, dt := range t.Members {
		dt.SetMainUnit(unit)
	}
}

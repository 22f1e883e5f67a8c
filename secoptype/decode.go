// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"fmt"
	"sort"

	"github.com/secop-io/secopd/secoperr"
)

// decoders mirrors frappy.datatypes.DATATYPES: a dispatch table from the
// wire "type" tag to a decoder building the concrete DataType from its
// datainfo map. Filled in by init instead of a package-level map literal
// so ArrayOf/TupleOf/StructOf can recurse through FromDatainfo.
var decoders map[string]func(map[string]any) (DataType, secoperr.Error)

func init() {
	decoders = map[string]func(map[string]any) (DataType, secoperr.Error){
		"double": decodeFloat,
		"int":    decodeInt,
		"scaled": decodeScaled,
		"bool":   func(map[string]any) (DataType, secoperr.Error) { return BoolType{}, nil },
		"string": decodeString,
		"text":   decodeText,
		"blob":   decodeBlob,
		"enum":   decodeEnum,
		"array":  decodeArray,
		"tuple":  decodeTuple,
		"struct": decodeStruct,
	}
}

// FromDatainfo is frappy.datatypes.get_datatype: decode a wire datainfo
// map back into a concrete DataType.
func FromDatainfo(info map[string]any) (DataType, secoperr.Error) {
	tname, _ := info["type"].(string)
	dec, ok := decoders[tname]
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("unknown datainfo type %q", tname))
	}
	return dec(info)
}

func numOr(info map[string]any, key string, def float64) float64 {
	if v, ok := info[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return def
}

func decodeFloat(info map[string]any) (DataType, secoperr.Error) {
	t := NewFloatRange(numOr(info, "min", -MaxDouble), numOr(info, "max", MaxDouble))
	if u, ok := info["unit"].(string); ok {
		t.Unit = u
	}
	if f, ok := info["fmtstr"].(string); ok {
		t.Fmtstr = f
	}
	return t, nil
}

func decodeInt(info map[string]any) (DataType, secoperr.Error) {
	return NewIntRange(int64(numOr(info, "min", -1<<31)), int64(numOr(info, "max", 1<<31-1))), nil
}

func decodeScaled(info map[string]any) (DataType, secoperr.Error) {
	scale := numOr(info, "scale", 1)
	t := NewScaledInteger(scale, numOr(info, "min", -1<<31)*scale, numOr(info, "max", 1<<31-1)*scale)
	if u, ok := info["unit"].(string); ok {
		t.Unit = u
	}
	return t, nil
}

func decodeString(info map[string]any) (DataType, secoperr.Error) {
	t := NewStringType()
	t.MinChars = int(numOr(info, "minchars", 0))
	if v, ok := info["maxchars"]; ok {
		if f, ok := toFloat(v); ok {
			t.MaxChars = int(f)
		}
	}
	if u, ok := info["isUTF8"].(bool); ok {
		t.IsUTF8 = u
	}
	return t, nil
}

func decodeText(info map[string]any) (DataType, secoperr.Error) {
	base, err := decodeString(info)
	if err != nil {
		return nil, err
	}
	return &TextType{StringType: *base.(*StringType)}, nil
}

func decodeBlob(info map[string]any) (DataType, secoperr.Error) {
	t := NewBlobType()
	t.MinBytes = int(numOr(info, "minbytes", 0))
	if v, ok := info["maxbytes"]; ok {
		if f, ok := toFloat(v); ok {
			t.MaxBytes = int(f)
		}
	}
	return t, nil
}

func decodeEnum(info map[string]any) (DataType, secoperr.Error) {
	raw, _ := info["members"].(map[string]any)
	members := make(map[string]int64, len(raw))
	for k, v := range raw {
		if f, ok := toFloat(v); ok {
			members[k] = int64(f)
		}
	}
	name, _ := info["name"].(string)
	return NewEnumType(name, members), nil
}

func decodeArray(info map[string]any) (DataType, secoperr.Error) {
	sub, _ := info["members"].(map[string]any)
	member, err := FromDatainfo(sub)
	if err != nil {
		return nil, err
	}
	return NewArrayOf(member, int(numOr(info, "minlen", 0)), int(numOr(info, "maxlen", 1<<20))), nil
}

func decodeTuple(info map[string]any) (DataType, secoperr.Error) {
	raw, _ := info["members"].([]any)
	members := make([]DataType, 0, len(raw))
	for _, m := range raw {
		mm, ok := m.(map[string]any)
		if !ok {
			return nil, secoperr.WrongType("tuple member datainfo must be an object")
		}
		dt, err := FromDatainfo(mm)
		if err != nil {
			return nil, err
		}
		members = append(members, dt)
	}
	return NewTupleOf(members...), nil
}

func decodeStruct(info map[string]any) (DataType, secoperr.Error) {
	raw, _ := info["members"].(map[string]any)
	members := make(map[string]DataType, len(raw))
	names := make([]string, 0, len(raw))
	for k, v := range raw {
		mm, ok := v.(map[string]any)
		if !ok {
			return nil, secoperr.WrongType("struct member datainfo must be an object")
		}
		dt, err := FromDatainfo(mm)
		if err != nil {
			return nil, err
		}
		members[k] = dt
		names = append(names, k)
	}
	sort.Strings(names)
	var optional []string
	if raw, ok := info["optional"].([]any); ok {
		for _, o := range raw {
			if s, ok := o.(string); ok {
				optional = append(optional, s)
			}
		}
	}
	return NewStructOf(names, members, optional), nil
}

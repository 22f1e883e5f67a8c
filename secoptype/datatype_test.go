// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Seed test 1: Int range.
func TestIntRange(t *testing.T) {
	dt := NewIntRange(-3, 3)

	v, err := dt.Validate(float64(0))
	require.Nil(t, err)
	assert.Equal(t, int64(0), v)

	v, err = dt.Validate(float64(3))
	require.Nil(t, err)
	assert.Equal(t, int64(3), v)

	_, err = dt.Validate(float64(4))
	require.NotNil(t, err)
	assert.Equal(t, "RangeError", err.Name())

	_, err = dt.Validate("2")
	require.NotNil(t, err)
	assert.Equal(t, "WrongType", err.Name())

	_, err = dt.Validate(1.5)
	require.NotNil(t, err)
	assert.Equal(t, "WrongType", err.Name())
}

// Seed test 2: Scaled round-trip.
func TestScaledRoundTrip(t *testing.T) {
	dt := NewScaledInteger(0.1, 0, 10)

	v, err := dt.Validate(0.7)
	require.Nil(t, err)
	assert.InDelta(t, 0.7, v, 1e-9)

	assert.Equal(t, int64(7), dt.ExportValue(v))

	imported, err := dt.ImportValue(int64(7))
	require.Nil(t, err)
	assert.InDelta(t, 0.7, imported, 1e-9)

	// 10.001 clamps silently within tolerance (AbsoluteResolution defaults
	// to scale/2 = 0.05, well above the 0.001 overshoot).
	clamped, err := dt.Validate(10.001)
	require.Nil(t, err)
	assert.InDelta(t, 10.0, clamped, 1e-9)
}

// Seed test 3: Enum.
func TestEnum(t *testing.T) {
	dt := NewEnumType("S", map[string]int64{"IDLE": 100, "BUSY": 300})

	v, err := dt.Validate("IDLE")
	require.Nil(t, err)
	assert.Equal(t, int64(100), v)

	v, err = dt.Validate(float64(300))
	require.Nil(t, err)
	assert.Equal(t, int64(300), v)

	assert.Equal(t, "BUSY<300>", dt.FormatValue(int64(300), ""))

	_, err = dt.Validate("x")
	require.NotNil(t, err)
	assert.Equal(t, "RangeError", err.Name())
}

// Seed test 4: Struct with optional.
func TestStructWithOptional(t *testing.T) {
	dt := NewStructOf([]string{"a", "b"}, map[string]DataType{
		"a": NewIntRange(0, 10),
		"b": BoolType{},
	}, []string{"b"})

	v, err := dt.Validate(map[string]any{"a": float64(3)})
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"a": int64(3)}, v)

	v, err = dt.Validate(map[string]any{"a": float64(3), "b": true})
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"a": int64(3), "b": true}, v)

	_, err = dt.Validate(map[string]any{"a": float64(3), "c": float64(1)})
	require.NotNil(t, err)
	assert.Equal(t, "WrongType", err.Name())
}

// Universal round-trip law from §8.
func TestRoundTripLaw(t *testing.T) {
	types := []DataType{
		NewFloatRange(-100, 100),
		NewIntRange(-10, 10),
		NewScaledInteger(0.5, -10, 10),
		BoolType{},
		NewEnumType("x", map[string]int64{"A": 1, "B": 2}),
	}
	samples := []any{float64(3), float64(-2), true, "A", float64(1)}

	for _, dt := range types {
		for _, v := range samples {
			w, err := dt.Validate(v)
			if err != nil {
				continue
			}
			wire := dt.ExportValue(w)
			reimported, ierr := dt.ImportValue(wire)
			require.Nil(t, ierr)
			w2, verr := dt.Validate(reimported)
			require.Nil(t, verr)
			assert.Equal(t, w, w2)
		}
	}
}

func TestArrayFromStringParsesNestedBrackets(t *testing.T) {
	dt := NewArrayOf(NewArrayOf(NewIntRange(0, 10), 0, 10), 0, 10)

	v, err := dt.FromString("[[1, 2], [3]]")
	require.Nil(t, err)
	assert.Equal(t, []any{[]any{int64(1), int64(2)}, []any{int64(3)}}, v)
}

func TestTupleFromStringParsesPositionalLiteral(t *testing.T) {
	dt := NewTupleOf(NewFloatRange(-10, 10), BoolType{})

	v, err := dt.FromString("(3.5, true)")
	require.Nil(t, err)
	assert.Equal(t, []any{3.5, true}, v)
}

func TestTupleFromStringRejectsWrongArity(t *testing.T) {
	dt := NewTupleOf(NewFloatRange(-10, 10), BoolType{})

	_, err := dt.FromString("(3.5)")
	require.NotNil(t, err)
	assert.Equal(t, "WrongType", err.Name())
}

func TestStructFromStringParsesKeyedLiteral(t *testing.T) {
	dt := NewStructOf([]string{"a", "b"}, map[string]DataType{
		"a": NewIntRange(0, 10),
		"b": BoolType{},
	}, []string{"b"})

	v, err := dt.FromString("{a=3, b=true}")
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"a": int64(3), "b": true}, v)
}

func TestStructFromStringOmitsOptionalMember(t *testing.T) {
	dt := NewStructOf([]string{"a", "b"}, map[string]DataType{
		"a": NewIntRange(0, 10),
		"b": BoolType{},
	}, []string{"b"})

	v, err := dt.FromString("{a=3}")
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"a": int64(3)}, v)
}

func TestStructFromStringRejectsMissingMandatoryMember(t *testing.T) {
	dt := NewStructOf([]string{"a", "b"}, map[string]DataType{
		"a": NewIntRange(0, 10),
		"b": BoolType{},
	}, nil)

	_, err := dt.FromString("{a=3}")
	require.NotNil(t, err)
	assert.Equal(t, "WrongType", err.Name())
}

// Compatibility reflexivity and direction, §8.
func TestCompatibility(t *testing.T) {
	narrow := NewIntRange(-3, 3)
	wide := NewIntRange(-10, 10)

	assert.Nil(t, narrow.Compatible(narrow))
	assert.Nil(t, narrow.Compatible(wide))
	assert.NotNil(t, wide.Compatible(narrow))
}

func TestScaledCompatibility(t *testing.T) {
	narrow := NewScaledInteger(0.1, -1, 1)
	wide := NewScaledInteger(0.1, -10, 10)

	assert.Nil(t, narrow.Compatible(wide))
	assert.NotNil(t, wide.Compatible(narrow))
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package accessible

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secop-io/secopd/secoptype"
)

func TestParameterExportNameDefaultsToName(t *testing.T) {
	p := NewParameter("value", "the value", secoptype.NewFloatRange(0, 100), true)
	assert.Equal(t, "value", p.ExportName())

	p.SetExportName("val")
	assert.Equal(t, "val", p.ExportName())

	p.SetExportDisabled(true)
	assert.Equal(t, "", p.ExportName())
}

func TestParameterIsWritable(t *testing.T) {
	ro := NewParameter("status", "status", secoptype.NewStatusType(), true)
	assert.False(t, ro.IsWritable())

	rw := NewParameter("target", "target", secoptype.NewFloatRange(0, 100), false)
	assert.True(t, rw.IsWritable())

	zero := 0.0
	var constVal any = zero
	rw.Constant = &constVal
	assert.False(t, rw.IsWritable())
}

func TestParameterCloneIsIndependent(t *testing.T) {
	p := NewParameter("target", "target", secoptype.NewFloatRange(0, 100), false)
	p.Influences = []string{"value"}
	p.Value = 5.0

	clone := p.Clone().(*Parameter)
	clone.Influences[0] = "other"
	clone.Value = 9.0

	assert.Equal(t, "value", p.Influences[0])
	assert.Equal(t, 5.0, p.Value)
	assert.Nil(t, clone.Value)
}

func TestLimitDerivesRangeFromBase(t *testing.T) {
	base := secoptype.NewFloatRange(-10, 10)
	lo := NewLimit("target_min", "target", LimitMin, base, false)
	assert.Equal(t, base.Min, lo.DT.(*secoptype.FloatRange).Min)
	assert.Equal(t, base.Max, lo.DT.(*secoptype.FloatRange).Max)

	rangeLimit := NewLimit("target_limits", "target", LimitRange, base, false)
	tup, ok := rangeLimit.DT.(*secoptype.TupleOf)
	require.True(t, ok)
	assert.Len(t, tup.Members, 2)
}

func TestLimitRejectsInvertedRange(t *testing.T) {
	base := secoptype.NewFloatRange(-10, 10)
	lim := NewLimit("target_limits", "target", LimitRange, base, false)

	_, err := lim.Validate([]any{float64(5), float64(-5)})
	require.NotNil(t, err)
	assert.Equal(t, "RangeError", err.Name())
}

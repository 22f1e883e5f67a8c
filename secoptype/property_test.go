// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyMandatoryWithoutDefault(t *testing.T) {
	h := NewHasProperties()
	h.Defs["unit"] = Property{Datatype: NewStringType(), Mandatory: true}

	errs := h.CheckProperties()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unit")
}

func TestPropertyMinMaxOrdering(t *testing.T) {
	h := NewHasProperties()
	h.Defs["min"] = Property{Datatype: NewFloatRange(-1000, 1000)}
	h.Defs["max"] = Property{Datatype: NewFloatRange(-1000, 1000)}
	require.Nil(t, h.SetProperty("min", 10.0))
	require.Nil(t, h.SetProperty("max", 5.0))

	errs := h.CheckProperties()
	require.Len(t, errs, 1)
}

func TestPropertyExportSubset(t *testing.T) {
	h := NewHasProperties()
	h.Defs["description"] = Property{Datatype: NewStringType(), Export: true, Default: "", HasDefault: true}
	h.Defs["group"] = Property{Datatype: NewStringType(), Export: true, Default: "", HasDefault: true}
	require.Nil(t, h.SetProperty("description", "a sensor"))

	exported := h.ExportProperties()
	assert.Equal(t, "a sensor", exported["description"])
	_, hasGroup := exported["group"]
	assert.False(t, hasGroup, "unset, default-valued properties are omitted")
}

func TestPropertyMergeKeepsBaseUnlessOverridden(t *testing.T) {
	base := NewHasProperties()
	base.Defs["visibility"] = Property{Datatype: NewStringType(), Default: "user", HasDefault: true}
	base.Values["visibility"] = "user"

	child := NewHasProperties()
	child.Defs["visibility"] = Property{Datatype: NewStringType(), Default: "user", HasDefault: true}
	child.Values["visibility"] = "expert"
	child.Merge(base)

	v, _ := child.Get("visibility")
	assert.Equal(t, "expert", v)
}

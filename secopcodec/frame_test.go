// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secopcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActionOnly(t *testing.T) {
	f, err := Decode([]byte("*IDN?\n"))
	require.NoError(t, err)
	assert.Equal(t, ActionIdentify, f.Action)
	assert.Equal(t, "", f.Specifier)
	assert.False(t, f.HasData)
}

func TestDecodeWithSpecifierAndData(t *testing.T) {
	f, err := Decode([]byte("change mod:target [5.0]\n"))
	require.NoError(t, err)
	assert.Equal(t, Action("change"), f.Action)
	assert.Equal(t, "mod:target", f.Specifier)
	require.True(t, f.HasData)
	arr, ok := f.Data.([]any)
	require.True(t, ok)
	assert.Equal(t, 5.0, arr[0])
}

func TestDecodeDotSpecifier(t *testing.T) {
	f, err := Decode([]byte("describe . 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "", f.Specifier)
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := Encode(Frame{Action: ActionUpdate, Specifier: "mod:value", HasData: true, Data: []any{1.0, map[string]any{}}})
	require.NoError(t, err)

	f, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, f.Action)
	assert.Equal(t, "mod:value", f.Specifier)
}

func TestSplitSpecifier(t *testing.T) {
	mod, acc := SplitSpecifier("mod:target")
	assert.Equal(t, "mod", mod)
	assert.Equal(t, "target", acc)

	mod, acc = SplitSpecifier("mod")
	assert.Equal(t, "mod", mod)
	assert.Equal(t, "", acc)
}

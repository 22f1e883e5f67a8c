// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerialURIDefaults(t *testing.T) {
	opts, err := ParseSerialURI("serial:///dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", opts.Device)
	assert.Equal(t, 9600, opts.BaudRate)
	assert.Equal(t, "N", opts.Parity)
}

func TestParseSerialURIOptions(t *testing.T) {
	opts, err := ParseSerialURI("serial:///dev/ttyUSB0?baudrate=115200&parity=e")
	require.NoError(t, err)
	assert.Equal(t, 115200, opts.BaudRate)
	assert.Equal(t, "E", opts.Parity)
}

func TestParseSerialURIRejectsUnknownOption(t *testing.T) {
	_, err := ParseSerialURI("serial:///dev/ttyUSB0?flavor=grape")
	require.Error(t, err)
}

func TestTrimEOL(t *testing.T) {
	assert.Equal(t, []byte("hello"), trimEOL([]byte("hello\r\n")))
	assert.Equal(t, []byte("hello"), trimEOL([]byte("hello\n")))
}

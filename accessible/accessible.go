// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package accessible implements C3: Parameter, Command and Limit, the
// declarative descriptors carrying a datatype and properties plus wrapped
// read/write/execute contracts (spec §3, §4.3), grounded on
// _examples/original_source/frappy/params.py.
package accessible

import "github.com/secop-io/secopd/secoptype"

// Visibility is the three-tier visibility property shared by every
// accessible and module (§3).
type Visibility string

const (
	VisibilityUser     Visibility = "user"
	VisibilityAdvanced Visibility = "advanced"
	VisibilityExpert   Visibility = "expert"
)

// Accessible is the common shape of Parameter and Command: the union
// named in spec §3.
type Accessible interface {
	AccessibleName() string
	Datatype() secoptype.DataType
	ExportName() string // "" means not exported
	Clone() Accessible  // deep-clone for a new module instance (I2, Lifecycles)
}

// PredefinedOrder is the canonical declaration order preserved by
// module.Module.AddAccessible (§4.3); new items not in this list append
// in declaration order.
var PredefinedOrder = []string{
	"value", "status", "target", "pollinterval", "ramp", "use_ramp",
	"setpoint", "time_to_target", "controlled_by", "control_active",
	"unit", "loglevel", "mode", "ctrlpars", "stop", "reset", "go",
	"abort", "shutdown", "communicate",
}

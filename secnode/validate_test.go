// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secnode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/secop-io/secopd/clog"
)

func TestValidateDescriptiveDataAcceptsWellFormedNode(t *testing.T) {
	n := New(NodeProperties{EquipmentID: "node1"}, clog.NewLogger("test"))
	n.Declare("sensor", sensorFactory("sensor"))
	n.CreateModules()

	err := ValidateDescriptiveData(n.GetDescriptiveData("", ""))
	assert.NoError(t, err)
}

func TestValidateDescriptiveDataRejectsMissingEquipmentID(t *testing.T) {
	err := ValidateDescriptiveData(map[string]any{
		"modules": map[string]any{},
	})
	assert.Error(t, err)
}

func TestValidateDescriptiveDataRejectsAccessibleWithoutDatainfo(t *testing.T) {
	err := ValidateDescriptiveData(map[string]any{
		"equipment_id": "node1",
		"modules": map[string]any{
			"sensor": map[string]any{
				"accessibles": map[string]any{
					"value": map[string]any{},
				},
			},
		},
	})
	assert.Error(t, err)
}

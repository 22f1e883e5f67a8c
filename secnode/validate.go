// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secnode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// descriptiveDataSchema is a minimal structural check on the
// GetDescriptiveData output (§6's "descriptive-data JSON" shape):
// every declared module must carry an "accessibles" object, and every
// accessible entry a "datainfo" object. It is intentionally looser than
// the full SECoP describe-message grammar — the datatype algebra itself
// is already exhaustively validated in secoptype — this is a startup
// sanity check that the node assembled something shaped like what a
// client expects, not a second implementation of the type system.
const descriptiveDataSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["equipment_id", "modules"],
  "properties": {
    "equipment_id": {"type": "string", "minLength": 1},
    "modules": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["accessibles"],
        "properties": {
          "accessibles": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "required": ["datainfo"],
              "properties": {
                "datainfo": {"type": "object", "required": ["type"]}
              }
            }
          }
        }
      }
    }
  }
}`

// ValidateDescriptiveData compiles the schema above and checks a
// GetDescriptiveData("", "") result against it, meant to be called once
// at node startup so a misconfigured module registry (e.g. an
// accessible whose Datainfo() forgot the "type" key) fails loudly before
// any client ever connects, rather than surfacing as a confusing
// describe-time error deep in a client's JSON decoder.
func ValidateDescriptiveData(data map[string]any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("descriptive-data.json", bytes.NewReader([]byte(descriptiveDataSchemaJSON))); err != nil {
		return fmt.Errorf("secnode: compile descriptive-data schema: %w", err)
	}
	schema, err := compiler.Compile("descriptive-data.json")
	if err != nil {
		return fmt.Errorf("secnode: compile descriptive-data schema: %w", err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("secnode: marshal descriptive data: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("secnode: unmarshal descriptive data: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("secnode: descriptive data failed validation: %w", err)
	}
	return nil
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"fmt"

	"github.com/secop-io/secopd/secoperr"
)

// Property is a typed, inheritable metadata slot attached to a datatype,
// parameter, command or module (spec §4.2), grounded on
// _examples/original_source/secop/properties.py's Property descriptor.
// Unlike the Python source's class-attribute descriptor + metaclass
// machinery (§9 "Descriptor metaclass"), a Property here is a plain value
// composed at constructor time into a HasProperties' Defs map.
type Property struct {
	Description string
	Datatype    DataType
	Default     any  // UNSET is represented by HasDefault=false
	HasDefault  bool
	ExportName  string // "" means exported under the property's own name; Export decides whether it is exported
	Export      bool
	Mandatory   bool
	Settable    bool
}

// HasProperties carries a Property set; module.Module embeds it.
type HasProperties struct {
	Defs   map[string]Property // merged property definitions (MRO-order)
	Values map[string]any       // current values, keyed the same as Defs
}

// NewHasProperties builds an empty property-bearing object.
func NewHasProperties() HasProperties {
	return HasProperties{Defs: map[string]Property{}, Values: map[string]any{}}
}

// Merge overlays child's property definitions on top of base's, per §4.2
// "subclass property definitions merge with base's": a property defined
// in both takes child's definition whole, and keeps base's already-set
// value unless child also sets one.
func (h *HasProperties) Merge(base HasProperties) {
	merged := make(map[string]Property, len(base.Defs)+len(h.Defs))
	for k, v := range base.Defs {
		merged[k] = v
	}
	for k, v := range h.Defs {
		merged[k] = v
	}
	h.Defs = merged

	values := make(map[string]any, len(base.Values)+len(h.Values))
	for k, v := range base.Values {
		values[k] = v
	}
	for k, v := range h.Values {
		values[k] = v
	}
	h.Values = values
}

// SetProperty validates value against the property's datatype and stores
// it (§4.2). Unknown keys are a programming error (ConfigError), not a
// silent no-op.
func (h *HasProperties) SetProperty(key string, value any) secoperr.Error {
	def, ok := h.Defs[key]
	if !ok {
		return secoperr.ConfigError(fmt.Sprintf("unknown property %q", key))
	}
	validated, err := def.Datatype.Validate(value)
	if err != nil {
		return secoperr.ConfigError(fmt.Sprintf("property %q: %s", key, err.Error()))
	}
	h.Values[key] = validated
	return nil
}

// Get returns a property's current value, falling back to its default.
func (h *HasProperties) Get(key string) (any, bool) {
	if v, ok := h.Values[key]; ok {
		return v, true
	}
	if def, ok := h.Defs[key]; ok && def.HasDefault {
		return def.Default, true
	}
	return nil, false
}

// CheckProperties enforces "mandatory-without-default" and, for any
// paired min*/max* property, that min ≤ max (§4.2).
func (h *HasProperties) CheckProperties() []string {
	var errs []string
	for name, def := range h.Defs {
		if def.Mandatory {
			if _, ok := h.Get(name); !ok {
				errs = append(errs, fmt.Sprintf("mandatory property %q has no value", name))
			}
		}
	}
	for name := range h.Defs {
		if len(name) < 3 || name[:3] != "min" {
			continue
		}
		maxName := "max" + name[3:]
		if _, ok := h.Defs[maxName]; !ok {
			continue
		}
		minV, minOK := h.Get(name)
		maxV, maxOK := h.Get(maxName)
		if !minOK || !maxOK {
			continue
		}
		minF, ok1 := toFloat(minV)
		maxF, ok2 := toFloat(maxV)
		if ok1 && ok2 && minF > maxF {
			errs = append(errs, fmt.Sprintf("%s (%v) > %s (%v)", name, minV, maxName, maxV))
		}
	}
	return errs
}

// ExportProperties emits the subset where export is set and either
// mandatory or the value differs from the default (§4.2).
func (h *HasProperties) ExportProperties() map[string]any {
	out := map[string]any{}
	for name, def := range h.Defs {
		if !def.Export {
			continue
		}
		val, ok := h.Get(name)
		if !ok {
			continue
		}
		if !def.Mandatory && def.HasDefault && equalJSON(val, def.Default) {
			continue
		}
		wireName := def.ExportName
		if wireName == "" {
			wireName = name
		}
		out[wireName] = def.Datatype.ExportValue(val)
	}
	return out
}

func equalJSON(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package secopcodec implements C7: the line-framed wire protocol,
// `<action> SP [<specifier> [SP <json-data>]] LF`, grounded on the
// fixed-field framing style of cs104/apci.go and cs101/ft.go (const
// tables, Parse/Value/String triads) applied to SECoP's text framing
// instead of IEC 104's binary APCI.
package secopcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	sp byte = ' '
	lf byte = '\n'
)

// Action is one of the fixed SECoP request/reply verbs (§6).
type Action string

const (
	ActionIdentify   Action = "*IDN?"
	ActionDescribe   Action = "describe"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionRead       Action = "read"
	ActionChange     Action = "change"
	ActionDo         Action = "do"
	ActionPing       Action = "ping"

	ActionReply       Action = "reply" // unused placeholder kept out of Actions; replies reuse the request verb or below
	ActionIdentReply  Action = "SECoP"
	ActionDescribing  Action = "describing"
	ActionActive      Action = "active"
	ActionInactive    Action = "inactive"
	ActionUpdate      Action = "update"
	ActionChanged     Action = "changed"
	ActionDone        Action = "done"
	ActionPong        Action = "pong"
	ActionEvent       Action = "event" // generic async, e.g. serial_number update

	// ActionError is the fallback error action for replies with no
	// identifiable originating request (a line that failed to decode at
	// all); every other error reply uses ErrorAction's "error_<request>"
	// form instead (§6, §4.6).
	ActionError Action = "error"

	ActionErrorRead       Action = "error_read"
	ActionErrorChange     Action = "error_change"
	ActionErrorDo         Action = "error_do"
	ActionErrorDescribe   Action = "error_describe"
	ActionErrorActivate   Action = "error_activate"
	ActionErrorDeactivate Action = "error_deactivate"

	// ActionErrorUpdate is the action an asynchronous broadcast carries
	// when a module's announceUpdate reports an error rather than a
	// value (§4.4/§4.6's "emit an update with error_update action",
	// the reconnect seed scenario's synthetic CommunicationFailed
	// broadcast) — distinct from ErrorAction's request-reply forms,
	// since a broadcast has no originating request to name.
	ActionErrorUpdate Action = "error_update"
)

// ErrorAction returns the action name an error reply to the given
// request action must carry, §6's literal "error_<request>" wire
// grammar (seed scenario 5: "change module:target 7" fails with
// "error_change module:target [...]"). Requests with no dedicated error
// form (or an unrecognized action, e.g. a line that failed to decode)
// fall back to the generic ActionError.
func ErrorAction(request Action) Action {
	switch request {
	case ActionRead:
		return ActionErrorRead
	case ActionChange:
		return ActionErrorChange
	case ActionDo:
		return ActionErrorDo
	case ActionDescribe:
		return ActionErrorDescribe
	case ActionActivate:
		return ActionErrorActivate
	case ActionDeactivate:
		return ActionErrorDeactivate
	default:
		return ActionError
	}
}

// Frame is a decoded protocol line: action, optional specifier, optional
// JSON-decoded payload.
type Frame struct {
	Action    Action
	Specifier string // "" means the line had none (represented as "." on the wire by some peers)
	Data      any    // nil if no data field was present
	HasData   bool
}

// Encode serializes a Frame to one LF-terminated wire line (§6). A
// specifier of "" is emitted as-is (no specifier field at all) unless
// Data is present, in which case an empty specifier must still occupy
// its slot, matching the source's "ident data" vs "ident spec data"
// shapes.
func Encode(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(string(f.Action))
	if f.Specifier == "" && !f.HasData {
		buf.WriteByte(lf)
		return buf.Bytes(), nil
	}
	buf.WriteByte(sp)
	if f.Specifier == "" {
		buf.WriteByte('.')
	} else {
		buf.WriteString(f.Specifier)
	}
	if f.HasData {
		raw, err := json.Marshal(f.Data)
		if err != nil {
			return nil, fmt.Errorf("secopcodec: encode data: %w", err)
		}
		buf.WriteByte(sp)
		buf.Write(raw)
	}
	buf.WriteByte(lf)
	return buf.Bytes(), nil
}

// Decode parses one protocol line, with or without its trailing LF
// (§6). Malformed lines (no action token) yield a ProtocolError at the
// caller via the returned error; Decode itself returns a plain error so
// dispatch can wrap it in the right secoperr class with context.
func Decode(line []byte) (Frame, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return Frame{}, fmt.Errorf("secopcodec: empty line")
	}

	actionEnd := bytes.IndexByte(line, sp)
	if actionEnd < 0 {
		return Frame{Action: Action(line)}, nil
	}
	action := Action(line[:actionEnd])
	rest := line[actionEnd+1:]

	dataStart := bytes.IndexByte(rest, sp)
	var specifier []byte
	var data []byte
	if dataStart < 0 {
		specifier = rest
	} else {
		specifier = rest[:dataStart]
		data = rest[dataStart+1:]
	}

	f := Frame{Action: action}
	if len(specifier) == 1 && specifier[0] == '.' {
		f.Specifier = ""
	} else {
		f.Specifier = string(specifier)
	}
	if data != nil {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return Frame{}, fmt.Errorf("secopcodec: decode json payload: %w", err)
		}
		f.Data = v
		f.HasData = true
	}
	return f, nil
}

// SplitSpecifier breaks a "module:accessible" specifier into its two
// parts (§6); an accessible-less specifier ("module") yields accessible
// == "value" if the caller is doing a read-style lookup, but
// SplitSpecifier itself stays mechanical and returns "" so callers can
// apply their own default.
func SplitSpecifier(specifier string) (module, accessible string) {
	idx := bytes.IndexByte([]byte(specifier), ':')
	if idx < 0 {
		return specifier, ""
	}
	return specifier[:idx], specifier[idx+1:]
}

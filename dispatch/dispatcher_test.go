// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secop-io/secopd/accessible"
	"github.com/secop-io/secopd/clog"
	"github.com/secop-io/secopd/module"
	"github.com/secop-io/secopd/secnode"
	"github.com/secop-io/secopd/secoperr"
	"github.com/secop-io/secopd/secopcodec"
	"github.com/secop-io/secopd/secoptype"
)

type fakeConn struct {
	id  string
	out []secopcodec.Frame
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) Send(f secopcodec.Frame) error {
	c.out = append(c.out, f)
	return nil
}

func buildTestNode(t *testing.T) *secnode.SecNode {
	t.Helper()
	log := clog.NewLogger("test")
	n := secnode.New(secnode.NodeProperties{EquipmentID: "node1"}, log)
	n.Declare("sensor", func(l clog.Clog) (*module.Module, error) {
		m := module.NewModule("sensor", "a sensor", l)
		m.AddAccessible(accessible.NewParameter("value", "value", secoptype.NewFloatRange(-100, 100), true))
		m.AddAccessible(accessible.NewParameter("target", "target", secoptype.NewFloatRange(-100, 100), false))
		m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) {
			return accessible.Value(42.0), nil
		})
		return m, nil
	})
	n.CreateModules()
	return n
}

func TestDispatchReadUnknownModule(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	conn := &fakeConn{id: "c1"}

	replies := d.Handle(conn, []byte("read nope:value"))
	require.Len(t, replies, 1)
	assert.Equal(t, secopcodec.ActionErrorRead, replies[0].Action, "error replies use error_<request>, not a generic error action")
}

func TestDispatchReadKnownParameter(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	conn := &fakeConn{id: "c1"}

	replies := d.Handle(conn, []byte("read sensor:value"))
	require.Len(t, replies, 1)
	assert.Equal(t, secopcodec.ActionUpdate, replies[0].Action)
	data := replies[0].Data.([]any)
	assert.Equal(t, 42.0, data[0])
}

func TestDispatchChangeAndBroadcastToActiveConnection(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	m, _ := n.GetModule("sensor")
	d.AttachModule("sensor", m)

	sub := &fakeConn{id: "subscriber"}
	d.Handle(sub, []byte("activate sensor")) // subscribes; direct reply frames are returned, not sent

	writer := &fakeConn{id: "writer"}
	replies := d.Handle(writer, []byte("change sensor:target [7.5]"))
	require.Len(t, replies, 1)
	assert.Equal(t, secopcodec.ActionChanged, replies[0].Action)

	require.Len(t, sub.out, 1, "the active subscriber receives the broadcast update")
	assert.Equal(t, secopcodec.ActionUpdate, sub.out[0].Action)
	assert.Equal(t, "sensor:target", sub.out[0].Specifier)
}

func TestDispatchChangeErrorUsesErrorChangeAction(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	conn := &fakeConn{id: "c1"}

	replies := d.Handle(conn, []byte(`change sensor:target [500]`))
	require.Len(t, replies, 1)
	assert.Equal(t, secopcodec.ActionErrorChange, replies[0].Action)
}

func TestDispatchDoErrorUsesErrorDoAction(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	conn := &fakeConn{id: "c1"}

	replies := d.Handle(conn, []byte("do sensor:nope"))
	require.Len(t, replies, 1)
	assert.Equal(t, secopcodec.ActionErrorDo, replies[0].Action)
}

func TestDispatchMalformedLineUsesGenericErrorAction(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	conn := &fakeConn{id: "c1"}

	replies := d.Handle(conn, []byte(""))
	require.Len(t, replies, 1)
	assert.Equal(t, secopcodec.ActionError, replies[0].Action, "a line with no decodable request action falls back to the generic error action")
}

func TestDispatchBroadcastErrorUsesErrorUpdateAction(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	m, _ := n.GetModule("sensor")
	d.AttachModule("sensor", m)

	sub := &fakeConn{id: "subscriber"}
	d.Handle(sub, []byte("activate sensor"))

	m.BindRead("value", func() (accessible.WriteOutcome, secoperr.Error) {
		return accessible.WriteOutcome{}, secoperr.CommunicationFailed("no response")
	})
	_, _ = m.ReadParam("value")

	require.Len(t, sub.out, 1)
	assert.Equal(t, secopcodec.ActionErrorUpdate, sub.out[0].Action)
}

func TestDispatchIdentify(t *testing.T) {
	n := buildTestNode(t)
	d := New(n, clog.NewLogger("test"), nil)
	replies := d.Handle(&fakeConn{id: "c1"}, []byte("*IDN?"))
	require.Len(t, replies, 1)
	assert.Contains(t, string(replies[0].Action), "SECoP")
}

// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package transport

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/secop-io/secopd/clog"
)

// identifyPattern is the loose identification-reply check from the
// source (ConnectionError raised if the peer doesn't claim to be a
// SECoP node), relaxed to match real-world *IDN? replies such as
// "ISSE,SECoP,V2019-09-16,v1.0".
var identifyPattern = regexp.MustCompile(`(?i)ISSE[^,]*,SECoP,`)

// Reconnecting wraps Dial with the retry/backoff/dedup-logging loop a
// SECoP client-side proxy module needs against a sub-node (§4.8): each
// failed attempt logs once, not on every retry, matching the source's
// "only log a state change" dedup behavior.
type Reconnecting struct {
	URI          string
	RetryInterval time.Duration
	Log          clog.Clog

	mu        sync.Mutex
	conn      Conn
	connected bool
	lastErr   string
	pings     uint64
}

func NewReconnecting(uri string, retry time.Duration, log clog.Clog) *Reconnecting {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &Reconnecting{URI: uri, RetryInterval: retry, Log: log}
}

// Run dials in a loop until ctx is cancelled, handing each live
// connection to onConnect; it blocks inside onConnect for the
// connection's lifetime and redials when onConnect returns.
func (r *Reconnecting) Run(ctx context.Context, onConnect func(context.Context, Conn) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := r.dialAndHandshake(ctx)
		if err != nil {
			r.logOnce(err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.RetryInterval):
			}
			continue
		}

		r.mu.Lock()
		r.conn = conn
		r.connected = true
		r.lastErr = ""
		r.mu.Unlock()
		r.Log.Debug("connected to %s", r.URI)

		err = onConnect(ctx, conn)
		_ = conn.Close()

		r.mu.Lock()
		r.connected = false
		r.mu.Unlock()

		if err != nil {
			r.Log.Warn("connection to %s lost: %v", r.URI, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.RetryInterval):
		}
	}
}

func (r *Reconnecting) dialAndHandshake(ctx context.Context) (Conn, error) {
	conn, err := Dial(ctx, r.URI)
	if err != nil {
		return nil, err
	}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.WriteLine(hctx, []byte("*IDN?")); err != nil {
		_ = conn.Close()
		return nil, err
	}
	line, err := conn.ReadLine(hctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !identifyPattern.Match(line) {
		_ = conn.Close()
		return nil, errNotASecopNode(r.URI)
	}
	return conn, nil
}

func (r *Reconnecting) logOnce(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr == msg {
		return
	}
	r.lastErr = msg
	r.Log.Warn("reconnect to %s: %s", r.URI, msg)
}

// Ping increments and returns the heartbeat counter used to keep
// sub-node proxy connections alive during idle periods (§4.8).
func (r *Reconnecting) Ping() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pings++
	return r.pings
}

func (r *Reconnecting) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

type notSecopNodeError struct{ uri string }

func (e notSecopNodeError) Error() string { return "peer at " + e.uri + " did not identify as a SECoP node" }

func errNotASecopNode(uri string) error { return notSecopNodeError{uri: uri} }

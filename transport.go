// Copyright 2024 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const rxBufSize = 65535 // max size of IPv4 & IPv6 packet

// Transport sends messages over one datagram socket and matches replies to
// outstanding requests by correlation key: the msgID for v3, the request-id
// for v1 and v2c. Any number of exchanges may be outstanding at once; a
// single reader goroutine, started with the first exchange, demultiplexes
// the socket. Replies matching nothing are dropped. Nothing is retried.
type Transport struct {
	conn   net.PacketConn
	logger Logger

	readerOnce sync.Once

	mu      sync.Mutex
	pending map[int32]*exchange
	closed  bool
}

type exchange struct {
	key      int32
	request  *Message
	callback func(*Message, error)
	timer    *time.Timer
}

// NewTransport wraps conn, typically from net.ListenUDP. The transport owns
// conn from then on and closes it in Close.
func NewTransport(conn net.PacketConn, logger Logger) *Transport {
	return &Transport{
		conn:    conn,
		logger:  logger,
		pending: make(map[int32]*exchange),
	}
}

// NewConnTransport wraps a connected datagram conn such as a DTLS session.
// The endpoint passed to Send is ignored; everything goes to the peer.
func NewConnTransport(conn net.Conn, logger Logger) *Transport {
	return NewTransport(connectedConn{conn}, logger)
}

// connectedConn adapts a connected net.Conn to net.PacketConn.
type connectedConn struct {
	net.Conn
}

func (c connectedConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.Read(b)
	return n, c.RemoteAddr(), err
}

func (c connectedConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	return c.Write(b)
}

// LocalAddr returns the address the socket is bound to.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Pending returns the number of outstanding exchanges.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Send transmits msg to endpoint and blocks until the matching reply
// arrives, timeout elapses (ErrTimeout) or ctx is done.
//
// A Report reply is returned together with a *ReportError.
func (t *Transport) Send(ctx context.Context, msg *Message, endpoint net.Addr, timeout time.Duration) (*Message, error) {
	type result struct {
		reply *Message
		err   error
	}
	ch := make(chan result, 1)
	ex, err := t.start(msg, endpoint, timeout, func(reply *Message, err error) {
		ch <- result{reply, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.reply, r.err
	case <-ctx.Done():
		t.complete(ex, nil, ctx.Err())
		r := <-ch
		return r.reply, r.err
	}
}

// SendAsync transmits msg to endpoint and returns at once. callback runs
// exactly once, on the transport's reader or timer goroutine, with the
// matching reply, ErrTimeout, or the socket error. Errors detected before
// anything is sent are returned instead and callback is not run.
func (t *Transport) SendAsync(msg *Message, endpoint net.Addr, timeout time.Duration, callback func(*Message, error)) error {
	if callback == nil {
		return fmt.Errorf("callback is required")
	}
	_, err := t.start(msg, endpoint, timeout, callback)
	return err
}

// Post transmits msg without expecting a reply, for traps.
func (t *Transport) Post(msg *Message, endpoint net.Addr) error {
	out, err := msg.ToBytes()
	if err != nil {
		return err
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	if _, err = t.conn.WriteTo(out, endpoint); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (t *Transport) start(msg *Message, endpoint net.Addr, timeout time.Duration, callback func(*Message, error)) (*exchange, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}
	if msg.PDU() == nil || !msg.PDU().Type.isConfirmed() {
		return nil, fmt.Errorf("only confirmed-class PDUs expect a reply")
	}
	out, err := msg.ToBytes()
	if err != nil {
		return nil, err
	}
	ex := &exchange{key: msg.CorrelationKey(), request: msg, callback: callback}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if _, dup := t.pending[ex.key]; dup {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrDuplicateRequest, ex.key)
	}
	t.pending[ex.key] = ex
	ex.timer = time.AfterFunc(timeout, func() {
		t.complete(ex, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout))
	})
	t.mu.Unlock()

	t.readerOnce.Do(func() { go t.readLoop() })

	if t.logger.Enabled() {
		t.logger.Printf("SEND key %d to %v: %s", ex.key, endpoint, msg.SafeString())
	}
	if _, err = t.conn.WriteTo(out, endpoint); err != nil {
		t.complete(ex, nil, fmt.Errorf("write: %w", err))
	}
	return ex, nil
}

// complete finishes ex unless something else already did.
func (t *Transport) complete(ex *exchange, reply *Message, err error) bool {
	t.mu.Lock()
	if t.pending[ex.key] != ex {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, ex.key)
	ex.timer.Stop()
	t.mu.Unlock()

	ex.callback(reply, err)
	return true
}

func (t *Transport) readLoop() {
	buf := make([]byte, rxBufSize)
	for {
		n, from, err := t.conn.ReadFrom(buf)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.logger.Printf("READ error, failing outstanding exchanges: %v", err)
				t.shutdown(fmt.Errorf("read: %w", err))
			}
			return
		}
		t.dispatch(bytes.Clone(buf[:n]), from)
	}
}

// dispatch routes one datagram to the exchange it answers.
func (t *Transport) dispatch(data []byte, from net.Addr) {
	key, err := peekCorrelationKey(data)
	if err != nil {
		t.logger.Printf("DROP undecodable datagram from %v: %v", from, err)
		return
	}
	t.mu.Lock()
	ex, ok := t.pending[key]
	t.mu.Unlock()
	if !ok {
		t.logger.Printf("DROP datagram from %v: %v (key %d)", from, ErrCorrelationMismatch, key)
		return
	}

	reply, err := ParseMessage(data, ex.request.Security(), t.logger)
	if err == nil {
		err = checkReply(ex.request, reply)
	}
	if err != nil {
		t.logger.Printf("RECV key %d from %v failed: %v", key, from, err)
		t.complete(ex, nil, err)
		return
	}
	if t.logger.Enabled() {
		t.logger.Printf("RECV key %d from %v: %s", key, from, reply.SafeString())
	}
	if reply.PDU().Type == Report {
		t.complete(ex, reply, newReportError(reply))
		return
	}
	t.complete(ex, reply, nil)
}

// checkReply validates a decoded reply against its request.
func checkReply(request, reply *Message) error {
	if reply.Version != request.Version {
		return protocolErrorf("reply version %s does not match request version %s", reply.Version, request.Version)
	}
	switch reply.PDU().Type {
	case GetResponse:
		// msgID is authoritative for v3, but the request-id must agree too.
		if reply.PDU().RequestID != request.PDU().RequestID {
			return protocolErrorf("reply request id %d does not match %d", reply.PDU().RequestID, request.PDU().RequestID)
		}
	case Report:
		if reply.Version != Version3 {
			return protocolErrorf("Report PDU in SNMPv%s", reply.Version)
		}
		// Reports may carry request-id 0 when the agent could not decode
		// the request.
		if id := reply.PDU().RequestID; id != 0 && id != request.PDU().RequestID {
			return protocolErrorf("report request id %d does not match %d", id, request.PDU().RequestID)
		}
	default:
		return protocolErrorf("unexpected %s in reply", reply.PDU().Type)
	}
	return nil
}

// Close releases the socket. Outstanding exchanges complete with
// ErrTransportClosed.
func (t *Transport) Close() error {
	return t.shutdown(ErrTransportClosed)
}

func (t *Transport) shutdown(reason error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	pending := t.pending
	t.pending = make(map[int32]*exchange)
	for _, ex := range pending {
		ex.timer.Stop()
	}
	t.mu.Unlock()

	err := t.conn.Close()
	for _, ex := range pending {
		ex.callback(nil, reason)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Exchange sends msg from a socket of its own, bound for this exchange
// only, and waits for the reply.
func Exchange(ctx context.Context, msg *Message, endpoint *net.UDPAddr, timeout time.Duration, logger Logger) (*Message, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	t := NewTransport(conn, logger)
	defer t.Close()
	return t.Send(ctx, msg, endpoint, timeout)
}

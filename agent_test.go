// Copyright 2012-2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// agentEngineID is the authoritative engine of the loopback agent.
var agentEngineID = string([]byte{0x80, 0x00, 0x1f, 0x88, 0x80, 0x45, 0x4e, 0x47, 0x49, 0x4e, 0x45})

// fakeAgent is a loopback agent serving a small sorted MIB. It answers
// Get, GetNext, GetBulk, Set and Inform, records notifications, and plays
// the authoritative side of engine discovery.
type fakeAgent struct {
	conn      *net.UDPConn
	community string
	engine    EngineParams
	security  Security
	logger    Logger

	notifications chan *Message

	mu       sync.Mutex
	mibList  []*mibEnt
	silent   bool
	requests int
	reports  uint32
}

type mibEnt struct {
	oid   OID
	typ   Asn1BER
	value any
}

func (e *mibEnt) variable() Variable {
	return Variable{Name: e.oid, Type: e.typ, Value: e.value}
}

// newFakeAgent starts an agent on 127.0.0.1. sec holds the keys of its one
// v3 user; v1 and v2c use community "public".
func newFakeAgent(t testing.TB, sec Security) *fakeAgent {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	a := &fakeAgent{
		conn:          conn,
		community:     "public",
		engine:        EngineParams{EngineID: agentEngineID, Boots: 7, Time: 1200},
		security:      sec.withDefaults(),
		notifications: make(chan *Message, 16),
	}
	a.addMib(".1.3.6.1.2.1.1.1.0", OctetString, []byte("Linux fake 6.1.0 x86_64"))
	a.addMib(".1.3.6.1.2.1.1.2.0", ObjectIdentifier, MustParseOID(".1.3.6.1.4.1.8072.3.2.10"))
	a.addMib(".1.3.6.1.2.1.1.3.0", TimeTicks, uint32(318870100))
	a.addMib(".1.3.6.1.2.1.1.4.0", OctetString, []byte("Administrator"))
	a.addMib(".1.3.6.1.2.1.1.5.0", OctetString, []byte("fake-agent"))
	a.addMib(".1.3.6.1.2.1.1.7.0", Integer, 72)
	a.addMib(".1.3.6.1.2.1.2.2.1.1.1", Integer, 1)
	a.addMib(".1.3.6.1.2.1.2.2.1.1.2", Integer, 2)
	a.addMib(".1.3.6.1.2.1.2.2.1.2.1", OctetString, []byte("lo"))
	a.addMib(".1.3.6.1.2.1.2.2.1.2.2", OctetString, []byte("eth0"))
	a.addMib(".1.3.6.1.2.1.2.2.1.10.1", Counter32, uint32(8450))
	a.addMib(".1.3.6.1.2.1.2.2.1.10.2", Counter32, uint32(271070065))
	a.addMib(".1.3.6.1.2.1.31.1.1.1.10.1", Counter64, uint64(1527943))
	a.addMib(".1.3.6.1.2.1.31.1.1.1.10.2", Counter64, uint64(1<<40))
	go a.serve()
	t.Cleanup(func() { a.conn.Close() })
	return a
}

func (a *fakeAgent) addr() *net.UDPAddr {
	return a.conn.LocalAddr().(*net.UDPAddr)
}

// client returns an unconnected client aimed at the agent.
func (a *fakeAgent) client(version SnmpVersion) *Client {
	return &Client{
		Target:    "127.0.0.1",
		Port:      uint16(a.addr().Port), //nolint:gosec
		Community: a.community,
		Version:   version,
		Timeout:   time.Second,
		IDs:       NewSequentialIDGenerator(100),
	}
}

// addMib inserts or replaces an entry, keeping the list sorted.
func (a *fakeAgent) addMib(oid string, typ Asn1BER, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ent := &mibEnt{oid: MustParseOID(oid), typ: typ, value: value}
	pos := sort.Search(len(a.mibList), func(i int) bool {
		return ent.oid.Compare(a.mibList[i].oid) <= 0
	})
	if pos < len(a.mibList) && ent.oid.Equal(a.mibList[pos].oid) {
		a.mibList[pos] = ent
		return
	}
	a.mibList = append(a.mibList, nil)
	copy(a.mibList[pos+1:], a.mibList[pos:])
	a.mibList[pos] = ent
}

// find returns the entry at oid, or with next set the first one after it.
func (a *fakeAgent) find(oid OID, next bool) *mibEnt {
	i := sort.Search(len(a.mibList), func(i int) bool {
		return oid.Compare(a.mibList[i].oid) <= 0
	})
	if next && i < len(a.mibList) && oid.Equal(a.mibList[i].oid) {
		i++
	}
	if i >= len(a.mibList) || (!next && !oid.Equal(a.mibList[i].oid)) {
		return nil
	}
	return a.mibList[i]
}

func (a *fakeAgent) setSilent(silent bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.silent = silent
}

func (a *fakeAgent) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// waitNotification returns the next trap or inform the agent received.
func (a *fakeAgent) waitNotification(t *testing.T) *Message {
	t.Helper()
	select {
	case m := <-a.notifications:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
		return nil
	}
}

func (a *fakeAgent) serve() {
	buf := make([]byte, rxBufSize)
	for {
		n, from, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		out, err := a.handle(bytes.Clone(buf[:n]))
		if err != nil {
			a.logger.Printf("agent: %v", err)
			continue
		}
		if out != nil {
			_, _ = a.conn.WriteToUDP(out, from)
		}
	}
}

func (a *fakeAgent) handle(data []byte) ([]byte, error) {
	req, err := ParseMessage(data, a.security, a.logger)
	if err != nil {
		// discovery requests and users below the configured level
		if req, err = ParseMessage(data, PlainSecurity(), a.logger); err != nil {
			return nil, err
		}
	}
	a.mu.Lock()
	a.requests++
	silent := a.silent
	a.mu.Unlock()
	if silent {
		return nil, nil
	}

	switch req.Version {
	case Version1, Version2c:
		if req.Community != a.community {
			return nil, fmt.Errorf("bad community %q", req.Community)
		}
	case Version3:
		if req.SecurityParameters.AuthoritativeEngineID == "" {
			return a.report(req, usmStatsUnknownEngineIDs)
		}
		if req.Security().Level() != a.security.Level() {
			return a.report(req, usmStatsUnsupportedSecLevels)
		}
	}

	pdu := req.PDU()
	switch pdu.Type {
	case GetRequest, GetNextRequest, GetBulkRequest, SetRequest:
		return a.reply(req, a.respond(req.Version, pdu))
	case InformRequest:
		a.notifications <- req
		return a.reply(req, &PDU{Type: GetResponse, RequestID: pdu.RequestID, Variables: pdu.Variables})
	case SNMPv2Trap, Trap:
		a.notifications <- req
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected %s", pdu.Type)
}

func (a *fakeAgent) reply(req *Message, pdu *PDU) ([]byte, error) {
	if req.Version != Version3 {
		return NewMessage(req.Version, req.Community, pdu).ToBytes()
	}
	return NewV3Message(
		Header{MsgID: req.Header.MsgID, Flags: req.Header.Flags &^ Reportable},
		&UsmSecurityParameters{
			AuthoritativeEngineID:    a.engine.EngineID,
			AuthoritativeEngineBoots: a.engine.Boots,
			AuthoritativeEngineTime:  a.engine.Time,
			UserName:                 req.SecurityParameters.UserName,
		},
		Scope{ContextEngineID: a.engine.EngineID, ContextName: req.Scope.ContextName, PDU: pdu},
		req.Security(),
	).ToBytes()
}

// report answers with an unauthenticated Report carrying counter oid.
func (a *fakeAgent) report(req *Message, oid OID) ([]byte, error) {
	a.mu.Lock()
	a.reports++
	count := a.reports
	a.mu.Unlock()
	return NewV3Message(
		Header{MsgID: req.Header.MsgID},
		&UsmSecurityParameters{
			AuthoritativeEngineID:    a.engine.EngineID,
			AuthoritativeEngineBoots: a.engine.Boots,
			AuthoritativeEngineTime:  a.engine.Time,
			UserName:                 req.SecurityParameters.UserName,
		},
		Scope{ContextEngineID: a.engine.EngineID, PDU: &PDU{
			Type:      Report,
			RequestID: req.PDU().RequestID,
			Variables: []Variable{{Name: oid, Type: Counter32, Value: count}},
		}},
		PlainSecurity(),
	).ToBytes()
}

func (a *fakeAgent) respond(version SnmpVersion, pdu *PDU) *PDU {
	a.mu.Lock()
	defer a.mu.Unlock()

	resp := &PDU{Type: GetResponse, RequestID: pdu.RequestID}
	fail := func(status SNMPError, i int) {
		if resp.ErrorStatus == NoError {
			resp.ErrorStatus, resp.ErrorIndex = status, i+1
		}
	}
	next := func(i int, oid OID) Variable {
		if ent := a.find(oid, true); ent != nil {
			return ent.variable()
		}
		if version == Version1 {
			fail(NoSuchName, i)
		}
		return Variable{Name: oid, Type: EndOfMibView}
	}

	switch pdu.Type {
	case GetRequest:
		for i, v := range pdu.Variables {
			if ent := a.find(v.Name, false); ent != nil {
				resp.Variables = append(resp.Variables, ent.variable())
				continue
			}
			if version == Version1 {
				fail(NoSuchName, i)
			}
			resp.Variables = append(resp.Variables, Variable{Name: v.Name, Type: NoSuchObject})
		}
	case GetNextRequest:
		for i, v := range pdu.Variables {
			resp.Variables = append(resp.Variables, next(i, v.Name))
		}
	case GetBulkRequest:
		n := min(max(pdu.NonRepeaters, 0), len(pdu.Variables))
		for i, v := range pdu.Variables[:n] {
			resp.Variables = append(resp.Variables, next(i, v.Name))
		}
		last := make([]OID, 0, len(pdu.Variables)-n)
		for _, v := range pdu.Variables[n:] {
			last = append(last, v.Name)
		}
		for range pdu.MaxRepetitions {
			more := false
			for i := range last {
				v := next(n+i, last[i])
				last[i] = v.Name
				more = more || v.Type != EndOfMibView
				resp.Variables = append(resp.Variables, v)
			}
			if !more {
				break
			}
		}
	case SetRequest:
		for i, v := range pdu.Variables {
			ent := a.find(v.Name, false)
			switch {
			case ent == nil && version == Version1:
				fail(NoSuchName, i)
			case ent == nil:
				fail(NotWritable, i)
			case ent.typ != v.Type:
				fail(WrongType, i)
			}
		}
		if resp.ErrorStatus == NoError {
			for _, v := range pdu.Variables {
				ent := a.find(v.Name, false)
				ent.value = v.Value
			}
		}
		resp.Variables = pdu.Variables
	}
	if version == Version1 && resp.ErrorStatus != NoError {
		// v1 errors echo the request bindings
		resp.Variables = pdu.Variables
	}
	return resp
}

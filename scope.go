// Copyright 2024 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
)

// Scope is the ScopedPDU of a v3 message: the part privacy covers. For v1
// and v2c only the PDU is used.
type Scope struct {
	ContextEngineID string
	ContextName     string
	PDU             *PDU
}

// marshal encodes the ScopedPDU sequence for v3.
func (s *Scope) marshal() ([]byte, error) {
	if s.PDU == nil {
		return nil, fmt.Errorf("scope has no PDU")
	}
	pdu, err := s.PDU.marshal()
	if err != nil {
		return nil, err
	}
	seq := new(bytes.Buffer)
	if err = marshalTLV(seq, OctetString, []byte(s.ContextEngineID)); err != nil {
		return nil, err
	}
	if err = marshalTLV(seq, OctetString, []byte(s.ContextName)); err != nil {
		return nil, err
	}
	seq.Write(pdu)

	out := new(bytes.Buffer)
	if err = marshalTLV(out, Sequence, seq.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// unmarshalScope decodes a plaintext ScopedPDU from the first element of
// src. Anything after it is cipher padding and is ignored.
func unmarshalScope(src symbolSource) (Scope, error) {
	seg, err := expect(src, Sequence, "scoped PDU")
	if err != nil {
		return Scope{}, err
	}
	inner := seg.children()
	var s Scope
	engineID, err := expectOctets(inner, "contextEngineID")
	if err != nil {
		return Scope{}, err
	}
	name, err := expectOctets(inner, "contextName")
	if err != nil {
		return Scope{}, err
	}
	s.ContextEngineID, s.ContextName = string(engineID), string(name)

	pduSeg, err := inner.Next()
	if err != nil {
		return Scope{}, fmt.Errorf("scoped PDU: %w", err)
	}
	if s.PDU, err = unmarshalPDU(pduSeg); err != nil {
		return Scope{}, err
	}
	if err = expectEnd(inner, "scoped PDU"); err != nil {
		return Scope{}, err
	}
	return s, nil
}

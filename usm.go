// Copyright 2012-2016 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
)

// UsmSecurityParameters is the msgSecurityParameters of the User-based
// Security Model (RFC 3414).
//
// The first six fields travel on the wire. The protocol and passphrase
// fields only configure a Client and are never encoded.
type UsmSecurityParameters struct {
	AuthoritativeEngineID    string
	AuthoritativeEngineBoots uint32
	AuthoritativeEngineTime  uint32
	UserName                 string
	AuthenticationParameters string
	PrivacyParameters        []byte

	AuthenticationProtocol   SnmpV3AuthProtocol
	PrivacyProtocol          SnmpV3PrivProtocol
	AuthenticationPassphrase string
	PrivacyPassphrase        string
}

// EngineParams identifies an authoritative SNMP engine and its clock, as
// learnt by discovery.
type EngineParams struct {
	EngineID string
	Boots    uint32
	Time     uint32
}

func (e EngineParams) String() string {
	return fmt.Sprintf("EngineID:%x Boots:%d Time:%d", e.EngineID, e.Boots, e.Time)
}

// Copy returns a deep copy of sp.
func (sp *UsmSecurityParameters) Copy() *UsmSecurityParameters {
	cp := *sp
	cp.PrivacyParameters = bytes.Clone(sp.PrivacyParameters)
	return &cp
}

// Engine returns the authoritative engine fields.
func (sp *UsmSecurityParameters) Engine() EngineParams {
	return EngineParams{
		EngineID: sp.AuthoritativeEngineID,
		Boots:    sp.AuthoritativeEngineBoots,
		Time:     sp.AuthoritativeEngineTime,
	}
}

// SetEngine copies discovered engine parameters into sp.
func (sp *UsmSecurityParameters) SetEngine(e EngineParams) {
	sp.AuthoritativeEngineID = e.EngineID
	sp.AuthoritativeEngineBoots = e.Boots
	sp.AuthoritativeEngineTime = e.Time
}

// SafeString returns a loggable representation without passphrases.
func (sp *UsmSecurityParameters) SafeString() string {
	return fmt.Sprintf("AuthoritativeEngineID:%x, AuthoritativeEngineBoots:%d, AuthoritativeEngineTime:%d, UserName:%s, AuthenticationParameters:%x, PrivacyParameters:%x, AuthenticationProtocol:%s, PrivacyProtocol:%s",
		sp.AuthoritativeEngineID,
		sp.AuthoritativeEngineBoots,
		sp.AuthoritativeEngineTime,
		sp.UserName,
		sp.AuthenticationParameters,
		sp.PrivacyParameters,
		sp.AuthenticationProtocol,
		sp.PrivacyProtocol,
	)
}

func (sp *UsmSecurityParameters) validate(flags SnmpV3MsgFlags) error {
	switch flags.securityLevel() {
	case AuthPriv:
		if sp.PrivacyProtocol <= NoPriv {
			return fmt.Errorf("SecurityParameters.PrivacyProtocol is required")
		}
		if sp.PrivacyPassphrase == "" {
			return fmt.Errorf("SecurityParameters.PrivacyPassphrase is required")
		}
		fallthrough
	case AuthNoPriv:
		if sp.AuthenticationProtocol <= NoAuth {
			return fmt.Errorf("SecurityParameters.AuthenticationProtocol is required")
		}
		if sp.AuthenticationPassphrase == "" {
			return fmt.Errorf("SecurityParameters.AuthenticationPassphrase is required")
		}
		fallthrough
	case NoAuthNoPriv:
		if sp.UserName == "" {
			return fmt.Errorf("SecurityParameters.UserName is required")
		}
	default:
		return fmt.Errorf("MsgFlags must be populated with an appropriate security level")
	}
	return nil
}

// marshal returns the msgSecurityParameters OCTET STRING. When digestLen is
// positive the authentication parameters are a zero filled placeholder of
// that size; authOffset is the position of the placeholder in the result.
func (sp *UsmSecurityParameters) marshal(digestLen int) (out []byte, authOffset int, err error) {
	seq := new(bytes.Buffer)
	if err = marshalTLV(seq, OctetString, []byte(sp.AuthoritativeEngineID)); err != nil {
		return nil, 0, err
	}
	if err = marshalInts(seq, int64(sp.AuthoritativeEngineBoots), int64(sp.AuthoritativeEngineTime)); err != nil {
		return nil, 0, fmt.Errorf("unable to marshal engine boots/time: %w", err)
	}
	if err = marshalTLV(seq, OctetString, []byte(sp.UserName)); err != nil {
		return nil, 0, err
	}

	authParams := []byte(sp.AuthenticationParameters)
	if digestLen > 0 {
		authParams = make([]byte, digestLen)
	}
	authLen, err := marshalLength(len(authParams))
	if err != nil {
		return nil, 0, err
	}
	// offset inside seq contents, fixed up below
	authOffset = seq.Len() + 1 + len(authLen)
	if err = marshalTLV(seq, OctetString, authParams); err != nil {
		return nil, 0, err
	}
	if err = marshalTLV(seq, OctetString, sp.PrivacyParameters); err != nil {
		return nil, 0, err
	}

	inner := new(bytes.Buffer)
	if err = marshalTLV(inner, Sequence, seq.Bytes()); err != nil {
		return nil, 0, err
	}
	outer := new(bytes.Buffer)
	if err = marshalTLV(outer, OctetString, inner.Bytes()); err != nil {
		return nil, 0, err
	}
	authOffset += (outer.Len() - inner.Len()) + (inner.Len() - seq.Len())
	return outer.Bytes(), authOffset, nil
}

// unmarshalUsmSecurityParameters decodes the msgSecurityParameters element.
// It also returns the absolute offset and length of the authentication
// parameters contents, so the digest can be checked in place.
func unmarshalUsmSecurityParameters(seg segment) (*UsmSecurityParameters, int, int, error) {
	if seg.Tag != OctetString {
		return nil, 0, 0, formatErrorf("msgSecurityParameters: expected OctetString, got %s", seg.Tag)
	}
	seqSeg, err := expect(seg.children(), Sequence, "usm security parameters")
	if err != nil {
		return nil, 0, 0, err
	}
	src := seqSeg.children()
	sp := &UsmSecurityParameters{}

	engineID, err := expectOctets(src, "msgAuthoritativeEngineID")
	if err != nil {
		return nil, 0, 0, err
	}
	sp.AuthoritativeEngineID = string(engineID)

	boots, err := expectInt(src, "msgAuthoritativeEngineBoots")
	if err != nil {
		return nil, 0, 0, err
	}
	engineTime, err := expectInt(src, "msgAuthoritativeEngineTime")
	if err != nil {
		return nil, 0, 0, err
	}
	if boots < 0 || boots > 1<<31-1 || engineTime < 0 || engineTime > 1<<31-1 {
		return nil, 0, 0, formatErrorf("engine boots %d or time %d out of range", boots, engineTime)
	}
	sp.AuthoritativeEngineBoots = uint32(boots)
	sp.AuthoritativeEngineTime = uint32(engineTime)

	userName, err := expectOctets(src, "msgUserName")
	if err != nil {
		return nil, 0, 0, err
	}
	sp.UserName = string(userName)

	authSeg, err := expect(src, OctetString, "msgAuthenticationParameters")
	if err != nil {
		return nil, 0, 0, err
	}
	sp.AuthenticationParameters = string(authSeg.Value)

	privParams, err := expectOctets(src, "msgPrivacyParameters")
	if err != nil {
		return nil, 0, 0, err
	}
	sp.PrivacyParameters = bytes.Clone(privParams)

	if err = expectEnd(src, "usm security parameters"); err != nil {
		return nil, 0, 0, err
	}
	return sp, authSeg.Offset + authSeg.Header, len(authSeg.Value), nil
}

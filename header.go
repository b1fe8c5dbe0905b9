// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
	"strings"
)

// SnmpV3MsgFlags contains various message flags to describe Authentication,
// Privacy, and whether a report PDU must be sent.
type SnmpV3MsgFlags uint8

// Possible values of SnmpV3MsgFlags
const (
	NoAuthNoPriv SnmpV3MsgFlags = 0x0 // No authentication, and no privacy
	AuthNoPriv   SnmpV3MsgFlags = 0x1 // Authentication and no privacy
	AuthPriv     SnmpV3MsgFlags = 0x3 // Authentication and privacy
	Reportable   SnmpV3MsgFlags = 0x4 // Report PDU must be sent.
)

// securityLevel isolates the flags that determine the security level.
func (f SnmpV3MsgFlags) securityLevel() SnmpV3MsgFlags {
	return f & AuthPriv
}

func (f SnmpV3MsgFlags) String() string {
	var parts []string
	switch f.securityLevel() {
	case NoAuthNoPriv:
		parts = append(parts, "NoAuthNoPriv")
	case AuthNoPriv:
		parts = append(parts, "AuthNoPriv")
	case AuthPriv:
		parts = append(parts, "AuthPriv")
	default:
		parts = append(parts, fmt.Sprintf("SecurityLevel(%d)", uint8(f.securityLevel())))
	}
	if f&Reportable != 0 {
		parts = append(parts, "Reportable")
	}
	return strings.Join(parts, "|")
}

// SnmpV3SecurityModel describes the security model used by a SnmpV3 connection
type SnmpV3SecurityModel uint8

// UserSecurityModel is the only SnmpV3SecurityModel currently implemented.
const (
	UserSecurityModel SnmpV3SecurityModel = 3
)

func (m SnmpV3SecurityModel) String() string {
	if m == UserSecurityModel {
		return "UserSecurityModel"
	}
	return fmt.Sprintf("SnmpV3SecurityModel(%d)", uint8(m))
}

// DefaultMaxSize is the msgMaxSize advertised in v3 headers.
const DefaultMaxSize = 65507

// Header is the msgGlobalData of a v3 message.
type Header struct {
	MsgID         int32
	MaxSize       int32
	Flags         SnmpV3MsgFlags
	SecurityModel SnmpV3SecurityModel
}

func (h *Header) marshal(buf *bytes.Buffer) error {
	hdr := new(bytes.Buffer)
	if err := marshalInts(hdr, int64(h.MsgID), int64(h.MaxSize)); err != nil {
		return fmt.Errorf("unable to marshal v3 header: %w", err)
	}
	if err := marshalTLV(hdr, OctetString, []byte{byte(h.Flags)}); err != nil {
		return err
	}
	if err := marshalIntegerTLV(hdr, int64(h.SecurityModel)); err != nil {
		return err
	}
	return marshalTLV(buf, Sequence, hdr.Bytes())
}

// unmarshalHeader decodes the four header fields from src.
func unmarshalHeader(src symbolSource) (*Header, error) {
	h := &Header{}
	var err error
	if h.MsgID, err = expectInt32(src, "msgID"); err != nil {
		return nil, err
	}
	if h.MsgID < 0 {
		return nil, formatErrorf("msgID %d is negative", h.MsgID)
	}
	if h.MaxSize, err = expectInt32(src, "msgMaxSize"); err != nil {
		return nil, err
	}
	flags, err := expectOctets(src, "msgFlags")
	if err != nil {
		return nil, err
	}
	if len(flags) != 1 {
		return nil, formatErrorf("msgFlags: expected 1 octet, got %d", len(flags))
	}
	h.Flags = SnmpV3MsgFlags(flags[0])
	model, err := expectInt(src, "msgSecurityModel")
	if err != nil {
		return nil, err
	}
	if model < 0 || model > 0xff {
		return nil, fmt.Errorf("%w: %w: model %d", ErrProtocol, ErrUnknownSecurityModels, model)
	}
	h.SecurityModel = SnmpV3SecurityModel(model)
	if err = expectEnd(src, "header"); err != nil {
		return nil, err
	}
	return h, nil
}

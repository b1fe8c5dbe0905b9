// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
	"sync"
)

// SnmpVersion 1, 2c and 3 implemented
type SnmpVersion uint8

// SnmpVersion 1, 2c and 3 implemented
const (
	Version1  SnmpVersion = 0x0
	Version2c SnmpVersion = 0x1
	Version3  SnmpVersion = 0x3
)

func (s SnmpVersion) String() string {
	switch s {
	case Version1:
		return "1"
	case Version2c:
		return "2c"
	case Version3:
		return "3"
	default:
		return fmt.Sprintf("SnmpVersion(%d)", uint8(s))
	}
}

// Security bundles the authentication and privacy strategies a message is
// encoded or decoded with. The zero value is not usable; build one with
// PlainSecurity or by filling both fields.
type Security struct {
	Auth AuthenticationProvider
	Priv PrivacyProvider
}

// PlainSecurity is the noAuthNoPriv strategy pair, also used for v1/v2c.
func PlainSecurity() Security {
	return Security{Auth: NoAuthentication{}, Priv: NoPrivacy{}}
}

func (s Security) withDefaults() Security {
	if s.Auth == nil {
		s.Auth = NoAuthentication{}
	}
	if s.Priv == nil {
		s.Priv = NoPrivacy{}
	}
	return s
}

// Level returns the msgFlags security level the providers implement.
func (s Security) Level() SnmpV3MsgFlags {
	s = s.withDefaults()
	level := NoAuthNoPriv
	if s.Auth.Protocol() != NoAuth {
		level |= AuthNoPriv
	}
	if s.Priv.Protocol() != NoPriv {
		level |= AuthPriv
	}
	return level
}

// Message is a complete SNMP message. Build one with NewMessage or
// NewV3Message, or obtain one from ParseMessage.
//
// The encoding is computed once, by the first call to ToBytes, and is
// returned unchanged afterwards; the fields must not be modified after that
// call.
type Message struct {
	Version SnmpVersion

	// Community is used by v1 and v2c only.
	Community string

	// Header and SecurityParameters are used by v3 only.
	Header             *Header
	SecurityParameters *UsmSecurityParameters

	// Scope holds the PDU for every version. ContextEngineID and
	// ContextName are only encoded for v3.
	Scope Scope

	security Security

	once      sync.Once
	encoded   []byte
	encodeErr error
}

// NewMessage builds a v1 or v2c message.
func NewMessage(version SnmpVersion, community string, pdu *PDU) *Message {
	return &Message{
		Version:   version,
		Community: community,
		Scope:     Scope{PDU: pdu},
		security:  PlainSecurity(),
	}
}

// NewV3Message builds a v3 message. The security level bits of
// header.Flags are set from sec; Reportable is kept. sp is copied, since
// encoding fills in the salt and the digest.
func NewV3Message(header Header, sp *UsmSecurityParameters, scope Scope, sec Security) *Message {
	sec = sec.withDefaults()
	header.Flags = header.Flags&Reportable | sec.Level()
	if header.MaxSize == 0 {
		header.MaxSize = DefaultMaxSize
	}
	if header.SecurityModel == 0 {
		header.SecurityModel = UserSecurityModel
	}
	if sp == nil {
		sp = &UsmSecurityParameters{}
	}
	return &Message{
		Version:            Version3,
		Header:             &header,
		SecurityParameters: sp.Copy(),
		Scope:              scope,
		security:           sec,
	}
}

// NewGetRequest builds a v1 or v2c GetRequest for oids.
func NewGetRequest(version SnmpVersion, community string, requestID int32, oids ...OID) *Message {
	return NewMessage(version, community, &PDU{
		Type:      GetRequest,
		RequestID: requestID,
		Variables: nullVariables(oids),
	})
}

// NewV3Request builds a reportable v3 request from userName to engine, at
// the security level of sec. The context engine is the authoritative one.
func NewV3Request(msgID int32, engine EngineParams, userName, contextName string, pdu *PDU, sec Security) *Message {
	sp := &UsmSecurityParameters{UserName: userName}
	sp.SetEngine(engine)
	return NewV3Message(
		Header{MsgID: msgID, Flags: Reportable},
		sp,
		Scope{ContextEngineID: engine.EngineID, ContextName: contextName, PDU: pdu},
		sec,
	)
}

// PDU returns the message's PDU.
func (m *Message) PDU() *PDU {
	return m.Scope.PDU
}

// Security returns the providers the message was built or parsed with.
func (m *Message) Security() Security {
	return m.security
}

// CorrelationKey is the value replies are matched on: the msgID for v3,
// the request-id otherwise.
func (m *Message) CorrelationKey() int32 {
	if m.Version == Version3 && m.Header != nil {
		return m.Header.MsgID
	}
	if m.Scope.PDU != nil {
		return m.Scope.PDU.RequestID
	}
	return 0
}

// SafeString returns a loggable representation without secrets.
func (m *Message) SafeString() string {
	var pduType PDUType
	var requestID int32
	var vars []Variable
	if m.Scope.PDU != nil {
		pduType, requestID, vars = m.Scope.PDU.Type, m.Scope.PDU.RequestID, m.Scope.PDU.Variables
	}
	if m.Version != Version3 {
		return fmt.Sprintf("Version:%s, PDUType:%s, RequestID:%d, Variables:%v", m.Version, pduType, requestID, vars)
	}
	var hdr Header
	if m.Header != nil {
		hdr = *m.Header
	}
	sp := ""
	if m.SecurityParameters != nil {
		sp = m.SecurityParameters.SafeString()
	}
	return fmt.Sprintf("Version:%s, MsgID:%d, MsgFlags:%s, SecurityParameters:{%s}, ContextEngineID:%x, ContextName:%s, PDUType:%s, RequestID:%d, Variables:%v",
		m.Version, hdr.MsgID, hdr.Flags, sp, m.Scope.ContextEngineID, m.Scope.ContextName, pduType, requestID, vars)
}

// ToBytes returns the encoded message. The first call encodes, applying
// privacy then authentication for v3; later calls return the same buffer,
// which callers must not modify.
func (m *Message) ToBytes() ([]byte, error) {
	m.once.Do(func() {
		m.encoded, m.encodeErr = m.marshal()
	})
	return m.encoded, m.encodeErr
}

func (m *Message) marshal() ([]byte, error) {
	if m.Scope.PDU == nil {
		return nil, fmt.Errorf("message has no PDU")
	}
	if err := checkPDUVersion(m.Version, m.Scope.PDU.Type); err != nil {
		return nil, err
	}
	body := new(bytes.Buffer)
	if err := marshalIntegerTLV(body, int64(m.Version)); err != nil {
		return nil, err
	}

	if m.Version != Version3 {
		if err := marshalTLV(body, OctetString, []byte(m.Community)); err != nil {
			return nil, err
		}
		pdu, err := m.Scope.PDU.marshal()
		if err != nil {
			return nil, err
		}
		body.Write(pdu)
		out := new(bytes.Buffer)
		if err = marshalTLV(out, Sequence, body.Bytes()); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
	return m.marshalV3(body)
}

func (m *Message) marshalV3(body *bytes.Buffer) ([]byte, error) {
	if m.Header == nil || m.SecurityParameters == nil {
		return nil, fmt.Errorf("v3 message requires a header and security parameters")
	}
	if m.Header.SecurityModel != UserSecurityModel {
		return nil, fmt.Errorf("unsupported security model %s", m.Header.SecurityModel)
	}
	auth, priv, err := providersFor(m.Header.Flags, m.security.withDefaults())
	if err != nil {
		return nil, err
	}
	sp := m.SecurityParameters

	scope, err := m.Scope.marshal()
	if err != nil {
		return nil, err
	}
	data := scope
	if priv.Protocol() != NoPriv {
		if len(sp.PrivacyParameters) == 0 {
			if sp.PrivacyParameters, err = priv.NewSalt(sp); err != nil {
				return nil, err
			}
		}
		encrypted, err := priv.Encrypt(scope, sp)
		if err != nil {
			return nil, fmt.Errorf("unable to encrypt scoped PDU: %w", err)
		}
		wrapped := new(bytes.Buffer)
		if err = marshalTLV(wrapped, OctetString, encrypted); err != nil {
			return nil, err
		}
		data = wrapped.Bytes()
	}

	if err = m.Header.marshal(body); err != nil {
		return nil, err
	}
	digestLen := auth.DigestLength()
	spBytes, authOffset, err := sp.marshal(digestLen)
	if err != nil {
		return nil, err
	}
	authOffset += body.Len()
	body.Write(spBytes)
	body.Write(data)

	out := new(bytes.Buffer)
	if err = marshalTLV(out, Sequence, body.Bytes()); err != nil {
		return nil, err
	}
	msg := out.Bytes()
	if digestLen == 0 {
		return msg, nil
	}

	authOffset += len(msg) - body.Len()
	digest, err := auth.Sign(msg, sp.AuthoritativeEngineID)
	if err != nil {
		return nil, fmt.Errorf("unable to authenticate message: %w", err)
	}
	copy(msg[authOffset:authOffset+digestLen], digest)
	sp.AuthenticationParameters = string(digest)
	return msg, nil
}

// providersFor picks the providers a message with flags is processed with.
// Levels below what sec offers use the no-op providers; levels above it
// cannot be processed.
func providersFor(flags SnmpV3MsgFlags, sec Security) (AuthenticationProvider, PrivacyProvider, error) {
	var auth AuthenticationProvider = NoAuthentication{}
	var priv PrivacyProvider = NoPrivacy{}
	switch flags.securityLevel() {
	case AuthPriv:
		if sec.Priv.Protocol() == NoPriv {
			return nil, nil, fmt.Errorf("msgFlags %s: no privacy provider", flags)
		}
		priv = sec.Priv
		fallthrough
	case AuthNoPriv:
		if sec.Auth.Protocol() == NoAuth {
			return nil, nil, fmt.Errorf("msgFlags %s: no authentication provider", flags)
		}
		auth = sec.Auth
	case NoAuthNoPriv:
	default:
		return nil, nil, fmt.Errorf("msgFlags %s: privacy without authentication", flags)
	}
	return auth, priv, nil
}

func checkPDUVersion(version SnmpVersion, t PDUType) error {
	switch version {
	case Version1:
		switch t {
		case GetBulkRequest, InformRequest, SNMPv2Trap, Report:
			return fmt.Errorf("%s is not valid in SNMPv1", t)
		}
	case Version2c, Version3:
		if t == Trap {
			return fmt.Errorf("v1 Trap PDU is not valid in SNMPv%s", version)
		}
	default:
		return fmt.Errorf("unsupported SNMP version %d", version)
	}
	return nil
}

// ParseMessage decodes data with the given providers. For v3 the digest is
// verified before anything is decrypted; a failed verification returns
// ErrSecurity and no PDU. A v3 message below the security level of sec is
// only accepted when it carries a Report.
func ParseMessage(data []byte, sec Security, logger Logger) (*Message, error) {
	sec = sec.withDefaults()
	r := newBERReader(data)
	top, err := expect(r, Sequence, "message")
	if err != nil {
		return nil, err
	}
	if r.More() {
		return nil, formatErrorf("%d octets of trailing data after message", len(data)-len(top.Raw))
	}
	body, err := newSegmentList(top.children())
	if err != nil {
		return nil, err
	}
	rawVersion, err := expectInt(body, "version")
	if err != nil {
		return nil, err
	}
	version, err := versionOf(rawVersion)
	if err != nil {
		return nil, err
	}

	m := &Message{Version: version, security: sec}
	if version == Version3 {
		if body.Len() != 4 {
			return nil, fmt.Errorf("%w: SNMPv3 body has %d elements, expected 4", ErrMalformedMessage, body.Len())
		}
		if err = m.unmarshalV3(body, data, sec, logger); err != nil {
			return nil, err
		}
	} else {
		if body.Len() != 3 {
			return nil, fmt.Errorf("%w: SNMPv%s body has %d elements, expected 3", ErrMalformedMessage, version, body.Len())
		}
		community, err := expectOctets(body, "community")
		if err != nil {
			return nil, err
		}
		m.Community = string(community)
		m.security = PlainSecurity()
		pdu, err := body.Next()
		if err != nil {
			return nil, err
		}
		if m.Scope.PDU, err = unmarshalPDU(pdu); err != nil {
			return nil, err
		}
	}
	if err = checkPDUVersion(m.Version, m.Scope.PDU.Type); err != nil {
		return nil, protocolErrorf("%v", err)
	}
	m.encoded = data
	m.once.Do(func() {})
	return m, nil
}

func (m *Message) unmarshalV3(body *segmentList, data []byte, sec Security, logger Logger) error {
	global, err := expect(body, Sequence, "msgGlobalData")
	if err != nil {
		return err
	}
	hdr, err := unmarshalHeader(global.children())
	if err != nil {
		return err
	}
	m.Header = hdr
	if hdr.SecurityModel != UserSecurityModel {
		return fmt.Errorf("%w: %w: model %d", ErrProtocol, ErrUnknownSecurityModels, hdr.SecurityModel)
	}
	auth, priv, err := providersFor(hdr.Flags, sec)
	if err != nil {
		return securityErrorf("%v", err)
	}

	usm, err := body.Next()
	if err != nil {
		return err
	}
	scoped, err := body.Next()
	if err != nil {
		return err
	}
	sp, verified, err := auth.Decrypt(usm.Raw, usm.Offset, data)
	if err != nil {
		return err
	}
	m.SecurityParameters = sp
	if !verified {
		logger.Printf("ParseMessage: digest mismatch for msgID %d user %q", hdr.MsgID, sp.UserName)
		return fmt.Errorf("%w: %w", ErrSecurity, ErrWrongDigest)
	}

	var src symbolSource
	if priv.Protocol() != NoPriv {
		if scoped.Tag != OctetString {
			return formatErrorf("encryptedPDU: expected OctetString, got %s", scoped.Tag)
		}
		plaintext, err := priv.Decrypt(scoped.Value, sp)
		if err != nil {
			return fmt.Errorf("%w: %w: %v", ErrSecurity, ErrDecryption, err)
		}
		src = newBERReader(plaintext)
	} else {
		if scoped.Tag != Sequence {
			return formatErrorf("scoped PDU: expected Sequence, got %s", scoped.Tag)
		}
		src = &berReader{buf: scoped.Raw, base: scoped.Offset}
	}
	scope, err := unmarshalScope(src)
	if err != nil {
		if priv.Protocol() != NoPriv {
			// wrong keys decrypt to garbage
			return fmt.Errorf("%w: %w: %v", ErrSecurity, ErrDecryption, err)
		}
		return err
	}
	m.Scope = scope

	if hdr.Flags.securityLevel() < sec.Level() && scope.PDU.Type != Report {
		return securityErrorf("reply security level %s is below the configured %s", hdr.Flags, sec.Level())
	}
	m.security = Security{Auth: auth, Priv: priv}
	return nil
}

// peekCorrelationKey extracts the correlation key from an encoded message
// without verifying or decrypting it: the msgID for v3, the request-id
// otherwise.
func peekCorrelationKey(data []byte) (int32, error) {
	top, err := expect(newBERReader(data), Sequence, "message")
	if err != nil {
		return 0, err
	}
	src := top.children()
	rawVersion, err := expectInt(src, "version")
	if err != nil {
		return 0, err
	}
	version, err := versionOf(rawVersion)
	if err != nil {
		return 0, err
	}
	if version == Version3 {
		hdr, err := expect(src, Sequence, "msgGlobalData")
		if err != nil {
			return 0, err
		}
		return expectInt32(hdr.children(), "msgID")
	}
	if _, err = expectOctets(src, "community"); err != nil {
		return 0, err
	}
	pdu, err := src.Next()
	if err != nil {
		return 0, err
	}
	if PDUType(pdu.Tag) == Trap {
		return 0, protocolErrorf("v1 Trap PDU has no request id")
	}
	return expectInt32(pdu.children(), "request id")
}

// versionOf maps a wire version number onto SNMPv1, SNMPv2c or SNMPv3.
func versionOf(raw int64) (SnmpVersion, error) {
	switch raw {
	case int64(Version1), int64(Version2c), int64(Version3):
		return SnmpVersion(raw), nil
	}
	return 0, protocolErrorf("unsupported SNMP version %d", raw)
}

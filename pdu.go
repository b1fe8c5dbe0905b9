// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
	"net"
)

// PDUType describes which SNMP Protocol Data Unit is being sent.
type PDUType byte

// The currently supported PDUType's
const (
	GetRequest     PDUType = 0xa0
	GetNextRequest PDUType = 0xa1
	GetResponse    PDUType = 0xa2
	SetRequest     PDUType = 0xa3
	Trap           PDUType = 0xa4 // v1
	GetBulkRequest PDUType = 0xa5
	InformRequest  PDUType = 0xa6
	SNMPv2Trap     PDUType = 0xa7 // v2c, v3
	Report         PDUType = 0xa8 // v3
)

func (t PDUType) String() string {
	switch t {
	case GetRequest:
		return "GetRequest"
	case GetNextRequest:
		return "GetNextRequest"
	case GetResponse:
		return "GetResponse"
	case SetRequest:
		return "SetRequest"
	case Trap:
		return "Trap"
	case GetBulkRequest:
		return "GetBulkRequest"
	case InformRequest:
		return "InformRequest"
	case SNMPv2Trap:
		return "SNMPv2Trap"
	case Report:
		return "Report"
	default:
		return fmt.Sprintf("PDUType(0x%02x)", byte(t))
	}
}

// isConfirmed reports whether an agent answers this kind of PDU.
func (t PDUType) isConfirmed() bool {
	switch t {
	case GetRequest, GetNextRequest, GetBulkRequest, SetRequest, InformRequest:
		return true
	}
	return false
}

// SNMPError is the error-status carried in a Response.
type SNMPError uint8

// SNMP error-status values, RFC 3416 section 3.
const (
	NoError             SNMPError = iota // No error occurred. This code is also used in all request PDUs, since they have no error status to report.
	TooBig                               // The size of the Response-PDU would be too large to transport.
	NoSuchName                           // The name of a requested object was not found.
	BadValue                             // A value in the request didn't match the structure that the recipient of the request had for the object.
	ReadOnly                             // An attempt was made to set a variable that has an Access value indicating that it is read-only.
	GenErr                               // An error occurred other than one indicated by a more specific error code in this table.
	NoAccess                             // Access was denied to the object for security reasons.
	WrongType                            // The object type in a variable binding is incorrect for the object.
	WrongLength                          // A variable binding specifies a length incorrect for the object.
	WrongEncoding                        // A variable binding specifies an encoding incorrect for the object.
	WrongValue                           // The value given in a variable binding is not possible for the object.
	NoCreation                           // A specified variable does not exist and cannot be created.
	InconsistentValue                    // A variable binding specifies a value that could be held by the variable but cannot be assigned to it at this time.
	ResourceUnavailable                  // An attempt to set a variable required a resource that is not available.
	CommitFailed                         // An attempt to set a particular variable failed.
	UndoFailed                           // An attempt to set a particular variable as part of a group of variables failed, and the attempt to then undo the setting of other variables was not successful.
	AuthorizationError                   // A problem occurred in authorization.
	NotWritable                          // The variable cannot be written or created.
	InconsistentName                     // The name in a variable binding specifies a variable that does not exist.
)

var snmpErrorNames = [...]string{
	"NoError", "TooBig", "NoSuchName", "BadValue", "ReadOnly", "GenErr",
	"NoAccess", "WrongType", "WrongLength", "WrongEncoding", "WrongValue",
	"NoCreation", "InconsistentValue", "ResourceUnavailable", "CommitFailed",
	"UndoFailed", "AuthorizationError", "NotWritable", "InconsistentName",
}

func (e SNMPError) String() string {
	if int(e) < len(snmpErrorNames) {
		return snmpErrorNames[e]
	}
	return fmt.Sprintf("SNMPError(%d)", uint8(e))
}

// V1Trap holds the header fields only SNMPv1 Trap PDUs carry.
type V1Trap struct {
	Enterprise   OID
	AgentAddress string
	GenericTrap  int
	SpecificTrap int
	Timestamp    uint32
}

// PDU is the protocol data unit. Type selects which of the optional fields
// are meaningful:
//
//   - GetBulkRequest uses NonRepeaters and MaxRepetitions in the positions
//     other kinds use for ErrorStatus and ErrorIndex.
//   - Trap (v1) uses Trap and has no RequestID.
//   - every other kind uses RequestID, ErrorStatus and ErrorIndex.
type PDU struct {
	Type           PDUType
	RequestID      int32
	ErrorStatus    SNMPError
	ErrorIndex     int
	NonRepeaters   int
	MaxRepetitions int
	Trap           *V1Trap
	Variables      []Variable
}

// marshal returns the tagged PDU encoding.
func (p *PDU) marshal() ([]byte, error) {
	body := new(bytes.Buffer)
	var err error
	switch p.Type {
	case Trap:
		err = p.marshalV1Trap(body)
	case GetBulkRequest:
		err = marshalInts(body, int64(p.RequestID), int64(p.NonRepeaters), int64(p.MaxRepetitions))
	case GetRequest, GetNextRequest, GetResponse, SetRequest, InformRequest, SNMPv2Trap, Report:
		err = marshalInts(body, int64(p.RequestID), int64(p.ErrorStatus), int64(p.ErrorIndex))
	default:
		return nil, fmt.Errorf("unable to marshal PDU: unknown type %s", p.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to marshal %s header: %w", p.Type, err)
	}
	if err = marshalVBL(body, p.Variables); err != nil {
		return nil, err
	}

	out := new(bytes.Buffer)
	if err = marshalTLV(out, Asn1BER(p.Type), body.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func marshalInts(buf *bytes.Buffer, values ...int64) error {
	for _, v := range values {
		if err := marshalIntegerTLV(buf, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *PDU) marshalV1Trap(buf *bytes.Buffer) error {
	if p.Trap == nil {
		return fmt.Errorf("v1 trap header is missing")
	}
	oid, err := p.Trap.Enterprise.marshal()
	if err != nil {
		return err
	}
	if err = marshalTLV(buf, ObjectIdentifier, oid); err != nil {
		return err
	}
	ip := net.ParseIP(p.Trap.AgentAddress).To4()
	if ip == nil {
		return fmt.Errorf("agent address %q is not an IPv4 address", p.Trap.AgentAddress)
	}
	if err = marshalTLV(buf, IPAddress, ip); err != nil {
		return err
	}
	if err = marshalInts(buf, int64(p.Trap.GenericTrap), int64(p.Trap.SpecificTrap)); err != nil {
		return err
	}
	ts, err := marshalUint32(p.Trap.Timestamp)
	if err != nil {
		return err
	}
	return marshalTLV(buf, TimeTicks, ts)
}

func marshalVBL(buf *bytes.Buffer, vars []Variable) error {
	vblBuf := new(bytes.Buffer)
	for _, v := range vars {
		if err := v.marshal(vblBuf); err != nil {
			return err
		}
	}
	return marshalTLV(buf, Sequence, vblBuf.Bytes())
}

// unmarshalPDU decodes a PDU element, dispatching on its tag.
func unmarshalPDU(seg segment) (*PDU, error) {
	p := &PDU{Type: PDUType(seg.Tag)}
	src := seg.children()
	var err error
	switch p.Type {
	case Trap:
		err = p.unmarshalV1Trap(src)
	case GetBulkRequest:
		var ints [3]int64
		if ints, err = expectInts(src, p.Type); err == nil {
			p.RequestID = int32(ints[0]) //nolint:gosec
			p.NonRepeaters = int(ints[1])
			p.MaxRepetitions = int(ints[2])
		}
	case GetRequest, GetNextRequest, GetResponse, SetRequest, InformRequest, SNMPv2Trap, Report:
		var ints [3]int64
		if ints, err = expectInts(src, p.Type); err == nil {
			if ints[1] < 0 || ints[1] > 255 {
				return nil, formatErrorf("%s: error-status %d out of range", p.Type, ints[1])
			}
			p.RequestID = int32(ints[0]) //nolint:gosec
			p.ErrorStatus = SNMPError(ints[1])
			p.ErrorIndex = int(ints[2])
		}
	default:
		return nil, formatErrorf("unknown PDU type 0x%02x", byte(seg.Tag))
	}
	if err != nil {
		return nil, err
	}

	vblSeg, err := expect(src, Sequence, "variable bindings")
	if err != nil {
		return nil, err
	}
	if p.Variables, err = unmarshalVBL(vblSeg); err != nil {
		return nil, err
	}
	if err = expectEnd(src, p.Type.String()); err != nil {
		return nil, err
	}
	return p, nil
}

// expectInts reads request-id and the two integers that follow it.
func expectInts(src symbolSource, t PDUType) ([3]int64, error) {
	var out [3]int64
	what := [3]string{"request id", "error status", "error index"}
	if t == GetBulkRequest {
		what[1], what[2] = "non repeaters", "max repetitions"
	}
	for i := range out {
		v, err := expectInt(src, what[i])
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	if out[0] < -1<<31 || out[0] > 1<<31-1 {
		return out, fmt.Errorf("request id: %w", ErrIntegerTooLarge)
	}
	return out, nil
}

func (p *PDU) unmarshalV1Trap(src symbolSource) error {
	p.Trap = &V1Trap{}
	seg, err := expect(src, ObjectIdentifier, "enterprise")
	if err != nil {
		return err
	}
	if p.Trap.Enterprise, err = parseObjectIdentifier(seg.Value); err != nil {
		return err
	}
	if seg, err = expect(src, IPAddress, "agent address"); err != nil {
		return err
	}
	if len(seg.Value) != 4 {
		return formatErrorf("agent address: got length %d, expected 4", len(seg.Value))
	}
	p.Trap.AgentAddress = net.IP(seg.Value).String()
	generic, err := expectInt(src, "generic trap")
	if err != nil {
		return err
	}
	specific, err := expectInt(src, "specific trap")
	if err != nil {
		return err
	}
	p.Trap.GenericTrap, p.Trap.SpecificTrap = int(generic), int(specific)
	if seg, err = expect(src, TimeTicks, "timestamp"); err != nil {
		return err
	}
	p.Trap.Timestamp, err = parseUint32(seg.Value)
	return err
}

func unmarshalVBL(seg segment) ([]Variable, error) {
	src := seg.children()
	var vars []Variable
	for src.More() {
		vbSeg, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("variable bindings: %w", err)
		}
		v, err := unmarshalVarbind(vbSeg)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

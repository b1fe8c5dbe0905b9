// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"fmt"
	"math/big"
	"net"
	"strings"
)

// Variable is one variable binding: a name and a typed value.
//
// Decoded values always carry the canonical Go type for their Type:
//
//	Integer                                   int
//	OctetString, Opaque, BitString            []byte
//	ObjectIdentifier                          OID
//	Counter32, Gauge32, TimeTicks, Uinteger32 uint32
//	Counter64                                 uint64
//	IPAddress                                 string, dotted
//	OpaqueFloat                               float32
//	OpaqueDouble                              float64
//	Null, NoSuchObject, NoSuchInstance,
//	EndOfMibView                              nil
//
// When encoding, strings are also accepted for octet strings and any
// non-negative int for the 32 bit unsigned types.
type Variable struct {
	Name  OID
	Type  Asn1BER
	Value any
}

// NullVariable is the binding sent in read requests.
func NullVariable(name OID) Variable {
	return Variable{Name: name, Type: Null}
}

func (v Variable) String() string {
	switch val := v.Value.(type) {
	case []byte:
		return fmt.Sprintf("%s = %s: %q", v.Name, v.Type, val)
	case nil:
		return fmt.Sprintf("%s = %s", v.Name, v.Type)
	default:
		return fmt.Sprintf("%s = %s: %v", v.Name, v.Type, val)
	}
}

// marshal appends the SEQUENCE { name, value } encoding of v to buf.
func (v Variable) marshal(buf *bytes.Buffer) error {
	oid, err := v.Name.marshal()
	if err != nil {
		return err
	}
	tmpBuf := new(bytes.Buffer)
	if err = marshalTLV(tmpBuf, ObjectIdentifier, oid); err != nil {
		return err
	}
	if err = v.marshalValue(tmpBuf); err != nil {
		return fmt.Errorf("varbind %s: %w", v.Name, err)
	}
	return marshalTLV(buf, Sequence, tmpBuf.Bytes())
}

func (v Variable) marshalValue(buf *bytes.Buffer) error {
	switch v.Type {
	case Null, NoSuchObject, NoSuchInstance, EndOfMibView:
		return marshalTLV(buf, v.Type, nil)

	case Integer:
		var n int64
		switch value := v.Value.(type) {
		case int:
			n = int64(value)
		case int32:
			n = int64(value)
		case int64:
			n = value
		case uint8:
			n = int64(value)
		default:
			return fmt.Errorf("unable to marshal Integer from %T", v.Value)
		}
		return marshalIntegerTLV(buf, n)

	case Counter32, Gauge32, TimeTicks, Uinteger32:
		intBytes, err := marshalUint32(v.Value)
		if err != nil {
			return err
		}
		return marshalTLV(buf, v.Type, intBytes)

	case Counter64:
		switch value := v.Value.(type) {
		case uint64:
			return marshalTLV(buf, v.Type, marshalUint64(value))
		case uint:
			return marshalTLV(buf, v.Type, marshalUint64(uint64(value)))
		default:
			return fmt.Errorf("unable to marshal Counter64 from %T", v.Value)
		}

	case OctetString, BitString, Opaque:
		switch value := v.Value.(type) {
		case []byte:
			return marshalTLV(buf, v.Type, value)
		case string:
			return marshalTLV(buf, v.Type, []byte(value))
		default:
			return fmt.Errorf("unable to marshal %s from %T", v.Type, v.Value)
		}

	case ObjectIdentifier:
		var oid OID
		switch value := v.Value.(type) {
		case OID:
			oid = value
		case string:
			var err error
			if oid, err = ParseOID(value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unable to marshal ObjectIdentifier from %T", v.Value)
		}
		oidBytes, err := oid.marshal()
		if err != nil {
			return err
		}
		return marshalTLV(buf, v.Type, oidBytes)

	case IPAddress:
		var ipBytes []byte
		switch value := v.Value.(type) {
		case []byte:
			ipBytes = value
		case net.IP:
			// net.IP holds IPv4 in 16 bytes
			if ip4 := value.To4(); ip4 != nil {
				value = ip4
			}
			ipBytes = value
		case string:
			ip := net.ParseIP(value)
			if ip == nil {
				return fmt.Errorf("unable to marshal IPAddress %q", value)
			}
			// dotted quads go out as 4 octets, "::ffff:a.b.c.d" as 16
			if !strings.Contains(value, ":") {
				ip = ip.To4()
			}
			ipBytes = ip
		default:
			return fmt.Errorf("unable to marshal IPAddress from %T", v.Value)
		}
		if len(ipBytes) != net.IPv4len && len(ipBytes) != net.IPv6len {
			return fmt.Errorf("unable to marshal IPAddress of %d octets", len(ipBytes))
		}
		return marshalTLV(buf, v.Type, ipBytes)

	case OpaqueFloat, OpaqueDouble:
		var floatBytes []byte
		var err error
		if v.Type == OpaqueFloat {
			floatBytes, err = marshalFloat32(v.Value)
		} else {
			floatBytes, err = marshalFloat64(v.Value)
		}
		if err != nil {
			return err
		}
		inner := new(bytes.Buffer)
		inner.WriteByte(AsnExtensionTag)
		if err = marshalTLV(inner, v.Type, floatBytes); err != nil {
			return err
		}
		return marshalTLV(buf, Opaque, inner.Bytes())

	default:
		return fmt.Errorf("unable to marshal value type %s", v.Type)
	}
}

// unmarshalVarbind decodes one SEQUENCE { name, value }.
func unmarshalVarbind(seg segment) (Variable, error) {
	if seg.Tag != Sequence {
		return Variable{}, formatErrorf("varbind: expected Sequence, got %s", seg.Tag)
	}
	src := seg.children()
	nameSeg, err := expect(src, ObjectIdentifier, "varbind name")
	if err != nil {
		return Variable{}, err
	}
	name, err := parseObjectIdentifier(nameSeg.Value)
	if err != nil {
		return Variable{}, fmt.Errorf("varbind name: %w", err)
	}
	valSeg, err := src.Next()
	if err != nil {
		return Variable{}, fmt.Errorf("varbind %s value: %w", name, err)
	}
	if err = expectEnd(src, "varbind"); err != nil {
		return Variable{}, err
	}
	v := Variable{Name: name}
	if err = decodeValue(valSeg, &v); err != nil {
		return Variable{}, fmt.Errorf("varbind %s: %w", name, err)
	}
	return v, nil
}

// decodeValue fills in Type and Value from a value element.
func decodeValue(seg segment, v *Variable) error {
	v.Type = seg.Tag
	var err error
	switch seg.Tag {
	case Integer:
		var n int32
		n, err = parseInt32(seg.Value)
		v.Value = int(n)
	case OctetString, BitString:
		v.Value = bytes.Clone(seg.Value)
	case Null, NoSuchObject, NoSuchInstance, EndOfMibView:
		v.Value = nil
	case ObjectIdentifier:
		v.Value, err = parseObjectIdentifier(seg.Value)
	case IPAddress:
		switch len(seg.Value) {
		case net.IPv4len:
			v.Value = net.IP(seg.Value).String()
		case net.IPv6len:
			ip := net.IP(bytes.Clone(seg.Value))
			if ip4 := ip.To4(); ip4 != nil {
				v.Value = "::ffff:" + ip4.String()
			} else {
				v.Value = ip.String()
			}
		default:
			return formatErrorf("got ipaddress len %d, expected 4 or 16", len(seg.Value))
		}
	case Counter32, Gauge32, TimeTicks, Uinteger32:
		v.Value, err = parseUint32(seg.Value)
	case Counter64:
		v.Value, err = parseUint64(seg.Value)
	case Opaque:
		return parseOpaque(seg.Value, v)
	default:
		return formatErrorf("unknown value type 0x%02x", byte(seg.Tag))
	}
	return err
}

// parseOpaque recognises the net-snmp float extensions nested in an Opaque;
// anything else stays as raw bytes.
func parseOpaque(data []byte, v *Variable) error {
	v.Type = Opaque
	v.Value = bytes.Clone(data)
	if len(data) < 3 || data[0] != AsnExtensionTag {
		return nil
	}
	inner := newBERReader(data[1:])
	seg, err := inner.Next()
	if err != nil {
		return err
	}
	switch seg.Tag {
	case OpaqueFloat:
		v.Type = OpaqueFloat
		v.Value, err = parseFloat32(seg.Value)
	case OpaqueDouble:
		v.Type = OpaqueDouble
		v.Value, err = parseFloat64(seg.Value)
	}
	return err
}

// ToBigInt converts a numeric Variable value to a *big.Int. Non numeric
// values yield zero.
func ToBigInt(value any) *big.Int {
	var val int64
	switch value := value.(type) {
	case int:
		val = int64(value)
	case int8:
		val = int64(value)
	case int16:
		val = int64(value)
	case int32:
		val = int64(value)
	case int64:
		val = value
	case uint:
		return new(big.Int).SetUint64(uint64(value))
	case uint8:
		val = int64(value)
	case uint16:
		val = int64(value)
	case uint32:
		val = int64(value)
	case uint64:
		return new(big.Int).SetUint64(value)
	default:
		return new(big.Int)
	}
	return big.NewInt(val)
}

// Copyright 2024 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is a sequence of non-negative arcs, eg 1.3.6.1.2.1.1.1.0.
// Values are treated as immutable; no method modifies its receiver.
type OID []uint32

// ParseOID parses the dotted form. A single leading dot is accepted, as
// printed by net-snmp and by String.
func ParseOID(s string) (OID, error) {
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return nil, formatErrorf("empty object identifier")
	}
	parts := strings.Split(s, ".")
	oid := make(OID, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, formatErrorf("invalid arc %q in object identifier %q", p, s)
		}
		oid[i] = uint32(v)
	}
	return oid, nil
}

// MustParseOID is like ParseOID but panics on error. Intended for
// package level constants.
func MustParseOID(s string) OID {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// String returns the dotted form with a leading dot.
func (o OID) String() string {
	var b strings.Builder
	for _, arc := range o {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(arc), 10))
	}
	return b.String()
}

// Compare orders identifiers arc by arc; a proper prefix sorts first.
func (o OID) Compare(other OID) int {
	for i := 0; i < len(o) && i < len(other); i++ {
		switch {
		case o[i] < other[i]:
			return -1
		case o[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

func (o OID) Equal(other OID) bool {
	return o.Compare(other) == 0
}

// HasPrefix reports whether prefix is an ancestor of, or equal to, o.
func (o OID) HasPrefix(prefix OID) bool {
	if len(prefix) > len(o) {
		return false
	}
	return o[:len(prefix)].Equal(prefix)
}

// Append returns a new identifier with arcs added.
func (o OID) Append(arcs ...uint32) OID {
	out := make(OID, 0, len(o)+len(arcs))
	out = append(out, o...)
	return append(out, arcs...)
}

// marshal encodes the contents octets: the first two arcs fold into one
// subidentifier (40*x + y), the rest are base-128.
func (o OID) marshal() ([]byte, error) {
	if len(o) < 2 || len(o) > 128 {
		return nil, fmt.Errorf("unable to marshal OID %s: invalid length %d", o, len(o))
	}
	if o[0] > 2 || (o[0] < 2 && o[1] >= 40) {
		return nil, fmt.Errorf("unable to marshal OID %s: invalid first arcs", o)
	}
	out := make([]byte, 0, len(o)+4)
	out = appendBase128Int(out, uint64(o[0])*40+uint64(o[1]))
	for _, arc := range o[2:] {
		out = appendBase128Int(out, uint64(arc))
	}
	return out, nil
}

// parseObjectIdentifier decodes the contents octets of an OBJECT IDENTIFIER.
func parseObjectIdentifier(src []byte) (OID, error) {
	if len(src) == 0 {
		return nil, ErrInvalidOidLength
	}
	first, offset, err := parseBase128Uint32(src, 0)
	if err != nil {
		return nil, err
	}
	oid := make(OID, 0, len(src)+1)
	switch {
	case first < 40:
		oid = append(oid, 0, first)
	case first < 80:
		oid = append(oid, 1, first-40)
	default:
		oid = append(oid, 2, first-80)
	}
	var v uint32
	for offset < len(src) {
		v, offset, err = parseBase128Uint32(src, offset)
		if err != nil {
			return nil, err
		}
		oid = append(oid, v)
	}
	return oid, nil
}

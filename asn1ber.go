// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snmpcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Asn1BER is the type of an SNMP value or structure, as carried in the tag
// octet of its BER encoding.
type Asn1BER byte

// Universal, application and context tags understood by the codec.
const (
	EndOfContents    Asn1BER = 0x00
	UnknownType      Asn1BER = 0x00
	Boolean          Asn1BER = 0x01
	Integer          Asn1BER = 0x02
	BitString        Asn1BER = 0x03
	OctetString      Asn1BER = 0x04
	Null             Asn1BER = 0x05
	ObjectIdentifier Asn1BER = 0x06
	Sequence         Asn1BER = 0x30
	IPAddress        Asn1BER = 0x40
	Counter32        Asn1BER = 0x41
	Gauge32          Asn1BER = 0x42
	TimeTicks        Asn1BER = 0x43
	Opaque           Asn1BER = 0x44
	NsapAddress      Asn1BER = 0x45
	Counter64        Asn1BER = 0x46
	Uinteger32       Asn1BER = 0x47
	OpaqueFloat      Asn1BER = 0x78
	OpaqueDouble     Asn1BER = 0x79
	NoSuchObject     Asn1BER = 0x80
	NoSuchInstance   Asn1BER = 0x81
	EndOfMibView     Asn1BER = 0x82
)

// AsnExtensionTag prefixes the float types nested inside an Opaque.
const AsnExtensionTag = 0x9f

// MaxObjectSubIdentifierValue is the largest arc an OID may carry.
const MaxObjectSubIdentifierValue = math.MaxUint32

func (a Asn1BER) String() string {
	switch a {
	case EndOfContents:
		return "EndOfContents"
	case Boolean:
		return "Boolean"
	case Integer:
		return "Integer"
	case BitString:
		return "BitString"
	case OctetString:
		return "OctetString"
	case Null:
		return "Null"
	case ObjectIdentifier:
		return "ObjectIdentifier"
	case Sequence:
		return "Sequence"
	case IPAddress:
		return "IPAddress"
	case Counter32:
		return "Counter32"
	case Gauge32:
		return "Gauge32"
	case TimeTicks:
		return "TimeTicks"
	case Opaque:
		return "Opaque"
	case NsapAddress:
		return "NsapAddress"
	case Counter64:
		return "Counter64"
	case Uinteger32:
		return "Uinteger32"
	case OpaqueFloat:
		return "OpaqueFloat"
	case OpaqueDouble:
		return "OpaqueDouble"
	case NoSuchObject:
		return "NoSuchObject"
	case NoSuchInstance:
		return "NoSuchInstance"
	case EndOfMibView:
		return "EndOfMibView"
	default:
		return fmt.Sprintf("Asn1BER(0x%02x)", byte(a))
	}
}

// -- encoding -----------------------------------------------------------------

// marshalLength builds a byte representation of length
//
// Length octets. There are two forms: short (for lengths between 0 and 127),
// and long definite (for lengths between 0 and 2^1008 -1).
//
//   - Short form. One octet. Bit 8 has value "0" and bits 7-1 give the length.
//   - Long form. Two to 127 octets. Bit 8 of first octet has value "1" and bits
//     7-1 give the number of additional length octets. Second and following
//     octets give the length, base 256, most significant digit first.
func marshalLength(length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("length must be >= 0")
	}
	if length <= 127 {
		return []byte{byte(length)}, nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(length))

	start := 0
	for start < 8 && buf[start] == 0 {
		start++
	}

	numBytes := 8 - start
	result := make([]byte, 1+numBytes)
	result[0] = byte(128 | numBytes)
	copy(result[1:], buf[start:])
	return result, nil
}

// marshalTLV writes a BER TLV (type-length-value) to buf.
func marshalTLV(buf *bytes.Buffer, tag Asn1BER, value []byte) error {
	length, err := marshalLength(len(value))
	if err != nil {
		return err
	}
	buf.WriteByte(byte(tag))
	buf.Write(length)
	buf.Write(value)
	return nil
}

// marshalIntegerTLV writes value as an INTEGER.
func marshalIntegerTLV(buf *bytes.Buffer, value int64) error {
	b, err := marshalInt32(value)
	if err != nil {
		return err
	}
	return marshalTLV(buf, Integer, b)
}

/*
	snmp Integer32 and INTEGER:
	-2^31 and 2^31-1 inclusive (-2147483648 to 2147483647 decimal)

	versus:

	snmp Counter32, Gauge32, TimeTicks, Unsigned32: (below)
	non-negative integer, maximum value of 2^32-1 (4294967295 decimal)
*/

// marshalInt32 builds the minimal two's complement representation of a
// signed 32 bit value.
func marshalInt32(value int64) ([]byte, error) {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return nil, fmt.Errorf("unable to marshal: %d overflows int32", value)
	}
	const mask1 uint32 = 0xFFFFFF80
	const mask2 uint32 = 0xFFFF8000
	const mask3 uint32 = 0xFF800000
	// ITU-T Rec. X.690 (2002) 8.3.2
	// If the contents octets of an integer value encoding consist of more than
	// one octet, then the bits of the first octet and bit 8 of the second octet:
	//  a) shall not all be ones; and
	//  b) shall not all be zero
	val := uint32(value) //nolint:gosec
	switch {
	case val&mask1 == 0 || val&mask1 == mask1:
		return []byte{byte(val)}, nil
	case val&mask2 == 0 || val&mask2 == mask2:
		return []byte{byte(val >> 8), byte(val)}, nil
	case val&mask3 == 0 || val&mask3 == mask3:
		return []byte{byte(val >> 16), byte(val >> 8), byte(val)}, nil
	default:
		return []byte{byte(val >> 24), byte(val >> 16), byte(val >> 8), byte(val)}, nil
	}
}

// marshalUint64 encodes an unsigned value with leading zero octets trimmed,
// prepending one 0x00 when the high bit would otherwise read as a sign.
func marshalUint64(source uint64) []byte {
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, source)

	trimmed := bytes.TrimLeft(bs, "\x00")
	if len(trimmed) == 0 {
		return []byte{0}
	}
	if trimmed[0]&0x80 > 0 {
		trimmed = append([]byte{0}, trimmed...)
	}
	return trimmed
}

// marshalUint32 is used by Counter32, Gauge32, TimeTicks and Unsigned32.
func marshalUint32(v any) ([]byte, error) {
	var source uint32
	switch val := v.(type) {
	case uint32:
		source = val
	case uint:
		if uint64(val) > math.MaxUint32 {
			return nil, fmt.Errorf("unable to marshal: %d overflows uint32", val)
		}
		source = uint32(val)
	case uint16:
		source = uint32(val)
	case uint8:
		source = uint32(val)
	case int:
		if val < 0 || int64(val) > math.MaxUint32 {
			return nil, fmt.Errorf("unable to marshal: %d is not a valid uint32", val)
		}
		source = uint32(val)
	// coercing from anything else is dangerous
	default:
		return nil, fmt.Errorf("unable to marshal %T to uint32", v)
	}
	return marshalUint64(uint64(source)), nil
}

func marshalFloat32(v any) ([]byte, error) {
	source, ok := v.(float32)
	if !ok {
		return nil, fmt.Errorf("marshalFloat32: expected float32, got %T", v)
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(source))
	return buf, nil
}

func marshalFloat64(v any) ([]byte, error) {
	source, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("marshalFloat64: expected float64, got %T", v)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(source))
	return buf, nil
}

// appendBase128Int appends a base-128 encoded integer to the given slice.
func appendBase128Int(dst []byte, n uint64) []byte {
	if n == 0 {
		return append(dst, 0)
	}

	l := 0
	for i := n; i > 0; i >>= 7 {
		l++
	}

	for i := l - 1; i >= 0; i-- {
		o := byte(n>>uint(i*7)) & 0x7f //nolint:gosec
		if i != 0 {
			o |= 0x80
		}
		dst = append(dst, o)
	}

	return dst
}

// -- decoding -----------------------------------------------------------------

// parseLength parses the length octets of the TLV starting at bytes[0]. It
// returns the total length of the TLV (header included) and the offset of its
// contents. The indefinite form is prohibited in SNMP (RFC 3417 section 8).
func parseLength(bytes []byte) (int, int, error) {
	var cursor, length int
	switch {
	case len(bytes) < 2:
		return 0, 0, ErrInvalidPacketLength
	case int(bytes[1]) <= 127:
		length = int(bytes[1])
		length += 2
		cursor += 2
	case bytes[1] == 0x80:
		return 0, 0, formatErrorf("indefinite length encoding is not permitted")
	default:
		numOctets := int(bytes[1]) & 127
		if numOctets > 4 {
			return 0, 0, ErrInvalidPacketLength
		}
		for i := range numOctets {
			length <<= 8
			if len(bytes) < 2+i+1 {
				return 0, 0, ErrInvalidPacketLength
			}
			length += int(bytes[2+i])
		}
		length += 2 + numOctets
		cursor += 2 + numOctets
	}
	if length < 0 {
		return 0, 0, ErrInvalidPacketLength
	}
	return length, cursor, nil
}

// parseInt64 treats the given bytes as a big-endian, signed integer.
func parseInt64(bytes []byte) (int64, error) {
	switch {
	case len(bytes) == 0:
		// X.690 8.3.1: the contents octets shall consist of one or more octets.
		return 0, ErrZeroLenInteger
	case len(bytes) > 8:
		return 0, ErrIntegerTooLarge
	}
	var ret int64
	for bytesRead := range bytes {
		ret <<= 8
		ret |= int64(bytes[bytesRead])
	}
	// Shift up and down in order to sign extend the result.
	ret <<= 64 - uint8(len(bytes))*8 //nolint:gosec
	ret >>= 64 - uint8(len(bytes))*8 //nolint:gosec
	return ret, nil
}

// parseInt32 is parseInt64 restricted to the INTEGER range.
func parseInt32(bytes []byte) (int32, error) {
	ret64, err := parseInt64(bytes)
	if err != nil {
		return 0, err
	}
	if ret64 < math.MinInt32 || ret64 > math.MaxInt32 {
		return 0, ErrIntegerTooLarge
	}
	return int32(ret64), nil
}

// parseUint64 treats the given bytes as a big-endian, unsigned integer.
func parseUint64(bytes []byte) (uint64, error) {
	if len(bytes) == 0 {
		return 0, ErrZeroLenInteger
	}
	if len(bytes) > 9 || (len(bytes) > 8 && bytes[0] != 0x0) {
		return 0, ErrIntegerTooLarge
	}
	var ret uint64
	for bytesRead := range bytes {
		ret <<= 8
		ret |= uint64(bytes[bytesRead])
	}
	return ret, nil
}

// parseUint32 is parseUint64 restricted to 32 bits.
func parseUint32(bytes []byte) (uint32, error) {
	ret, err := parseUint64(bytes)
	if err != nil {
		return 0, err
	}
	if ret > math.MaxUint32 {
		return 0, ErrIntegerTooLarge
	}
	return uint32(ret), nil
}

// parseBase128Uint32 parses a base-128 encoded unsigned integer from the given
// offset in the given byte slice. Returns the value and the new offset.
func parseBase128Uint32(bytes []byte, initOffset int) (uint32, int, error) {
	var ret uint64
	offset := initOffset
	for offset < len(bytes) {
		b := bytes[offset]
		offset++
		ret = (ret << 7) | uint64(b&0x7f)
		if ret > math.MaxUint32 {
			return 0, 0, ErrBase128TooLarge
		}
		if b&0x80 == 0 {
			return uint32(ret), offset, nil
		}
	}
	return 0, 0, ErrBase128Truncated
}

func parseFloat32(bytes []byte) (float32, error) {
	if len(bytes) != 4 {
		return 0, ErrFloatTooShort
	}
	return math.Float32frombits(binary.BigEndian.Uint32(bytes)), nil
}

func parseFloat64(bytes []byte) (float64, error) {
	if len(bytes) != 8 {
		return 0, ErrFloatTooShort
	}
	return math.Float64frombits(binary.BigEndian.Uint64(bytes)), nil
}

// -- symbol sources -----------------------------------------------------------

// segment is one decoded TLV element.
type segment struct {
	Tag Asn1BER
	// Offset of the tag octet from the start of the outermost buffer.
	Offset int
	// Header is the size of the tag and length octets.
	Header int
	// Value holds the contents octets.
	Value []byte
	// Raw holds the whole element, tag and length included.
	Raw []byte
}

// children returns a source over the elements nested in s.
func (s segment) children() *berReader {
	return &berReader{buf: s.Value, base: s.Offset + s.Header}
}

// symbolSource yields BER elements one at a time. Decoders for the header,
// the security parameters, the scope and the message body all consume one.
type symbolSource interface {
	Next() (segment, error)
	More() bool
}

// berReader is a symbolSource over a byte slice.
type berReader struct {
	buf  []byte
	pos  int
	base int
}

func newBERReader(buf []byte) *berReader {
	return &berReader{buf: buf}
}

func (r *berReader) More() bool {
	return r.pos < len(r.buf)
}

func (r *berReader) Next() (segment, error) {
	if !r.More() {
		return segment{}, formatErrorf("unexpected end of data at offset %d", r.base+r.pos)
	}
	data := r.buf[r.pos:]
	length, cursor, err := parseLength(data)
	if err != nil {
		return segment{}, err
	}
	if length > len(data) {
		return segment{}, formatErrorf("truncated %s at offset %d (declared %d, available %d)",
			Asn1BER(data[0]), r.base+r.pos, length, len(data))
	}
	seg := segment{
		Tag:    Asn1BER(data[0]),
		Offset: r.base + r.pos,
		Header: cursor,
		Value:  data[cursor:length],
		Raw:    data[:length],
	}
	r.pos += length
	return seg, nil
}

// expect reads the next element and checks its tag.
func expect(src symbolSource, tag Asn1BER, what string) (segment, error) {
	seg, err := src.Next()
	if err != nil {
		return segment{}, fmt.Errorf("%s: %w", what, err)
	}
	if seg.Tag != tag {
		return segment{}, formatErrorf("%s: expected %s, got %s", what, tag, seg.Tag)
	}
	return seg, nil
}

func expectInt(src symbolSource, what string) (int64, error) {
	seg, err := expect(src, Integer, what)
	if err != nil {
		return 0, err
	}
	v, err := parseInt64(seg.Value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return v, nil
}

func expectInt32(src symbolSource, what string) (int32, error) {
	v, err := expectInt(src, what)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s: %w", what, ErrIntegerTooLarge)
	}
	return int32(v), nil
}

func expectOctets(src symbolSource, what string) ([]byte, error) {
	seg, err := expect(src, OctetString, what)
	if err != nil {
		return nil, err
	}
	return seg.Value, nil
}

// collect drains src.
func collect(src symbolSource) ([]segment, error) {
	var out []segment
	for src.More() {
		seg, err := src.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

// segmentList is a symbolSource over elements that were split out up front,
// for decoders that need the element count before consuming any of them.
type segmentList struct {
	segs []segment
	pos  int
}

func newSegmentList(src symbolSource) (*segmentList, error) {
	segs, err := collect(src)
	if err != nil {
		return nil, err
	}
	return &segmentList{segs: segs}, nil
}

// Len is the total number of elements, consumed or not.
func (l *segmentList) Len() int {
	return len(l.segs)
}

func (l *segmentList) More() bool {
	return l.pos < len(l.segs)
}

func (l *segmentList) Next() (segment, error) {
	if !l.More() {
		return segment{}, formatErrorf("unexpected end of elements after %d", len(l.segs))
	}
	seg := l.segs[l.pos]
	l.pos++
	return seg, nil
}

// expectEnd fails when src has trailing elements.
func expectEnd(src symbolSource, what string) error {
	if src.More() {
		return formatErrorf("%s: unexpected trailing data", what)
	}
	return nil
}

// Copyright 2012-2018 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// https://www.scadacore.com/tools/programming-calculators/online-hex-converter/ is useful

var testsMarshalUint32 = []struct {
	value     uint32
	goodBytes []byte
}{
	{0, []byte{0x00}},
	{2, []byte{0x02}},                          // 2
	{128, []byte{0x00, 0x80}},                  // high bit set
	{257, []byte{0x01, 0x01}},                  // FF + 2
	{65537, []byte{0x01, 0x00, 0x01}},          // FFFF + 2
	{16777217, []byte{0x01, 0x00, 0x00, 0x01}}, // FFFFFF + 2
	{18542501, []byte{0x01, 0x1a, 0xef, 0xa5}},
	{math.MaxUint32, []byte{0x00, 0xff, 0xff, 0xff, 0xff}},
}

func TestMarshalUint32(t *testing.T) {
	for i, test := range testsMarshalUint32 {
		result, err := marshalUint32(test.value)
		require.NoErrorf(t, err, "%d: value %d", i, test.value)
		assert.Equalf(t, test.goodBytes, result, "%d: value %d", i, test.value)
	}
}

func TestMarshalUint32Coercion(t *testing.T) {
	b, err := marshalUint32(72)
	require.NoError(t, err)
	assert.Equal(t, []byte{72}, b)

	_, err = marshalUint32(-1)
	assert.Error(t, err)

	_, err = marshalUint32("12")
	assert.Error(t, err)
}

var testsMarshalInt32 = []struct {
	value     int64
	goodBytes []byte
}{
	{0, []byte{0x00}},
	{2, []byte{0x02}},                          // 2
	{127, []byte{0x7f}},                        // largest single octet
	{128, []byte{0x00, 0x80}},                  // needs a leading zero
	{257, []byte{0x01, 0x01}},                  // FF + 2
	{65537, []byte{0x01, 0x00, 0x01}},          // FFFF + 2
	{16777217, []byte{0x01, 0x00, 0x00, 0x01}}, // FFFFFF + 2
	{2147483647, []byte{0x7f, 0xff, 0xff, 0xff}},
	{-2147483648, []byte{0x80, 0x00, 0x00, 0x00}},
	{-16777217, []byte{0xfe, 0xff, 0xff, 0xff}},
	{-16777216, []byte{0xff, 0x00, 0x00, 0x00}},
	{-65537, []byte{0xfe, 0xff, 0xff}},
	{-65536, []byte{0xff, 0x00, 0x00}},
	{-257, []byte{0xfe, 0xff}},
	{-256, []byte{0xff, 0x00}},
	{-129, []byte{0xff, 0x7f}},
	{-128, []byte{0x80}},
	{-2, []byte{0xfe}},
	{-1, []byte{0xff}},
}

func TestMarshalInt32(t *testing.T) {
	for _, aTest := range testsMarshalInt32 {
		result, err := marshalInt32(aTest.value)
		assert.NoErrorf(t, err, "value %d", aTest.value)
		assert.EqualValues(t, aTest.goodBytes, result, "bad marshalInt32(%d)", aTest.value)

		back, err := parseInt64(result)
		assert.NoError(t, err)
		assert.Equal(t, aTest.value, back)
	}
}

func TestMarshalInt32Overflow(t *testing.T) {
	_, err := marshalInt32(math.MaxInt32 + 1)
	assert.Error(t, err)
	_, err = marshalInt32(math.MinInt32 - 1)
	assert.Error(t, err)
}

func TestMarshalLength(t *testing.T) {
	tests := []struct {
		length int
		want   []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x81, 0x80}},
		{255, []byte{0x81, 0xff}},
		{256, []byte{0x82, 0x01, 0x00}},
		{65535, []byte{0x82, 0xff, 0xff}},
		{65536, []byte{0x83, 0x01, 0x00, 0x00}},
	}
	for _, test := range tests {
		got, err := marshalLength(test.length)
		require.NoError(t, err)
		assert.Equalf(t, test.want, got, "length %d", test.length)
	}
	_, err := marshalLength(-1)
	assert.Error(t, err)
}

func TestParseLength(t *testing.T) {
	tests := []struct {
		data   []byte
		total  int
		cursor int
	}{
		{[]byte{0x04, 0x00}, 2, 2},
		{[]byte{0x04, 0x7f}, 129, 2},
		{[]byte{0x30, 0x81, 0x80}, 131, 3},
		{[]byte{0x30, 0x82, 0x01, 0x00}, 260, 4},
	}
	for _, test := range tests {
		total, cursor, err := parseLength(test.data)
		require.NoErrorf(t, err, "%x", test.data)
		assert.Equalf(t, test.total, total, "%x", test.data)
		assert.Equalf(t, test.cursor, cursor, "%x", test.data)
	}
}

func TestParseLengthErrors(t *testing.T) {
	for name, data := range map[string][]byte{
		"short":      {0x30},
		"indefinite": {0x30, 0x80, 0x00, 0x00},
		"too wide":   {0x30, 0x85, 0x01, 0x01, 0x01, 0x01, 0x01},
		"truncated":  {0x30, 0x82, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseLength(data)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestParseUint64(t *testing.T) {
	tests := []struct {
		data []byte
		n    uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x01, 0x01}, 257},
		{[]byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0x1e, 0xb3, 0xbf}, 18446744073694786495},
	}
	for _, test := range tests {
		if ret, err := parseUint64(test.data); err != nil || ret != test.n {
			t.Errorf("parseUint64(%v) = %d, %v want %d, <nil>", test.data, ret, err, test.n)
		}
	}
}

func TestParseIntegerErrors(t *testing.T) {
	_, err := parseInt64(nil)
	assert.ErrorIs(t, err, ErrZeroLenInteger)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = parseUint64([]byte{})
	assert.ErrorIs(t, err, ErrZeroLenInteger)

	_, err = parseInt64(make([]byte, 9))
	assert.ErrorIs(t, err, ErrIntegerTooLarge)

	_, err = parseUint64([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrIntegerTooLarge)

	_, err = parseInt32([]byte{0x00, 0x80, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrIntegerTooLarge)

	_, err = parseUint32([]byte{0x01, 0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrIntegerTooLarge)
}

func TestMarshalUint64(t *testing.T) {
	assert.Equal(t, []byte{0x00}, marshalUint64(0))
	assert.Equal(t, []byte{0x17, 0x50, 0x87}, marshalUint64(1527943))
	assert.Equal(t, []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, marshalUint64(math.MaxUint64))
}

func TestBase128(t *testing.T) {
	for _, n := range []uint64{0, 1, 127, 128, 16383, 16384, math.MaxUint32} {
		enc := appendBase128Int(nil, n)
		got, offset, err := parseBase128Uint32(enc, 0)
		require.NoErrorf(t, err, "value %d", n)
		assert.Equal(t, uint32(n), got)
		assert.Equal(t, len(enc), offset)
	}
	assert.Equal(t, []byte{0x81, 0x00}, appendBase128Int(nil, 128))

	_, _, err := parseBase128Uint32([]byte{0x81, 0x80}, 0)
	assert.ErrorIs(t, err, ErrBase128Truncated)

	_, _, err = parseBase128Uint32([]byte{0x90, 0x80, 0x80, 0x80, 0x00}, 0)
	assert.ErrorIs(t, err, ErrBase128TooLarge)
}

func TestFloats(t *testing.T) {
	b, err := marshalFloat32(float32(10.0))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x20, 0x00, 0x00}, b)
	f, err := parseFloat32(b)
	require.NoError(t, err)
	assert.Equal(t, float32(10.0), f)

	d, err := marshalFloat64(float64(10.0))
	require.NoError(t, err)
	g, err := parseFloat64(d)
	require.NoError(t, err)
	assert.Equal(t, float64(10.0), g)

	_, err = parseFloat32(b[:3])
	assert.ErrorIs(t, err, ErrFloatTooShort)
	_, err = marshalFloat32(10.0)
	assert.Error(t, err, "untyped constants are float64")
}

func TestBERReader(t *testing.T) {
	// SEQUENCE { INTEGER 1, OCTET STRING "ab" } followed by NULL
	data := []byte{0x30, 0x07, 0x02, 0x01, 0x01, 0x04, 0x02, 'a', 'b', 0x05, 0x00}
	r := newBERReader(data)

	seq, err := expect(r, Sequence, "sequence")
	require.NoError(t, err)
	assert.Equal(t, 0, seq.Offset)
	assert.Equal(t, 2, seq.Header)
	assert.Equal(t, data[:9], seq.Raw)

	inner := seq.children()
	n, err := expectInt(inner, "int")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	octets, err := inner.Next()
	require.NoError(t, err)
	assert.Equal(t, 5, octets.Offset, "offsets are absolute")
	assert.Equal(t, []byte("ab"), octets.Value)
	require.NoError(t, expectEnd(inner, "sequence"))

	_, err = expect(r, Integer, "null")
	assert.ErrorIs(t, err, ErrFormat)
	assert.False(t, r.More())

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestBERReaderTruncated(t *testing.T) {
	_, err := newBERReader([]byte{0x04, 0x05, 'a'}).Next()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestMarshalTLV(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, marshalTLV(buf, OctetString, bytes.Repeat([]byte{'x'}, 200)))
	assert.Equal(t, []byte{0x04, 0x81, 0xc8}, buf.Bytes()[:3])
	assert.Len(t, buf.Bytes(), 203)

	buf.Reset()
	require.NoError(t, marshalIntegerTLV(buf, -1))
	assert.Equal(t, []byte{0x02, 0x01, 0xff}, buf.Bytes())
}

func TestAsn1BERString(t *testing.T) {
	assert.Equal(t, "Counter64", Counter64.String())
	assert.Equal(t, "Asn1BER(0x99)", Asn1BER(0x99).String())
	assert.True(t, errors.Is(ErrInvalidPacketLength, ErrFormat))
}

func TestSegmentList(t *testing.T) {
	l, err := newSegmentList(newBERReader([]byte{0x02, 0x01, 0x03, 0x04, 0x02, 'h', 'i', 0x05, 0x00}))
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())

	v, err := expectInt(l, "version")
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
	s, err := expectOctets(l, "community")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), s)
	assert.True(t, l.More())
	seg, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, Null, seg.Tag)
	assert.Equal(t, 7, seg.Offset)

	assert.False(t, l.More())
	assert.Equal(t, 3, l.Len())
	_, err = l.Next()
	assert.ErrorIs(t, err, ErrFormat)

	_, err = newSegmentList(newBERReader([]byte{0x02, 0x05, 0x01}))
	assert.ErrorIs(t, err, ErrFormat)
}

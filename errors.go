// Copyright 2024 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"errors"
	"fmt"
	"net"
)

// Error classes. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	// ErrFormat reports bytes that are not a well formed BER encoding of
	// the expected structure.
	ErrFormat = errors.New("malformed encoding")

	// ErrProtocol reports a structurally valid message that breaks the
	// protocol rules: wrong arity, unexpected PDU kind, Report instead of
	// Response, use of an engine that has not been discovered.
	ErrProtocol = errors.New("protocol error")

	// ErrSecurity reports a failed authentication check or an undecryptable
	// scoped PDU.
	ErrSecurity = errors.New("security check failed")

	// ErrCorrelationMismatch is the reason an inbound datagram was dropped.
	// It is only ever logged; exchanges never complete with it.
	ErrCorrelationMismatch = errors.New("reply does not match an outstanding request")

	// ErrTimeout is returned when no matching reply arrived in time. It
	// satisfies net.Error with Timeout() == true.
	ErrTimeout error = timeoutError{}
)

// Finer grained errors, each wrapping one of the classes above.
var (
	ErrMalformedMessage    = fmt.Errorf("%w: malformed message", ErrProtocol)
	ErrDiscovery           = fmt.Errorf("%w: engine discovery failed", ErrProtocol)
	ErrNotDiscovered       = fmt.Errorf("%w: engine not discovered", ErrProtocol)
	ErrDuplicateRequest    = fmt.Errorf("%w: correlation key already outstanding", ErrProtocol)
	ErrTransportClosed     = errors.New("transport closed")
	ErrInvalidPacketLength = fmt.Errorf("%w: invalid packet length", ErrFormat)
	ErrZeroLenInteger      = fmt.Errorf("%w: zero length integer", ErrFormat)
	ErrIntegerTooLarge     = fmt.Errorf("%w: integer too large", ErrFormat)
	ErrBase128TooLarge     = fmt.Errorf("%w: base 128 integer too large", ErrFormat)
	ErrBase128Truncated    = fmt.Errorf("%w: base 128 integer truncated", ErrFormat)
	ErrInvalidOidLength    = fmt.Errorf("%w: invalid OID length", ErrFormat)
	ErrFloatTooShort       = fmt.Errorf("%w: float buffer too short", ErrFormat)
)

// usmStats and snmp engine counters a Report can carry, RFC 3414 and RFC 3412.
var (
	ErrDecryption            = errors.New("decryption error")
	ErrInvalidMsgs           = errors.New("invalid messages")
	ErrNotInTimeWindow       = errors.New("not in time window")
	ErrUnknownEngineID       = errors.New("unknown engine id")
	ErrUnknownPDUHandlers    = errors.New("unknown pdu handlers")
	ErrUnknownReportPDU      = errors.New("unknown report pdu")
	ErrUnknownSecurityLevel  = errors.New("unknown security level")
	ErrUnknownSecurityModels = errors.New("unknown security models")
	ErrUnknownUsername       = errors.New("unknown username")
	ErrWrongDigest           = errors.New("wrong digest")
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "request timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// ReportError is returned when an agent answers with a Report PDU where a
// Response was expected.
type ReportError struct {
	// OID of the first report variable, eg usmStatsNotInTimeWindows.
	OID OID
	// Counter is the value of that variable, when it is a Counter32.
	Counter uint32
	// Engine holds the authoritative engine parameters the Report announced.
	Engine EngineParams

	reason error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report received: %s (%s=%d)", e.reason, e.OID, e.Counter)
}

// Unwrap exposes both ErrProtocol and the specific report reason.
func (e *ReportError) Unwrap() []error {
	return []error{ErrProtocol, e.reason}
}

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

func securityErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSecurity, fmt.Sprintf(format, args...))
}

// Copyright 2012-2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"crypto/hmac"
	"fmt"
)

// AuthenticationProvider signs outgoing v3 messages and verifies incoming
// ones. Implementations must be safe for concurrent use.
type AuthenticationProvider interface {
	Protocol() SnmpV3AuthProtocol

	// DigestLength is the size of msgAuthenticationParameters on the wire.
	DigestLength() int

	// Sign computes the digest of msg, which must already carry a zero
	// filled placeholder of DigestLength octets, with the key localized
	// to engineID.
	Sign(msg []byte, engineID string) ([]byte, error)

	// Decrypt decodes the msgSecurityParameters element params, found at
	// offset in msg, and verifies msg against the digest it carries.
	Decrypt(params []byte, offset int, msg []byte) (*UsmSecurityParameters, bool, error)
}

// NoAuthentication is the no-op provider used for noAuthNoPriv messages
// and for v1/v2c.
type NoAuthentication struct{}

func (NoAuthentication) Protocol() SnmpV3AuthProtocol { return NoAuth }

func (NoAuthentication) DigestLength() int { return 0 }

func (NoAuthentication) Sign([]byte, string) ([]byte, error) { return nil, nil }

func (NoAuthentication) Decrypt(params []byte, offset int, _ []byte) (*UsmSecurityParameters, bool, error) {
	sp, _, _, err := decodeSecurityParameters(params, offset)
	if err != nil {
		return nil, false, err
	}
	return sp, true, nil
}

// hmacAuthentication implements HMAC-MD5-96, HMAC-SHA-96 (RFC 3414) and
// the HMAC-SHA-2 protocols of RFC 7860.
type hmacAuthentication struct {
	protocol   SnmpV3AuthProtocol
	passphrase string
	fixedKey   []byte
	keys       keyCache
}

// NewAuthenticationProvider returns a provider that derives keys from
// passphrase, localized to whichever engine a message names. NoAuth yields
// NoAuthentication.
func NewAuthenticationProvider(proto SnmpV3AuthProtocol, passphrase string) (AuthenticationProvider, error) {
	if proto == NoAuth {
		return NoAuthentication{}, nil
	}
	if proto.newHash() == nil {
		return nil, fmt.Errorf("unknown authentication protocol %d", proto)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("authentication %s: %w", proto, errEmptyPassphrase)
	}
	return &hmacAuthentication{protocol: proto, passphrase: passphrase}, nil
}

// NewAuthenticationProviderWithKey returns a provider that always uses the
// given, already localized, key.
func NewAuthenticationProviderWithKey(proto SnmpV3AuthProtocol, localizedKey []byte) (AuthenticationProvider, error) {
	if proto.newHash() == nil {
		return nil, fmt.Errorf("unknown authentication protocol %d", proto)
	}
	if len(localizedKey) == 0 {
		return nil, fmt.Errorf("authentication %s: empty key", proto)
	}
	return &hmacAuthentication{protocol: proto, fixedKey: bytes.Clone(localizedKey)}, nil
}

func (a *hmacAuthentication) Protocol() SnmpV3AuthProtocol { return a.protocol }

func (a *hmacAuthentication) DigestLength() int { return a.protocol.digestLength() }

func (a *hmacAuthentication) key(engineID string) ([]byte, error) {
	if a.fixedKey != nil {
		return a.fixedKey, nil
	}
	return a.keys.get(engineID, func() ([]byte, error) {
		return genlocalkey(a.protocol, a.passphrase, engineID)
	})
}

func (a *hmacAuthentication) Sign(msg []byte, engineID string) ([]byte, error) {
	key, err := a.key(engineID)
	if err != nil {
		return nil, fmt.Errorf("unable to derive %s key: %w", a.protocol, err)
	}
	mac := hmac.New(a.protocol.newHash, key)
	mac.Write(msg)
	return mac.Sum(nil)[:a.DigestLength()], nil
}

func (a *hmacAuthentication) Decrypt(params []byte, offset int, msg []byte) (*UsmSecurityParameters, bool, error) {
	sp, authOffset, authLen, err := decodeSecurityParameters(params, offset)
	if err != nil {
		return nil, false, err
	}
	if authLen != a.DigestLength() || authOffset+authLen > len(msg) {
		return sp, false, nil
	}
	received := msg[authOffset : authOffset+authLen]

	zeroed := bytes.Clone(msg)
	clear(zeroed[authOffset : authOffset+authLen])
	expected, err := a.Sign(zeroed, sp.AuthoritativeEngineID)
	if err != nil {
		return sp, false, err
	}
	return sp, hmac.Equal(expected, received), nil
}

// decodeSecurityParameters parses a msgSecurityParameters element located at
// offset in the enclosing message.
func decodeSecurityParameters(params []byte, offset int) (*UsmSecurityParameters, int, int, error) {
	src := &berReader{buf: params, base: offset}
	seg, err := src.Next()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("msgSecurityParameters: %w", err)
	}
	return unmarshalUsmSecurityParameters(seg)
}

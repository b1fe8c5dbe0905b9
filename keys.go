// Copyright 2012-2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"crypto/md5"  //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"sync"
	"sync/atomic"
)

// SnmpV3AuthProtocol describes the authentication protocol in use by an
// authenticated SnmpV3 connection.
type SnmpV3AuthProtocol uint8

// NoAuth, MD5, SHA and the SHA-2 family of RFC 7860 are implemented.
const (
	NoAuth SnmpV3AuthProtocol = 1
	MD5    SnmpV3AuthProtocol = 2
	SHA    SnmpV3AuthProtocol = 3
	SHA224 SnmpV3AuthProtocol = 4
	SHA256 SnmpV3AuthProtocol = 5
	SHA384 SnmpV3AuthProtocol = 6
	SHA512 SnmpV3AuthProtocol = 7
)

func (a SnmpV3AuthProtocol) String() string {
	switch a {
	case NoAuth:
		return "NoAuth"
	case MD5:
		return "MD5"
	case SHA:
		return "SHA"
	case SHA224:
		return "SHA224"
	case SHA256:
		return "SHA256"
	case SHA384:
		return "SHA384"
	case SHA512:
		return "SHA512"
	default:
		return "Unknown"
	}
}

// newHash returns a fresh hash for the protocol, or nil for NoAuth and
// unknown values.
func (a SnmpV3AuthProtocol) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New() //nolint:gosec
	case SHA:
		return sha1.New() //nolint:gosec
	case SHA224:
		return sha256.New224()
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	}
	return nil
}

// digestLength is the truncated HMAC size carried in
// msgAuthenticationParameters (RFC 3414, RFC 7860).
func (a SnmpV3AuthProtocol) digestLength() int {
	switch a {
	case MD5, SHA:
		return 12
	case SHA224:
		return 16
	case SHA256:
		return 24
	case SHA384:
		return 32
	case SHA512:
		return 48
	}
	return 0
}

var errEmptyPassphrase = errors.New("empty passphrase")

var (
	passwordKeyHashCache = make(map[string][]byte)
	passwordKeyHashMutex sync.RWMutex
	passwordCacheDisable atomic.Bool
)

// PasswordCaching is enabled by default for performance reasons. If the cache
// was disabled then it was re-enabled, the cache is reset.
func PasswordCaching(enable bool) {
	oldCacheEnable := !passwordCacheDisable.Load()
	passwordKeyHashMutex.Lock()
	if !enable { // disable
		passwordKeyHashCache = nil
	} else if !oldCacheEnable { // reset
		passwordKeyHashCache = make(map[string][]byte)
	}
	passwordCacheDisable.Store(!enable)
	passwordKeyHashMutex.Unlock()
}

// hashPassword converts a password to a key, RFC 3414 A.2: the password is
// repeated to fill one megabyte which is then hashed.
func hashPassword(h hash.Hash, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, errEmptyPassphrase
	}
	var pi int
	buf := make([]byte, 64)
	for count := 0; count < 1048576; count += 64 {
		for i := range buf {
			buf[i] = password[pi%len(password)]
			pi++
		}
		h.Write(buf)
	}
	return h.Sum(nil), nil
}

// cachedPasswordToKey is hashPassword behind the process wide cache.
func cachedPasswordToKey(proto SnmpV3AuthProtocol, password string) ([]byte, error) {
	cacheKey := proto.String() + "\x00" + password
	if !passwordCacheDisable.Load() {
		passwordKeyHashMutex.RLock()
		value, ok := passwordKeyHashCache[cacheKey]
		passwordKeyHashMutex.RUnlock()
		if ok {
			return value, nil
		}
	}

	h := proto.newHash()
	if h == nil {
		return nil, fmt.Errorf("no hash for authentication protocol %s", proto)
	}
	ku, err := hashPassword(h, []byte(password))
	if err != nil {
		return nil, err
	}

	if !passwordCacheDisable.Load() {
		passwordKeyHashMutex.Lock()
		if passwordKeyHashCache != nil {
			passwordKeyHashCache[cacheKey] = ku
		}
		passwordKeyHashMutex.Unlock()
	}
	return ku, nil
}

// localizeKey binds a password derived key to an engine, RFC 3414 A.2:
// Kul = H(Ku | engineID | Ku).
func localizeKey(proto SnmpV3AuthProtocol, ku []byte, engineID string) []byte {
	h := proto.newHash()
	h.Write(ku)
	h.Write([]byte(engineID))
	h.Write(ku)
	return h.Sum(nil)
}

// genlocalkey derives the localized key for password at engineID.
func genlocalkey(proto SnmpV3AuthProtocol, password string, engineID string) ([]byte, error) {
	ku, err := cachedPasswordToKey(proto, password)
	if err != nil {
		return nil, err
	}
	return localizeKey(proto, ku, engineID), nil
}

// extendKeyBlumenthal lengthens a localized key for AES-192/256 as in
// draft-blumenthal-aes-usm-04 section 3.1.2.1: each round appends the hash
// of everything produced so far.
func extendKeyBlumenthal(proto SnmpV3AuthProtocol, key []byte, size int) []byte {
	out := make([]byte, len(key), size+64)
	copy(out, key)
	for len(out) < size {
		h := proto.newHash()
		h.Write(out)
		out = h.Sum(out)
	}
	return out[:size]
}

// extendKeyReeder lengthens a localized key the way draft-reeder-snmpv3-usm-3desede
// does, as used by Cisco: the previous key is treated as a password and
// localized again.
func extendKeyReeder(proto SnmpV3AuthProtocol, key []byte, engineID string, size int) ([]byte, error) {
	out := make([]byte, len(key), size+64)
	copy(out, key)
	last := key
	for len(out) < size {
		ku, err := hashPassword(proto.newHash(), last)
		if err != nil {
			return nil, err
		}
		last = localizeKey(proto, ku, engineID)
		out = append(out, last...)
	}
	return out[:size], nil
}

// keyCache holds the localized keys of one passphrase, per engine.
type keyCache struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func (c *keyCache) get(engineID string, derive func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.keys[engineID]; ok {
		return key, nil
	}
	key, err := derive()
	if err != nil {
		return nil, err
	}
	if c.keys == nil {
		c.keys = make(map[string][]byte)
	}
	c.keys[engineID] = key
	return key, nil
}

// Copyright 2012-2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" //nolint:gosec
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// SnmpV3PrivProtocol is the privacy protocol in use by a private SnmpV3
// connection.
type SnmpV3PrivProtocol uint8

// NoPriv, DES, AES and the 192/256 bit AES variants are implemented. The
// "C" variants use the Reeder key extension found on Cisco devices.
const (
	NoPriv  SnmpV3PrivProtocol = 1
	DES     SnmpV3PrivProtocol = 2
	AES     SnmpV3PrivProtocol = 3
	AES192  SnmpV3PrivProtocol = 4 // Blumenthal-AES192
	AES256  SnmpV3PrivProtocol = 5 // Blumenthal-AES256
	AES192C SnmpV3PrivProtocol = 6 // Reeder-AES192
	AES256C SnmpV3PrivProtocol = 7 // Reeder-AES256
)

func (p SnmpV3PrivProtocol) String() string {
	switch p {
	case NoPriv:
		return "NoPriv"
	case DES:
		return "DES"
	case AES:
		return "AES"
	case AES192:
		return "AES192"
	case AES256:
		return "AES256"
	case AES192C:
		return "AES192C"
	case AES256C:
		return "AES256C"
	default:
		return "Unknown"
	}
}

// keySize is the number of localized key octets the protocol consumes. DES
// takes a key and a pre-IV of 8 octets each.
func (p SnmpV3PrivProtocol) keySize() int {
	switch p {
	case DES, AES:
		return 16
	case AES192, AES192C:
		return 24
	case AES256, AES256C:
		return 32
	}
	return 0
}

// PrivacyProvider encrypts and decrypts the ScopedPDU of v3 messages.
// Implementations must be safe for concurrent use.
type PrivacyProvider interface {
	Protocol() SnmpV3PrivProtocol

	// NewSalt returns fresh msgPrivacyParameters for a message about to be
	// sent with sp. Salts never repeat for the lifetime of the provider.
	NewSalt(sp *UsmSecurityParameters) ([]byte, error)

	// Encrypt enciphers the encoded ScopedPDU using the salt in
	// sp.PrivacyParameters.
	Encrypt(plaintext []byte, sp *UsmSecurityParameters) ([]byte, error)

	// Decrypt reverses Encrypt. A wrong key is not always detectable here;
	// the garbage it yields fails to decode as a ScopedPDU instead.
	Decrypt(ciphertext []byte, sp *UsmSecurityParameters) ([]byte, error)
}

// NoPrivacy passes the ScopedPDU through unchanged.
type NoPrivacy struct{}

func (NoPrivacy) Protocol() SnmpV3PrivProtocol { return NoPriv }

func (NoPrivacy) NewSalt(*UsmSecurityParameters) ([]byte, error) { return nil, nil }

func (NoPrivacy) Encrypt(plaintext []byte, _ *UsmSecurityParameters) ([]byte, error) {
	return plaintext, nil
}

func (NoPrivacy) Decrypt(ciphertext []byte, _ *UsmSecurityParameters) ([]byte, error) {
	return ciphertext, nil
}

// cipherPrivacy implements DES-CBC (RFC 3414 section 8) and AES-CFB128
// (RFC 3826 and its 192/256 bit extensions).
type cipherPrivacy struct {
	protocol   SnmpV3PrivProtocol
	auth       SnmpV3AuthProtocol
	passphrase string
	fixedKey   []byte
	keys       keyCache

	// salt counters, RFC 3414 section 8.1.1.1 and RFC 3826 section 3.1.2.1
	desSalt atomic.Uint32
	aesSalt atomic.Uint64
}

// NewPrivacyProvider returns a provider deriving its key from passphrase
// with the hash of the authentication protocol auth. NoPriv yields
// NoPrivacy.
func NewPrivacyProvider(proto SnmpV3PrivProtocol, passphrase string, auth SnmpV3AuthProtocol) (PrivacyProvider, error) {
	if proto == NoPriv {
		return NoPrivacy{}, nil
	}
	if proto.keySize() == 0 {
		return nil, fmt.Errorf("unknown privacy protocol %d", proto)
	}
	if auth.newHash() == nil {
		return nil, fmt.Errorf("privacy %s requires an authentication protocol", proto)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("privacy %s: %w", proto, errEmptyPassphrase)
	}
	p := &cipherPrivacy{protocol: proto, auth: auth, passphrase: passphrase}
	return p, p.seedSalt()
}

// NewPrivacyProviderWithKey returns a provider using the given, already
// localized and extended, key.
func NewPrivacyProviderWithKey(proto SnmpV3PrivProtocol, localizedKey []byte) (PrivacyProvider, error) {
	if proto.keySize() == 0 {
		return nil, fmt.Errorf("unknown privacy protocol %d", proto)
	}
	if len(localizedKey) < proto.keySize() {
		return nil, fmt.Errorf("privacy %s: key needs %d octets, got %d", proto, proto.keySize(), len(localizedKey))
	}
	p := &cipherPrivacy{protocol: proto, fixedKey: bytes.Clone(localizedKey[:proto.keySize()])}
	return p, p.seedSalt()
}

func (p *cipherPrivacy) seedSalt() error {
	salt := make([]byte, 8)
	if _, err := crand.Read(salt); err != nil {
		return fmt.Errorf("error creating a cryptographically secure salt: %w", err)
	}
	p.aesSalt.Store(binary.BigEndian.Uint64(salt))
	p.desSalt.Store(binary.BigEndian.Uint32(salt[4:]))
	return nil
}

func (p *cipherPrivacy) Protocol() SnmpV3PrivProtocol { return p.protocol }

func (p *cipherPrivacy) key(engineID string) ([]byte, error) {
	if p.fixedKey != nil {
		return p.fixedKey, nil
	}
	return p.keys.get(engineID, func() ([]byte, error) {
		key, err := genlocalkey(p.auth, p.passphrase, engineID)
		if err != nil {
			return nil, err
		}
		size := p.protocol.keySize()
		switch {
		case len(key) >= size:
			return key[:size], nil
		case p.protocol == AES192C || p.protocol == AES256C:
			return extendKeyReeder(p.auth, key, engineID, size)
		default:
			return extendKeyBlumenthal(p.auth, key, size), nil
		}
	})
}

func (p *cipherPrivacy) NewSalt(sp *UsmSecurityParameters) ([]byte, error) {
	salt := make([]byte, 8)
	if p.protocol == DES {
		binary.BigEndian.PutUint32(salt, sp.AuthoritativeEngineBoots)
		binary.BigEndian.PutUint32(salt[4:], p.desSalt.Add(1))
	} else {
		binary.BigEndian.PutUint64(salt, p.aesSalt.Add(1))
	}
	return salt, nil
}

func (p *cipherPrivacy) Encrypt(plaintext []byte, sp *UsmSecurityParameters) ([]byte, error) {
	key, err := p.key(sp.AuthoritativeEngineID)
	if err != nil {
		return nil, fmt.Errorf("unable to derive %s key: %w", p.protocol, err)
	}
	if len(sp.PrivacyParameters) != 8 {
		return nil, fmt.Errorf("%s: salt must be 8 octets, got %d", p.protocol, len(sp.PrivacyParameters))
	}
	if p.protocol == DES {
		return encryptDES(plaintext, key, sp.PrivacyParameters)
	}
	return encryptAESCFB(plaintext, key, aesIV(sp))
}

func (p *cipherPrivacy) Decrypt(ciphertext []byte, sp *UsmSecurityParameters) ([]byte, error) {
	key, err := p.key(sp.AuthoritativeEngineID)
	if err != nil {
		return nil, fmt.Errorf("unable to derive %s key: %w", p.protocol, err)
	}
	if len(sp.PrivacyParameters) != 8 {
		return nil, securityErrorf("%s: salt must be 8 octets, got %d", p.protocol, len(sp.PrivacyParameters))
	}
	if p.protocol == DES {
		return decryptDES(ciphertext, key, sp.PrivacyParameters)
	}
	return decryptAESCFB(ciphertext, key, aesIV(sp))
}

// aesIV is boots | time | salt, RFC 3826 section 3.1.2.1.
func aesIV(sp *UsmSecurityParameters) []byte {
	iv := make([]byte, 16)
	binary.BigEndian.PutUint32(iv, sp.AuthoritativeEngineBoots)
	binary.BigEndian.PutUint32(iv[4:], sp.AuthoritativeEngineTime)
	copy(iv[8:], sp.PrivacyParameters)
	return iv
}

// desIV xors the pre-IV, the second half of the localized key, with the salt.
func desIV(key, salt []byte) []byte {
	iv := make([]byte, des.BlockSize)
	for i := range iv {
		iv[i] = key[8+i] ^ salt[i]
	}
	return iv
}

func encryptDES(plaintext, key, salt []byte) ([]byte, error) {
	block, err := des.NewCipher(key[:8]) //nolint:gosec
	if err != nil {
		return nil, err
	}
	// padding content is arbitrary, RFC 3414 section 8.1.1.2
	if rem := len(plaintext) % des.BlockSize; rem != 0 {
		plaintext = append(bytes.Clone(plaintext), make([]byte, des.BlockSize-rem)...)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, desIV(key, salt)).CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

func decryptDES(ciphertext, key, salt []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%des.BlockSize != 0 {
		return nil, securityErrorf("DES ciphertext length %d is not a multiple of %d", len(ciphertext), des.BlockSize)
	}
	block, err := des.NewCipher(key[:8]) //nolint:gosec
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, desIV(key, salt)).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

func encryptAESCFB(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(ciphertext, plaintext) //nolint:staticcheck
	return ciphertext, nil
}

func decryptAESCFB(ciphertext, key, iv []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, securityErrorf("empty AES ciphertext")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, ciphertext) //nolint:staticcheck
	return plaintext, nil
}

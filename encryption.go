// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lemon4ksan/zipfile/internal"
)

// EncryptionMethod represents the encryption algorithm used for file protection.
type EncryptionMethod uint8

// Supported encryption methods
const (
	NotEncrypted     EncryptionMethod = iota // No encryption - file stored in plaintext
	ZipCrypto                                // Legacy encryption. Vulnerable to known-plaintext attacks
	WinZipAES                                // WinZip AES-CTR with HMAC-SHA1 authentication
	StrongEncryption                         // PKWARE strong encryption, recognised but never decoded
)

var encryptionNames = [...]string{
	NotEncrypted:     "None",
	ZipCrypto:        "ZipCrypto",
	WinZipAES:        "WinZip AES",
	StrongEncryption: "Strong Encryption",
}

func (e EncryptionMethod) String() string {
	if int(e) < len(encryptionNames) {
		return encryptionNames[e]
	}
	return fmt.Sprintf("EncryptionMethod(%d)", uint8(e))
}

// AESStrength selects the WinZip AES key size.
type AESStrength uint8

const (
	AES128 AESStrength = 1
	AES192 AESStrength = 2
	AES256 AESStrength = 3
)

func (s AESStrength) valid() bool { return s >= AES128 && s <= AES256 }

// keySize returns the AES key length in bytes: 16, 24 or 32.
func (s AESStrength) keySize() int { return 8 + 8*int(s) }

// saltSize returns the salt length in bytes: 8, 12 or 16.
func (s AESStrength) saltSize() int { return s.keySize() / 2 }

func (s AESStrength) String() string {
	if !s.valid() {
		return fmt.Sprintf("AESStrength(%d)", uint8(s))
	}
	return fmt.Sprintf("AES-%d", s.keySize()*8)
}

// General purpose bit flags.
const (
	flagEncrypted        uint16 = 0x0001
	flagDataDescriptor   uint16 = 0x0008
	flagStrongEncryption uint16 = 0x0040
	flagUTF8             uint16 = 0x0800
)

// WinZip AES extra field (tag 0x9901).
const (
	aesExtraTag         uint16 = 0x9901
	aesExtraPayloadSize        = 7
	aesVendorID                = "AE"
	aesVersion1         uint16 = 1 // AE-1: real CRC stored
	aesVersion2         uint16 = 2 // AE-2: CRC stored as zero
)

// aesExtra is the decoded WinZip AES extra field.
type aesExtra struct {
	version  uint16
	strength AESStrength
	method   CompressionMethod
}

func parseAESExtra(block []byte) (aesExtra, error) {
	if len(block) < 4+aesExtraPayloadSize {
		return aesExtra{}, fmt.Errorf("%w: aes extra field too short (%d bytes)", ErrFormat, len(block))
	}
	payload := block[4:]
	if string(payload[2:4]) != aesVendorID {
		return aesExtra{}, fmt.Errorf("%w: aes vendor id %q", ErrFormat, payload[2:4])
	}

	extra := aesExtra{
		version:  binary.LittleEndian.Uint16(payload[0:2]),
		strength: AESStrength(payload[4]),
		method:   CompressionMethod(binary.LittleEndian.Uint16(payload[5:7])),
	}
	if !extra.strength.valid() {
		return aesExtra{}, fmt.Errorf("%w: aes strength %d", ErrUnsupportedEncryption, payload[4])
	}
	return extra, nil
}

func (e aesExtra) encode() []byte {
	payload := make([]byte, aesExtraPayloadSize)
	binary.LittleEndian.PutUint16(payload[0:2], e.version)
	copy(payload[2:4], aesVendorID)
	payload[4] = byte(e.strength)
	binary.LittleEndian.PutUint16(payload[5:7], uint16(e.method))
	return internal.ExtraFieldBlock(aesExtraTag, payload)
}

// entryMethods is the outcome of resolving header flags and extra fields.
type entryMethods struct {
	compression CompressionMethod
	encryption  EncryptionMethod
	aes         aesExtra
}

// resolveMethods derives the real compression and encryption methods of an entry.
// The AEx marker overrides bit 0 and takes the real method from the AES extra field.
func resolveMethods(flags uint16, method uint16, extra map[uint16][]byte) (entryMethods, error) {
	m := entryMethods{compression: CompressionMethod(method)}

	switch {
	case m.compression == AEx:
		m.encryption = WinZipAES
		block, ok := extra[aesExtraTag]
		if !ok {
			return m, fmt.Errorf("%w: aes entry without aes extra field", ErrFormat)
		}
		aes, err := parseAESExtra(block)
		if err != nil {
			return m, err
		}
		m.aes = aes
		m.compression = aes.method
	case flags&flagEncrypted != 0 && flags&flagStrongEncryption != 0:
		m.encryption = StrongEncryption
	case flags&flagEncrypted != 0:
		m.encryption = ZipCrypto
	}
	return m, nil
}

// encryptionOverhead returns the bytes an encryption scheme adds to the entry data.
func encryptionOverhead(method EncryptionMethod, strength AESStrength) int64 {
	switch method {
	case ZipCrypto:
		return zipCryptoHeaderLen
	case WinZipAES:
		return int64(strength.saltSize() + aesVerifierSize + aesMACSize)
	default:
		return 0
	}
}

// newDecryptor wraps src, positioned at the entry data, in the matching cipher.
// The password is verified before it returns.
func newDecryptor(src io.Reader, m entryMethods, password string, crc uint32, compressedSize int64) (io.Reader, error) {
	switch m.encryption {
	case NotEncrypted:
		return src, nil
	case ZipCrypto:
		return newZipCryptoReader(src, password, crc)
	case WinZipAES:
		return newAESReader(src, password, m.aes.strength, compressedSize)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncryption, m.encryption)
	}
}

// newEncryptor wraps dest in the cipher selected by the config.
// Close must be called to flush trailing authentication data.
func newEncryptor(dest io.Writer, method EncryptionMethod, strength AESStrength, password string, crc uint32) (io.WriteCloser, error) {
	switch method {
	case NotEncrypted:
		return nopWriteCloser{dest}, nil
	case ZipCrypto:
		return newZipCryptoWriter(dest, password, crc)
	case WinZipAES:
		return newAESWriter(dest, password, strength)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncryption, method)
	}
}

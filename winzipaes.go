// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// AES Constants
const (
	aesMACSize      = 10 // HMAC-SHA1 truncated to 10 bytes
	aesVerifierSize = 2  // Password verification value
	aesIterations   = 1000
)

// aesKeys holds keys derived from the password.
type aesKeys struct {
	encKey   []byte // AES encryption key
	macKey   []byte // HMAC signing key
	verifier []byte // Password verification value
}

// deriveAESKeys runs PBKDF2-HMAC-SHA1 and splits the output into
// the encryption key, the HMAC key and the 2-byte verifier.
func deriveAESKeys(password string, salt []byte, strength AESStrength) aesKeys {
	keyLen := strength.keySize()
	dk := pbkdf2.Key([]byte(password), salt, aesIterations, 2*keyLen+aesVerifierSize, sha1.New)

	return aesKeys{
		encKey:   dk[:keyLen],
		macKey:   dk[keyLen : 2*keyLen],
		verifier: dk[2*keyLen:],
	}
}

// winZipCounter implements cipher.Stream for WinZip AES-CTR mode.
// WinZip increments the 128-bit counter as a little-endian integer starting at 1,
// whereas cipher.NewCTR uses big-endian.
type winZipCounter struct {
	block     cipher.Block
	counter   [aes.BlockSize]byte
	keystream [aes.BlockSize]byte
	remaining int // unused keystream bytes of the current block
}

func newWinZipCounter(block cipher.Block) *winZipCounter {
	c := &winZipCounter{block: block}
	c.counter[0] = 1
	return c
}

func (c *winZipCounter) XORKeyStream(dst, src []byte) {
	for len(src) > 0 {
		if c.remaining == 0 {
			c.block.Encrypt(c.keystream[:], c.counter[:])
			for j := range c.counter {
				c.counter[j]++
				if c.counter[j] != 0 {
					break
				}
			}
			c.remaining = aes.BlockSize
		}
		n := subtle.XORBytes(dst, src, c.keystream[aes.BlockSize-c.remaining:])
		c.remaining -= n
		dst, src = dst[n:], src[n:]
	}
}

type aesReader struct {
	src       io.Reader
	remaining int64 // ciphertext bytes left before the authentication code
	stream    *winZipCounter
	mac       hash.Hash
	verified  bool
	verifyErr error
}

// newAESReader creates a reader that handles WinZip AES decryption.
// src must be positioned at the salt; compressedSize covers salt, verifier,
// ciphertext and the authentication code.
func newAESReader(src io.Reader, password string, strength AESStrength, compressedSize int64) (io.Reader, error) {
	if !strength.valid() {
		return nil, fmt.Errorf("%w: aes strength %d", ErrUnsupportedEncryption, strength)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password required", ErrInvalidPassword)
	}

	overhead := encryptionOverhead(WinZipAES, strength)
	if compressedSize < overhead {
		return nil, fmt.Errorf("%w: aes entry too small (%d bytes)", ErrFormat, compressedSize)
	}

	salt := make([]byte, strength.saltSize())
	if _, err := io.ReadFull(src, salt); err != nil {
		return nil, fmt.Errorf("%w: read salt: %w", ErrFormat, err)
	}
	verifier := make([]byte, aesVerifierSize)
	if _, err := io.ReadFull(src, verifier); err != nil {
		return nil, fmt.Errorf("%w: read password verifier: %w", ErrFormat, err)
	}

	keys := deriveAESKeys(password, salt, strength)
	if subtle.ConstantTimeCompare(verifier, keys.verifier) != 1 {
		return nil, ErrInvalidPassword
	}

	block, err := aes.NewCipher(keys.encKey)
	if err != nil {
		return nil, err
	}

	return &aesReader{
		src:       src,
		remaining: compressedSize - overhead,
		stream:    newWinZipCounter(block),
		mac:       hmac.New(sha1.New, keys.macKey),
	}, nil
}

func (r *aesReader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		if err := r.verify(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.src.Read(p)
	if n > 0 {
		r.remaining -= int64(n)
		// Encrypt-then-MAC: the HMAC covers ciphertext
		r.mac.Write(p[:n])
		r.stream.XORKeyStream(p[:n], p[:n])
	}

	if err == io.EOF {
		if r.remaining > 0 {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
	}
	return n, err
}

// verify reads the trailing authentication code once the ciphertext is exhausted.
// The verdict is kept, so later calls return the same result.
func (r *aesReader) verify() error {
	if r.verified {
		return r.verifyErr
	}
	r.verified = true

	want := make([]byte, aesMACSize)
	if _, err := io.ReadFull(r.src, want); err != nil {
		r.verifyErr = fmt.Errorf("%w: read authentication code: %w", ErrFormat, err)
	} else if !hmac.Equal(r.mac.Sum(nil)[:aesMACSize], want) {
		r.verifyErr = ErrAuthentication
	}
	return r.verifyErr
}

// aesWriter implements WinZip AES encryption.
type aesWriter struct {
	dest   io.Writer
	stream *winZipCounter
	mac    hash.Hash
	buf    []byte
}

func newAESWriter(dest io.Writer, password string, strength AESStrength) (io.WriteCloser, error) {
	if !strength.valid() {
		return nil, fmt.Errorf("%w: aes strength %d", ErrUnsupportedEncryption, strength)
	}

	salt := make([]byte, strength.saltSize())
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("aes rand: %w", err)
	}
	keys := deriveAESKeys(password, salt, strength)

	if _, err := dest.Write(salt); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	if _, err := dest.Write(keys.verifier); err != nil {
		return nil, fmt.Errorf("write password verifier: %w", err)
	}

	block, err := aes.NewCipher(keys.encKey)
	if err != nil {
		return nil, err
	}

	return &aesWriter{
		dest:   dest,
		stream: newWinZipCounter(block),
		mac:    hmac.New(sha1.New, keys.macKey),
	}, nil
}

func (w *aesWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if cap(w.buf) < len(p) {
		w.buf = make([]byte, len(p))
	}
	buf := w.buf[:len(p)]
	w.stream.XORKeyStream(buf, p)
	w.mac.Write(buf)

	return w.dest.Write(buf)
}

// Close appends the 10-byte authentication code.
func (w *aesWriter) Close() error {
	sum := w.mac.Sum(nil)
	if _, err := w.dest.Write(sum[:aesMACSize]); err != nil {
		return fmt.Errorf("write auth code: %w", err)
	}
	return nil
}

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	zipCryptoHeaderLen = 12
	zipCryptoMagic     = 0x08088405
)

// zipCipher implements the legacy PKWARE stream cipher.
type zipCipher struct {
	key1, key2, key3 uint32
}

func newZipCipher(password string) *zipCipher {
	z := &zipCipher{
		key1: 0x12345678,
		key2: 0x23456789,
		key3: 0x34567890,
	}
	for i := 0; i < len(password); i++ {
		z.updateKeys(password[i])
	}
	return z
}

func (z *zipCipher) updateKeys(b byte) {
	z.key1 = crc32Update(z.key1, b)
	z.key2 = (z.key2+(z.key1&0xff))*zipCryptoMagic + 1
	z.key3 = crc32Update(z.key3, byte(z.key2>>24))
}

func (z *zipCipher) streamByte() byte {
	t := uint16(z.key3 | 3)
	return byte((uint32(t) * uint32(t^1)) >> 8)
}

// encrypt updates the keys with the plaintext bytes.
func (z *zipCipher) encrypt(dst, src []byte) {
	for i, b := range src {
		dst[i] = b ^ z.streamByte()
		z.updateKeys(b)
	}
}

func (z *zipCipher) decrypt(buf []byte) {
	for i, c := range buf {
		b := c ^ z.streamByte()
		z.updateKeys(b)
		buf[i] = b
	}
}

type zipCryptoReader struct {
	src    io.Reader
	cipher *zipCipher
}

// newZipCryptoReader consumes and checks the 12-byte encryption header.
// The last header byte must equal the high byte of the entry CRC.
func newZipCryptoReader(src io.Reader, password string, crc uint32) (io.Reader, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password required", ErrInvalidPassword)
	}
	cipher := newZipCipher(password)

	header := make([]byte, zipCryptoHeaderLen)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, fmt.Errorf("%w: read encryption header: %w", ErrFormat, err)
	}
	cipher.decrypt(header)

	if header[zipCryptoHeaderLen-1] != byte(crc>>24) {
		return nil, ErrInvalidPassword
	}

	return &zipCryptoReader{src: src, cipher: cipher}, nil
}

func (r *zipCryptoReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.cipher.decrypt(p[:n])
	}
	return n, err
}

type zipCryptoWriter struct {
	dest   io.Writer
	cipher *zipCipher
	buf    []byte
}

// newZipCryptoWriter writes the encryption header: 11 random bytes and the CRC check byte.
func newZipCryptoWriter(dest io.Writer, password string, crc uint32) (io.WriteCloser, error) {
	cipher := newZipCipher(password)

	header := make([]byte, zipCryptoHeaderLen)
	if _, err := rand.Read(header[:zipCryptoHeaderLen-1]); err != nil {
		return nil, fmt.Errorf("crypto rand failed: %w", err)
	}
	header[zipCryptoHeaderLen-1] = byte(crc >> 24)
	cipher.encrypt(header, header)

	if _, err := dest.Write(header); err != nil {
		return nil, fmt.Errorf("write crypto header: %w", err)
	}

	return &zipCryptoWriter{dest: dest, cipher: cipher}, nil
}

func (w *zipCryptoWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if cap(w.buf) < len(p) {
		w.buf = make([]byte, len(p))
	}
	buf := w.buf[:len(p)]
	w.cipher.encrypt(buf, p)

	return w.dest.Write(buf)
}

// Close is a no-op; dest belongs to the caller.
func (w *zipCryptoWriter) Close() error { return nil }

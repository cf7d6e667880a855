// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/lemon4ksan/zipfile/internal"
	"github.com/lemon4ksan/zipfile/internal/sys"
)

// Versions recorded in "version needed to extract" and "version made by".
const (
	zipVersion10 = 10 // Stored
	zipVersion20 = 20 // Deflate, directories, ZipCrypto
	zipVersion51 = 51 // WinZip AES
)

// archiveWriter writes entries in two phases: each local header and body at
// the cursor, then the central directory and end record on finalize.
type archiveWriter struct {
	dest       io.WriteSeeker
	offset     int64 // Where the next record starts; the only source of header offsets
	config     *Config
	centralDir bytes.Buffer
	entries    int
}

func newArchiveWriter(dest io.WriteSeeker, config *Config) *archiveWriter {
	return &archiveWriter{dest: dest, config: config}
}

// writeItem records the cursor as the item offset, writes a placeholder
// local header and the encoded body, then patches the header in place.
func (aw *archiveWriter) writeItem(ctx context.Context, it *Item) error {
	if len(it.path) > math.MaxUint16 {
		return ErrFilenameTooLong
	}
	if aw.entries >= math.MaxUint16-1 || aw.offset >= math.MaxUint32 {
		return ErrArchiveTooLarge
	}

	it.prepareForWrite(aw.config)
	it.offset = uint32(aw.offset)

	if err := aw.write(it.localHeader().Encode()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if !it.IsDir() {
		counter := &byteCountWriter{dest: aw.dest}
		err := it.encode(ctx, counter, aw.config)
		aw.offset += counter.bytesWritten
		if err != nil {
			return err
		}

		if counter.bytesWritten >= math.MaxUint32 {
			return ErrArchiveTooLarge
		}
		it.compressedSize = uint32(counter.bytesWritten)

		if err := aw.patchLocalHeader(it); err != nil {
			return err
		}
	}

	if _, err := aw.centralDir.Write(it.centralDirEntry().Encode()); err != nil {
		return err
	}
	aw.entries++
	return nil
}

func (aw *archiveWriter) write(p []byte) error {
	n, err := aw.dest.Write(p)
	aw.offset += int64(n)
	return err
}

// patchLocalHeader rewrites CRC and sizes at offset+14 and returns to the cursor.
func (aw *archiveWriter) patchLocalHeader(it *Item) error {
	if _, err := aw.dest.Seek(int64(it.offset)+14, io.SeekStart); err != nil {
		return fmt.Errorf("seek to CRC position: %w", err)
	}

	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], it.headerCRC())
	binary.LittleEndian.PutUint32(buf[4:8], it.compressedSize)
	binary.LittleEndian.PutUint32(buf[8:12], it.uncompressedSize)

	if _, err := aw.dest.Write(buf[:]); err != nil {
		return fmt.Errorf("write CRC and sizes: %w", err)
	}

	if _, err := aw.dest.Seek(aw.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to cursor: %w", err)
	}
	return nil
}

// finalize writes the central directory followed by the end record.
func (aw *archiveWriter) finalize() error {
	centralDirOffset := aw.offset
	if err := aw.write(aw.centralDir.Bytes()); err != nil {
		return fmt.Errorf("write central directory: %w", err)
	}
	centralDirSize := aw.offset - centralDirOffset

	if centralDirOffset >= math.MaxUint32 || centralDirSize >= math.MaxUint32 {
		return ErrArchiveTooLarge
	}

	end := internal.NewEndOfCentralDirectory(
		uint16(aw.entries),
		uint32(centralDirSize),
		uint32(centralDirOffset),
		aw.config.Comment,
	)
	if err := aw.write(end.Encode()); err != nil {
		return fmt.Errorf("write end of central directory: %w", err)
	}
	return nil
}

// prepareForWrite fills the header-only fields from the config.
func (it *Item) prepareForWrite(config *Config) {
	it.hostSystem = sys.DefaultHostSystem
	it.flags = flagUTF8
	it.extraField = nil
	it.aes = aesExtra{}
	it.compressedSize = 0

	if it.IsDir() {
		it.uncompressedSize = 0
		it.crc32 = 0
		it.compressionMethod = Stored
		it.declaredMethod = Stored
		it.encryptionMethod = NotEncrypted
		return
	}

	it.declaredMethod = it.compressionMethod
	it.encryptionMethod = config.EncryptionMethod

	switch it.encryptionMethod {
	case ZipCrypto:
		it.flags |= flagEncrypted
	case WinZipAES:
		it.flags |= flagEncrypted
		it.declaredMethod = AEx
		it.aes = aesExtra{
			version:  aesVersion2,
			strength: config.AESStrength,
			method:   it.compressionMethod,
		}
		it.extraField = map[uint16][]byte{aesExtraTag: it.aes.encode()}
	}

	if it.compressionMethod == Deflated {
		it.flags |= compressionLevelBits(config.CompressionLevel)
	}
}

func compressionLevelBits(level int) uint16 {
	switch level {
	case DeflateSuperFast:
		return 0x0006
	case DeflateFast:
		return 0x0004
	case DeflateMaximum:
		return 0x0002
	default:
		return 0x0000
	}
}

func (it *Item) versionNeededToExtract() uint16 {
	switch {
	case it.encryptionMethod == WinZipAES:
		return zipVersion51
	case it.IsDir(), it.compressionMethod == Deflated, it.encryptionMethod == ZipCrypto:
		return zipVersion20
	default:
		return zipVersion10
	}
}

// headerCRC is zero for AE-2 entries.
func (it *Item) headerCRC() uint32 {
	if it.aes.version == aesVersion2 {
		return 0
	}
	return it.crc32
}

// localHeader generates the local file header that precedes the file data.
func (it *Item) localHeader() internal.LocalFileHeader {
	dosDate, dosTime := it.modified.Pack()
	extra := internal.EncodeExtraField(it.extraField)

	return internal.LocalFileHeader{
		VersionNeededToExtract: it.versionNeededToExtract(),
		GeneralPurposeBitFlag:  it.flags,
		CompressionMethod:      uint16(it.declaredMethod),
		LastModFileTime:        dosTime,
		LastModFileDate:        dosDate,
		CRC32:                  it.headerCRC(),
		CompressedSize:         it.compressedSize,
		UncompressedSize:       it.uncompressedSize,
		FilenameLength:         uint16(len(it.path)),
		ExtraFieldLength:       uint16(len(extra)),
		Filename:               it.path,
		ExtraField:             extra,
	}
}

// centralDirEntry generates the central directory entry for this item.
func (it *Item) centralDirEntry() internal.CentralDirectory {
	dosDate, dosTime := it.modified.Pack()
	extraField := it.extraField
	if extraField == nil {
		extraField = map[uint16][]byte{}
	}

	return internal.CentralDirectory{
		VersionMadeBy:          uint16(it.hostSystem)<<8 | zipVersion51,
		VersionNeededToExtract: it.versionNeededToExtract(),
		GeneralPurposeBitFlag:  it.flags,
		CompressionMethod:      uint16(it.declaredMethod),
		LastModFileTime:        dosTime,
		LastModFileDate:        dosDate,
		CRC32:                  it.headerCRC(),
		CompressedSize:         it.compressedSize,
		UncompressedSize:       it.uncompressedSize,
		FilenameLength:         uint16(len(it.path)),
		ExtraFieldLength:       uint16(len(internal.EncodeExtraField(extraField))),
		FileCommentLength:      uint16(len(it.comment)),
		ExternalFileAttributes: sys.ExternalAttributes(it.hostSystem, it.mode, it.IsDir()),
		LocalHeaderOffset:      it.offset,
		Filename:               it.path,
		ExtraField:             extraField,
		Comment:                it.comment,
	}
}

// encode streams the source file through the compressor and encryptor into dest.
// The CRC computed while reading must match the one taken when the item was collected.
func (it *Item) encode(ctx context.Context, dest io.Writer, config *Config) error {
	src, err := os.Open(it.sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	compressor, err := compressorFor(it.compressionMethod, config.CompressionLevel)
	if err != nil {
		return err
	}

	encryptor, err := newEncryptor(dest, it.encryptionMethod, it.aes.strength, config.Password, it.crc32)
	if err != nil {
		return err
	}

	hasher := crc32.NewIEEE()
	n, err := compressor.Compress(io.TeeReader(&contextReader{ctx: ctx, r: src}, hasher), encryptor)
	if err != nil {
		return err
	}
	if err := encryptor.Close(); err != nil {
		return err
	}

	if n != int64(it.uncompressedSize) || hasher.Sum32() != it.crc32 {
		return fmt.Errorf("%w: %s changed while archiving", ErrChecksum, it.sourcePath)
	}
	return nil
}

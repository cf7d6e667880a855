// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// CollectItems enumerates srcPath for a new archive. A regular file becomes a
// single item named after its base name. A directory contributes every nested
// directory (with a trailing slash) and file, relative to srcPath and in
// lexical order; the root itself is not included.
//
// CRCs and sizes are computed up front. Files below the store threshold are
// stored, the rest deflated.
func CollectItems(srcPath string, options ...Option) ([]*Item, error) {
	config := newConfig(options)
	return collectItems(srcPath, &config)
}

func collectItems(srcPath string, config *Config) ([]*Item, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		it, err := newFileItem(srcPath, filepath.Base(srcPath), info, config)
		if err != nil {
			return nil, err
		}
		return []*Item{it}, nil
	}

	var items []*Item
	err = filepath.WalkDir(srcPath, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if walkPath == srcPath {
			return nil
		}

		relPath, err := filepath.Rel(srcPath, walkPath)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(relPath)

		// Follows symlinks to regular files.
		info, err := os.Stat(walkPath)
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			items = append(items, newDirItem(name+"/", info))
		case info.Mode().IsRegular():
			it, err := newFileItem(walkPath, name, info, config)
			if err != nil {
				return err
			}
			items = append(items, it)
		default:
			config.Logger.Warn("skipping non-regular file", zap.String("path", walkPath), zap.Stringer("mode", info.Mode()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func newDirItem(name string, info fs.FileInfo) *Item {
	return &Item{
		path:     name,
		modified: DosDateTimeFromTime(info.ModTime()),
		mode:     info.Mode(),
	}
}

func newFileItem(srcPath, name string, info fs.FileInfo, config *Config) (*Item, error) {
	if len(name) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s", ErrFilenameTooLong, srcPath)
	}
	if info.Size() >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrArchiveTooLarge, srcPath, info.Size())
	}

	crc, size, err := checksumFile(srcPath)
	if err != nil {
		return nil, err
	}

	method := Deflated
	if size < config.StoreThreshold {
		method = Stored
	}

	return &Item{
		path:              name,
		compressionMethod: method,
		declaredMethod:    method,
		uncompressedSize:  uint32(size),
		modified:          DosDateTimeFromTime(info.ModTime()),
		crc32:             crc,
		mode:              info.Mode(),
		sourcePath:        srcPath,
	}, nil
}

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

var (
	_ fs.FS     = (*archiveFS)(nil)
	_ fs.StatFS = (*archiveFS)(nil)
)

// FS returns a read-only file system view of the archive. Files are decoded
// with the archive password when opened and their CRC is checked on Close.
// Directories missing from the central directory are synthesized from the
// paths beneath them; entries whose path is not a valid fs path are hidden.
func (a *Archive) FS() fs.FS {
	afs := &archiveFS{
		archive:  a,
		password: a.config.Password,
		children: map[string][]string{".": nil},
	}

	seen := make(map[string]bool)
	for _, it := range a.items {
		name := strings.TrimSuffix(it.path, "/")
		if !fs.ValidPath(name) || name == "." {
			continue
		}
		for name != "." && !seen[name] {
			seen[name] = true
			parent := path.Dir(name)
			afs.children[parent] = append(afs.children[parent], path.Base(name))
			name = parent
		}
		if it.IsDir() {
			dir := strings.TrimSuffix(it.path, "/")
			if _, ok := afs.children[dir]; !ok {
				afs.children[dir] = nil
			}
		}
	}
	for _, names := range afs.children {
		slices.Sort(names)
	}
	return afs
}

type archiveFS struct {
	archive  *Archive
	password string
	children map[string][]string // directory name ("." for the root) to sorted child base names
}

func (afs *archiveFS) Open(name string) (fs.File, error) {
	info, err := afs.stat(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if info.IsDir() {
		return &fsDir{fs: afs, name: name, info: info}, nil
	}

	rc, err := info.item.Open(afs.password)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &fsFile{info: info, rc: rc}, nil
}

func (afs *archiveFS) Stat(name string) (fs.FileInfo, error) {
	info, err := afs.stat(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

func (afs *archiveFS) stat(name string) (itemInfo, error) {
	if !fs.ValidPath(name) {
		return itemInfo{}, fs.ErrInvalid
	}

	if _, isDir := afs.children[name]; isDir {
		info := itemInfo{name: path.Base(name), dir: true}
		if it, ok := afs.archive.index[name+"/"]; ok {
			info.item = it
		}
		return info, nil
	}

	if it, ok := afs.archive.index[name]; ok && !it.IsDir() {
		return itemInfo{name: path.Base(name), item: it}, nil
	}
	return itemInfo{}, fs.ErrNotExist
}

// itemInfo describes an item, or a synthesized directory when item is nil.
type itemInfo struct {
	name string
	dir  bool
	item *Item
}

func (i itemInfo) Name() string { return i.name }

func (i itemInfo) Size() int64 {
	if i.item == nil || i.dir {
		return 0
	}
	return int64(i.item.uncompressedSize)
}

func (i itemInfo) Mode() fs.FileMode {
	switch {
	case i.dir && i.item != nil:
		return i.item.mode&fs.ModePerm | fs.ModeDir
	case i.dir:
		return fs.ModeDir | 0o755
	default:
		return i.item.mode &^ fs.ModeType
	}
}

func (i itemInfo) ModTime() time.Time {
	if i.item == nil {
		return time.Time{}
	}
	return i.item.modified.Time()
}

func (i itemInfo) IsDir() bool { return i.dir }

func (i itemInfo) Sys() any { return i.item }

type fsFile struct {
	info itemInfo
	rc   io.ReadCloser
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *fsFile) Read(b []byte) (int, error) { return f.rc.Read(b) }
func (f *fsFile) Close() error               { return f.rc.Close() }

type fsDir struct {
	fs     *archiveFS
	name   string
	info   itemInfo
	offset int
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *fsDir) Close() error               { return nil }

func (d *fsDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

// ReadDir lists the children in lexical order, following the fs.ReadDirFile contract.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	names := d.fs.children[d.name]
	remaining := names[d.offset:]
	if n > 0 && len(remaining) == 0 {
		return nil, io.EOF
	}
	if n > 0 && len(remaining) > n {
		remaining = remaining[:n]
	}

	entries := make([]fs.DirEntry, 0, len(remaining))
	for _, child := range remaining {
		childPath := child
		if d.name != "." {
			childPath = d.name + "/" + child
		}
		info, err := d.fs.stat(childPath)
		if err != nil {
			return entries, &fs.PathError{Op: "readdir", Path: childPath, Err: err}
		}
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	d.offset += len(remaining)
	return entries, nil
}

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// byteCountWriter counts bytes written to a writer.
type byteCountWriter struct {
	dest         io.Writer
	bytesWritten int64
}

func (w *byteCountWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.bytesWritten += int64(n)
	return n, err
}

// contextReader wraps an io.Reader to make it respect context cancellation.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// secureJoin resolves an archive path below root.
// It rejects absolute paths and any path that escapes root after cleaning.
func secureJoin(root, name string) (string, error) {
	local := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if strings.HasPrefix(name, "/") || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrInsecurePath, name)
	}
	return filepath.Join(filepath.Clean(root), local), nil
}

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lemon4ksan/zipfile"
)

var testModTime = time.Date(2023, 6, 15, 10, 30, 20, 0, time.Local)

// makeTree creates files below dir. Names ending with a slash become empty directories.
func makeTree(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
		require.NoError(t, os.Chtimes(path, testModTime, testModTime))
	}
}

// readTree returns the regular files below dir keyed by slash-separated relative path.
func readTree(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		files[filepath.ToSlash(rel)] = data
		return err
	})
	require.NoError(t, err)
	return files
}

func sampleFiles() map[string][]byte {
	return map[string][]byte{
		"readme.txt":          []byte("hello, archive\n"),
		"data/big.bin":        bytes.Repeat([]byte("0123456789abcdef"), 50*1024/16),
		"data/nested/one.txt": []byte("1"),
		"data/nested/empty":   {},
		"empty/":              nil,
	}
}

func regularFiles(files map[string][]byte) map[string][]byte {
	out := make(map[string][]byte)
	for name, data := range files {
		if !strings.HasSuffix(name, "/") {
			out[name] = data
		}
	}
	return out
}

type rawEntry struct {
	name   string
	data   []byte
	method uint16
	badCRC bool
}

// writeRawArchive builds an archive with archive/zip, precomputing sizes so
// that no data descriptors are written.
func writeRawArchive(t *testing.T, path, comment string, entries []rawEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	require.NoError(t, zw.SetComment(comment))

	for _, e := range entries {
		body := e.data
		if e.method == zip.Deflate {
			var buf bytes.Buffer
			fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
			require.NoError(t, err)
			_, err = fw.Write(e.data)
			require.NoError(t, err)
			require.NoError(t, fw.Close())
			body = buf.Bytes()
		}

		crc := crc32.ChecksumIEEE(e.data)
		if e.badCRC {
			crc ^= 0xFFFFFFFF
		}
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               e.name,
			Method:             e.method,
			CRC32:              crc,
			CompressedSize64:   uint64(len(body)),
			UncompressedSize64: uint64(len(e.data)),
		})
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestCreateAndExtract_RoundTrip(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	files := sampleFiles()
	makeTree(t, src, files)
	archivePath := filepath.Join(t.TempDir(), "out.zip")

	created, err := zipfile.Create(context.Background(), src, archivePath, zipfile.WithComment("nightly"))
	require.NoError(t, err)
	assert.Len(t, created.Items(), 7) // 4 files and data/, data/nested/, empty/

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)
	assert.Equal(t, "nightly", archive.Comment())
	assert.Equal(t, uint16(7), archive.DeclaredCount())
	assert.Equal(t, zipfile.NotEncrypted, archive.EncryptionMethod())

	byPath := make(map[string]zipfile.Summary)
	for _, s := range archive.List() {
		byPath[s.Path] = s
	}
	assert.Equal(t, zipfile.Stored, byPath["readme.txt"].Method)
	assert.Equal(t, zipfile.Deflated, byPath["data/big.bin"].Method)
	assert.Greater(t, byPath["data/big.bin"].Ratio, 0.9)
	assert.Equal(t, zipfile.DosDateTimeFromTime(testModTime), byPath["readme.txt"].Modified)
	assert.Contains(t, byPath, "empty/")

	results, err := archive.ExtractAll(context.Background(), dest)
	require.NoError(t, err)
	assert.Len(t, results, 7)

	if diff := cmp.Diff(regularFiles(files), readTree(t, dest)); diff != "" {
		t.Errorf("extracted tree mismatch (-want +got):\n%s", diff)
	}
	info, err := os.Stat(filepath.Join(dest, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = os.Stat(filepath.Join(dest, "readme.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(testModTime), "mtime %v", info.ModTime())

	require.NoError(t, archive.Test(context.Background()))
}

func TestCreate_SingleFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "alone.txt")
	require.NoError(t, os.WriteFile(src, []byte("just me"), 0o644))
	archivePath := filepath.Join(t.TempDir(), "alone.zip")

	archive, err := zipfile.Create(context.Background(), src, archivePath)
	require.NoError(t, err)
	require.Len(t, archive.Items(), 1)
	assert.Equal(t, "alone.txt", archive.Items()[0].Path())
}

func TestCreate_ReadableByArchiveZip(t *testing.T) {
	src := t.TempDir()
	files := sampleFiles()
	makeTree(t, src, files)
	archivePath := filepath.Join(t.TempDir(), "interop.zip")

	_, err := zipfile.Create(context.Background(), src, archivePath,
		zipfile.WithCompressionLevel(zipfile.DeflateMaximum),
		zipfile.WithComment("interop"),
	)
	require.NoError(t, err)

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()
	assert.Equal(t, "interop", zr.Comment)

	got := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err, f.Name)
		require.NoError(t, rc.Close())
		got[f.Name] = data
	}
	if diff := cmp.Diff(regularFiles(files), got); diff != "" {
		t.Errorf("archive/zip read mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_ArchiveZipOutput(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "nine.zip")
	var entries []rawEntry
	want := make(map[string][]byte)
	for i := range 8 {
		name := "file" + string(rune('0'+i)) + ".txt"
		data := bytes.Repeat([]byte(name), 100*(i+1))
		method := zip.Store
		if i%2 == 1 {
			method = zip.Deflate
		}
		entries = append(entries, rawEntry{name: name, data: data, method: method})
		want[name] = data
	}
	entries = append(entries, rawEntry{name: "dir/", method: zip.Store})
	writeRawArchive(t, archivePath, "made elsewhere", entries)

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), archive.DeclaredCount())
	assert.Equal(t, "made elsewhere", archive.Comment())

	var paths []string
	for _, s := range archive.List() {
		paths = append(paths, s.Path)
	}
	assert.Equal(t, []string{
		"file0.txt", "file1.txt", "file2.txt", "file3.txt",
		"file4.txt", "file5.txt", "file6.txt", "file7.txt", "dir/",
	}, paths)

	var compressed int64
	for _, s := range archive.List() {
		compressed += int64(s.CompressedSize)
	}
	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.LessOrEqual(t, compressed, info.Size())

	dest := t.TempDir()
	_, err = archive.ExtractAll(context.Background(), dest)
	require.NoError(t, err)
	if diff := cmp.Diff(want, readTree(t, dest)); diff != "" {
		t.Errorf("extracted tree mismatch (-want +got):\n%s", diff)
	}

	it, err := archive.Item("file3.txt")
	require.NoError(t, err)
	rc, err := it.Open("")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, want["file3.txt"], data)
}

func TestArchive_ZipCryptoWrongPassword(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	makeTree(t, src, map[string][]byte{"secret.txt": []byte("top secret, stored so a lucky check byte fails on CRC")})
	archivePath := filepath.Join(t.TempDir(), "locked.zip")

	_, err := zipfile.Create(context.Background(), src, archivePath, zipfile.WithPassword("hunter2"))
	require.NoError(t, err)

	archive, err := zipfile.Open(archivePath, zipfile.WithPassword("wrong"))
	require.NoError(t, err)
	assert.Equal(t, zipfile.ZipCrypto, archive.EncryptionMethod())
	assert.True(t, archive.List()[0].Protected)

	// The header check rejects all but 1 in 256 wrong passwords; the rest fail the CRC.
	_, err = archive.ExtractAll(context.Background(), dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, zipfile.ErrInvalidPassword) || errors.Is(err, zipfile.ErrChecksum), "got %v", err)

	var itemErr *zipfile.ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, "secret.txt", itemErr.Path)
	assert.NoFileExists(t, filepath.Join(dest, "secret.txt"))

	archive.SetPassword("hunter2")
	_, err = archive.ExtractAll(context.Background(), dest)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dest, "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top secret, stored so a lucky check byte fails on CRC", string(data))
}

func TestArchive_ZipCryptoRoundTrip(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	files := sampleFiles()
	makeTree(t, src, files)
	archivePath := filepath.Join(t.TempDir(), "locked.zip")

	_, err := zipfile.Create(context.Background(), src, archivePath, zipfile.WithPassword("hunter2"))
	require.NoError(t, err)

	archive, err := zipfile.Open(archivePath, zipfile.WithPassword("hunter2"))
	require.NoError(t, err)
	_, err = archive.ExtractAll(context.Background(), dest)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(regularFiles(files), readTree(t, dest)))
}

func TestArchive_WinZipAESRoundTrip(t *testing.T) {
	for _, strength := range []zipfile.AESStrength{zipfile.AES128, zipfile.AES192, zipfile.AES256} {
		t.Run(strength.String(), func(t *testing.T) {
			src, dest := t.TempDir(), t.TempDir()
			files := sampleFiles()
			makeTree(t, src, files)
			archivePath := filepath.Join(t.TempDir(), "aes.zip")

			_, err := zipfile.Create(context.Background(), src, archivePath,
				zipfile.WithEncryption(zipfile.WinZipAES, "correct horse"),
				zipfile.WithAESStrength(strength),
			)
			require.NoError(t, err)

			archive, err := zipfile.Open(archivePath, zipfile.WithPassword("correct horse"))
			require.NoError(t, err)
			assert.Equal(t, zipfile.WinZipAES, archive.EncryptionMethod())

			big, err := archive.Item("data/big.bin")
			require.NoError(t, err)
			assert.Equal(t, zipfile.AEx, big.CompressionMethod())
			assert.Equal(t, zipfile.Deflated, big.ResolvedCompressionMethod())
			assert.Equal(t, strength, big.AESStrength())

			_, err = archive.ExtractAll(context.Background(), dest)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(regularFiles(files), readTree(t, dest)))
			require.NoError(t, archive.Test(context.Background()))
		})
	}
}

func TestArchive_WinZipAESWrongPassword(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	makeTree(t, src, map[string][]byte{"a.txt": []byte("aes data")})
	archivePath := filepath.Join(t.TempDir(), "aes.zip")

	_, err := zipfile.Create(context.Background(), src, archivePath, zipfile.WithEncryption(zipfile.WinZipAES, "hunter2"))
	require.NoError(t, err)

	archive, err := zipfile.Open(archivePath, zipfile.WithPassword("wrong"))
	require.NoError(t, err)
	_, err = archive.ExtractAll(context.Background(), dest)
	assert.ErrorIs(t, err, zipfile.ErrInvalidPassword)
	assert.NoFileExists(t, filepath.Join(dest, "a.txt"))

	archive.SetPassword("")
	_, err = archive.ExtractAll(context.Background(), dest)
	assert.ErrorIs(t, err, zipfile.ErrInvalidPassword)
}

func TestArchive_WinZipAESTamperedData(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	payload := bytes.Repeat([]byte("authenticated payload "), 20)
	makeTree(t, src, map[string][]byte{"a.txt": payload})
	archivePath := filepath.Join(t.TempDir(), "aes.zip")

	created, err := zipfile.Create(context.Background(), src, archivePath,
		zipfile.WithEncryption(zipfile.WinZipAES, "pw"),
		zipfile.WithAESStrength(zipfile.AES128),
	)
	require.NoError(t, err)

	// Flip one ciphertext byte: local header, name, AES extra, salt and verifier precede it.
	data, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	pos := int(created.Items()[0].Offset()) + 30 + len("a.txt") + 11 + 8 + 2 + 5
	data[pos] ^= 0x40
	require.NoError(t, os.WriteFile(archivePath, data, 0o644))

	archive, err := zipfile.Open(archivePath, zipfile.WithPassword("pw"))
	require.NoError(t, err)
	_, err = archive.ExtractAll(context.Background(), dest)
	assert.ErrorIs(t, err, zipfile.ErrAuthentication)
	assert.NoFileExists(t, filepath.Join(dest, "a.txt"))

	assert.ErrorIs(t, archive.Test(context.Background()), zipfile.ErrAuthentication)
}

func TestArchive_TestReportsAllFailures(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "corrupt.zip")
	writeRawArchive(t, archivePath, "", []rawEntry{
		{name: "good.txt", data: []byte("fine"), method: zip.Store},
		{name: "bad1.txt", data: []byte("broken one"), method: zip.Store, badCRC: true},
		{name: "bad2.txt", data: bytes.Repeat([]byte("broken two "), 100), method: zip.Deflate, badCRC: true},
	})

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)

	var failed []string
	archive2, err := zipfile.Open(archivePath, zipfile.WithCallback(func(it *zipfile.Item, err error) {
		if err != nil {
			failed = append(failed, it.Path())
		}
	}))
	require.NoError(t, err)

	err = archive2.Test(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, zipfile.ErrChecksum)
	assert.Equal(t, []string{"bad1.txt", "bad2.txt"}, failed)
	assert.Contains(t, err.Error(), "bad1.txt")
	assert.Contains(t, err.Error(), "bad2.txt")

	dest := t.TempDir()
	results, err := archive.ExtractAll(context.Background(), dest)
	assert.ErrorIs(t, err, zipfile.ErrChecksum)
	assert.Len(t, results, 1)
	assert.FileExists(t, filepath.Join(dest, "good.txt"))
	assert.NoFileExists(t, filepath.Join(dest, "bad1.txt"))
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "slip.zip")
	writeRawArchive(t, archivePath, "", []rawEntry{
		{name: "../evil.txt", data: []byte("pwned"), method: zip.Store},
	})

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)

	parent := t.TempDir()
	dest := filepath.Join(parent, "out")
	_, err = archive.ExtractAll(context.Background(), dest)
	assert.ErrorIs(t, err, zipfile.ErrInsecurePath)
	assert.NoFileExists(t, filepath.Join(parent, "evil.txt"))
}

func TestExtract_Filters(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, sampleFiles())
	archivePath := filepath.Join(t.TempDir(), "filters.zip")
	archive, err := zipfile.Create(context.Background(), src, archivePath)
	require.NoError(t, err)

	dest := t.TempDir()
	_, err = archive.ExtractAll(context.Background(), dest, zipfile.FromDir("data/nested"))
	require.NoError(t, err)
	assert.Equal(t, []string{"data/nested/empty", "data/nested/one.txt"}, sortedKeys(readTree(t, dest)))

	dest = t.TempDir()
	_, err = archive.ExtractAll(context.Background(), dest, zipfile.WithoutDir("data"))
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.txt"}, sortedKeys(readTree(t, dest)))

	_, err = archive.Item("missing.txt")
	assert.ErrorIs(t, err, zipfile.ErrItemNotFound)
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestExtractParallel(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	files := make(map[string][]byte)
	for i := range 20 {
		name := filepath.ToSlash(filepath.Join("dir"+string(rune('a'+i%3)), "f"+string(rune('a'+i))+".txt"))
		files[name] = bytes.Repeat([]byte{byte(i)}, 1000*(i+1))
	}
	makeTree(t, src, files)
	archivePath := filepath.Join(t.TempDir(), "parallel.zip")

	_, err := zipfile.Create(context.Background(), src, archivePath)
	require.NoError(t, err)

	var processed atomic.Int32
	archive, err := zipfile.Open(archivePath, zipfile.WithCallback(func(_ *zipfile.Item, err error) {
		if err == nil {
			processed.Add(1)
		}
	}))
	require.NoError(t, err)

	results, err := archive.ExtractParallel(context.Background(), dest, 4)
	require.NoError(t, err)
	assert.Len(t, results, 23)
	assert.Equal(t, int32(23), processed.Load())
	for i, r := range results {
		assert.Equal(t, archive.Items()[i], r.Item)
	}
	assert.Empty(t, cmp.Diff(files, readTree(t, dest)))
}

func TestExtract_Cancelled(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, sampleFiles())
	archivePath := filepath.Join(t.TempDir(), "cancel.zip")
	archive, err := zipfile.Create(context.Background(), src, archivePath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = archive.ExtractAll(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = archive.ExtractParallel(ctx, t.TempDir(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_Rejects(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.zip")
	require.NoError(t, os.WriteFile(garbage, bytes.Repeat([]byte("not a zip "), 100), 0o644))
	_, err := zipfile.Open(garbage)
	assert.ErrorIs(t, err, zipfile.ErrFormat)

	empty := filepath.Join(dir, "empty.zip")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = zipfile.Open(empty)
	assert.ErrorIs(t, err, zipfile.ErrFormat)

	_, err = zipfile.Open(filepath.Join(dir, "missing.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtract_DataDescriptorUnsupported(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "streamed.zip")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("streamed.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("written with a trailing data descriptor"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)
	require.Len(t, archive.List(), 1)

	_, err = archive.ExtractAll(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, zipfile.ErrUnsupportedFeature)
}

func TestExtract_UnsupportedCompression(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "bzip2.zip")
	writeRawArchive(t, archivePath, "", []rawEntry{
		{name: "a.bz2", data: []byte("pretend bzip2 data"), method: uint16(zipfile.BZIP2)},
	})

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)
	assert.Equal(t, zipfile.BZIP2, archive.List()[0].Method)

	_, err = archive.ExtractAll(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, zipfile.ErrUnsupportedCompression)
}

func TestCreate_SkipsItsOwnOutput(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string][]byte{"a.txt": []byte("a")})
	archivePath := filepath.Join(src, "self.zip")

	_, err := zipfile.Create(context.Background(), src, archivePath)
	require.NoError(t, err)

	// The second run sees self.zip in the walk.
	archive, err := zipfile.Create(context.Background(), src, archivePath)
	require.NoError(t, err)
	require.Len(t, archive.Items(), 1)
	assert.Equal(t, "a.txt", archive.Items()[0].Path())
}

func TestCreate_Logging(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, map[string][]byte{"a.txt": []byte("a"), "b.txt": []byte("b")})

	core, logs := observer.New(zapcore.InfoLevel)
	_, err := zipfile.Create(context.Background(), src, filepath.Join(t.TempDir(), "log.zip"),
		zipfile.WithLogger(zap.New(core)),
		zipfile.WithVerbose(true),
	)
	require.NoError(t, err)

	written := logs.FilterMessage("write").All()
	require.Len(t, written, 2)
	assert.Equal(t, "a.txt", written[0].ContextMap()["path"])
}

func TestCreateFromItems(t *testing.T) {
	src := t.TempDir()
	makeTree(t, src, sampleFiles())

	items, err := zipfile.CollectItems(src, zipfile.WithStoreThreshold(0))
	require.NoError(t, err)
	for _, it := range items {
		if !it.IsDir() {
			assert.Equal(t, zipfile.Deflated, it.CompressionMethod(), it.Path())
		}
	}

	archivePath := filepath.Join(t.TempDir(), "items.zip")
	_, err = zipfile.CreateFromItems(context.Background(), items, archivePath,
		zipfile.WithOrder(zipfile.OrderAlphabetical),
	)
	require.NoError(t, err)

	archive, err := zipfile.Open(archivePath)
	require.NoError(t, err)
	require.NoError(t, archive.Test(context.Background()))
	require.Len(t, archive.Items(), len(items))

	var paths []string
	for _, it := range archive.Items() {
		paths = append(paths, it.Path())
	}
	assert.True(t, sort.StringsAreSorted(paths), "%v", paths)
}

func TestCreate_Failure(t *testing.T) {
	_, err := zipfile.Create(context.Background(), filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "x.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	src := t.TempDir()
	makeTree(t, src, map[string][]byte{"a.txt": bytes.Repeat([]byte("x"), 20000)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "cancelled.zip")
	_, err = zipfile.Create(ctx, src, dest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
}

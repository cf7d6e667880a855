// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultStoreThreshold is the file size below which entries are stored uncompressed.
const DefaultStoreThreshold = 10000

// Config defines configuration parameters for reading and writing an archive.
type Config struct {
	// Password decrypts protected entries and, when creating, encrypts every file.
	Password string

	// EncryptionMethod is used for new files when Password is set.
	// NotEncrypted with a password selects ZipCrypto.
	EncryptionMethod EncryptionMethod

	// AESStrength selects the key size for WinZipAES. Default: AES256.
	AESStrength AESStrength

	// CompressionLevel controls the speed vs size trade-off (1-9).
	CompressionLevel int

	// StoreThreshold is the size in bytes below which files are stored instead of deflated.
	StoreThreshold int64

	// Comment is the archive-level comment (max 65535 bytes).
	Comment string

	// Order arranges items before they are written. Default: walk order.
	Order ItemOrder

	// Verbose promotes per-entry progress logs from debug to info.
	Verbose bool

	// Logger receives structured progress and failure logs. Default: no-op.
	Logger *zap.Logger

	// OnItemProcessed is a callback triggered after an entry is written,
	// extracted or tested.
	// WARNING: In parallel operations, this is called concurrently.
	OnItemProcessed func(*Item, error)
}

// Option is a functional option for archive configuration.
type Option func(c *Config)

func defaultConfig() Config {
	return Config{
		AESStrength:      AES256,
		CompressionLevel: DeflateNormal,
		StoreThreshold:   DefaultStoreThreshold,
		Logger:           zap.NewNop(),
	}
}

func newConfig(options []Option) Config {
	c := defaultConfig()
	for _, opt := range options {
		opt(&c)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Password != "" && c.EncryptionMethod == NotEncrypted {
		c.EncryptionMethod = ZipCrypto
	}
	if c.Password == "" {
		c.EncryptionMethod = NotEncrypted
	}
	return c
}

// WithPassword sets the password used to decrypt entries or encrypt new ones.
func WithPassword(pwd string) Option {
	return func(c *Config) {
		c.Password = pwd
	}
}

// WithEncryption sets the encryption method and password for new files.
func WithEncryption(e EncryptionMethod, pwd string) Option {
	return func(c *Config) {
		c.EncryptionMethod = e
		c.Password = pwd
	}
}

// WithAESStrength sets the key size used by WinZipAES.
func WithAESStrength(s AESStrength) Option {
	return func(c *Config) {
		c.AESStrength = s
	}
}

// WithCompressionLevel sets the DEFLATE level for compressed entries.
func WithCompressionLevel(lvl int) Option {
	return func(c *Config) {
		c.CompressionLevel = lvl
	}
}

// WithStoreThreshold overrides the size below which files are stored uncompressed.
// Zero deflates every file.
func WithStoreThreshold(n int64) Option {
	return func(c *Config) {
		c.StoreThreshold = n
	}
}

// WithComment sets the archive comment written into the end of central directory record.
func WithComment(comment string) Option {
	return func(c *Config) {
		c.Comment = comment
	}
}

// WithOrder sets the order in which items are written.
func WithOrder(order ItemOrder) Option {
	return func(c *Config) {
		c.Order = order
	}
}

// WithVerbose enables info-level progress logs.
func WithVerbose(v bool) Option {
	return func(c *Config) {
		c.Verbose = v
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithCallback registers a function called after each entry is processed.
func WithCallback(fn func(*Item, error)) Option {
	return func(c *Config) {
		c.OnItemProcessed = fn
	}
}

// logItem reports the outcome of an operation on a single entry.
func (c *Config) logItem(op string, item *Item, err error) {
	if err != nil {
		c.Logger.Error(op+" failed", zap.String("path", item.Path()), zap.Error(err))
	} else {
		fields := []zap.Field{
			zap.String("path", item.Path()),
			zap.Stringer("method", item.CompressionMethod()),
			zap.Uint32("size", item.UncompressedSize()),
		}
		if c.Verbose {
			c.Logger.Info(op, fields...)
		} else {
			c.Logger.Debug(op, fields...)
		}
	}

	if c.OnItemProcessed != nil {
		c.OnItemProcessed(item, err)
	}
}

// ExtractOption configures the extraction process (filtering).
type ExtractOption func(items []*Item) []*Item

// WithItems restricts extraction to the given items.
func WithItems(items []*Item) ExtractOption {
	return func(_ []*Item) []*Item { return items }
}

// FromDir restricts extraction to items nested under the specified path.
func FromDir(path string) ExtractOption {
	return func(items []*Item) []*Item {
		if path == "" || path == "." {
			return items
		}
		dirPath := strings.TrimSuffix(path, "/") + "/"

		result := make([]*Item, 0, len(items))
		for _, item := range items {
			if strings.HasPrefix(item.path, dirPath) {
				result = append(result, item)
			}
		}
		return result
	}
}

// WithoutDir excludes a directory and its contents from extraction.
func WithoutDir(path string) ExtractOption {
	return func(items []*Item) []*Item {
		if path == "" || path == "." {
			return nil
		}
		dirPath := strings.TrimSuffix(path, "/") + "/"

		result := make([]*Item, 0, len(items))
		for _, item := range items {
			if !strings.HasPrefix(item.path, dirPath) {
				result = append(result, item)
			}
		}
		return result
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package organizer

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the method archive entries are written with.
// Readers accept every method regardless of the producer's choice.
type Compression string

const (
	// CompressionZstd is the default: the best ratio for object code
	// and module files at acceptable CPU cost.
	CompressionZstd Compression = "zstd"

	// CompressionLZ4 trades ratio for decode speed, for caches on a
	// fast local network.
	CompressionLZ4 Compression = "lz4"

	// CompressionStore writes entries uncompressed.
	CompressionStore Compression = "store"
)

// MethodLZ4 is the zip method ID of LZ4 frame entries. Zip assigns no
// ID to LZ4, so archives using it are only readable by buildcache.
const MethodLZ4 uint16 = 0x4C34

// ParseCompression parses a compression name. The empty name is zstd.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4, CompressionStore:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("unknown archive compression %q (want zstd, lz4 or store)", name)
	}
}

func (c Compression) method() uint16 {
	switch c {
	case CompressionLZ4:
		return MethodLZ4
	case CompressionStore:
		return zip.Store
	default:
		return zstd.ZipMethodWinZip
	}
}

func registerCompressors(writer *zip.Writer) {
	writer.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor(zstd.WithEncoderConcurrency(1)))
	writer.RegisterCompressor(MethodLZ4, func(w io.Writer) (io.WriteCloser, error) {
		compressor := lz4.NewWriter(w)
		if err := compressor.Apply(lz4.ConcurrencyOption(1)); err != nil {
			return nil, fmt.Errorf("configuring lz4: %w", err)
		}
		return compressor, nil
	})
}

func registerDecompressors(reader *zip.ReadCloser) {
	reader.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	reader.RegisterDecompressor(MethodLZ4, func(r io.Reader) io.ReadCloser {
		return io.NopCloser(lz4.NewReader(r))
	})
}

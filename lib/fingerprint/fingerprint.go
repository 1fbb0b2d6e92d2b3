// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/zeebo/blake3"
)

// SchemaVersion is mixed into every environment fingerprint. Changing
// it invalidates every published artifact.
const SchemaVersion = "1"

// ErrMissingFile is returned by AppendFile when the path does not exist.
var ErrMissingFile = errors.New("missing file")

// Raw is a lowercase hex digest over an ordered stream of content.
type Raw string

// Fingerprint binds a raw content digest to one build context.
type Fingerprint struct {
	Raw             Raw
	ContextSpecific Raw
}

// domainKey is a 32-byte BLAKE3 key. The bytes are the ASCII domain
// name, zero padded.
type domainKey [32]byte

func newDomainKey(name string) domainKey {
	var key domainKey
	copy(key[:], name)
	return key
}

var (
	contentDomain     = newDomainKey("buildcache.fingerprint.content")
	contextDomain     = newDomainKey("buildcache.fingerprint.context")
	environmentDomain = newDomainKey("buildcache.fingerprint.env")
	artifactDomain    = newDomainKey("buildcache.artifact.filekey")
)

// Item kinds framing the hashed stream.
const (
	kindString byte = 's'
	kindFile   byte = 'f'
)

func newHasher(key domainKey) *blake3.Hasher {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		// Only a wrong key length fails, which domainKey rules out.
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func format(hasher *blake3.Hasher) Raw {
	return Raw(hex.EncodeToString(hasher.Sum(nil)))
}

// Accumulator hashes an ordered sequence of strings and files.
// The zero value is not usable; call New.
type Accumulator struct {
	key    domainKey
	hasher *blake3.Hasher
}

// New returns an empty content accumulator.
func New() *Accumulator {
	return newAccumulator(contentDomain)
}

func newAccumulator(key domainKey) *Accumulator {
	return &Accumulator{key: key, hasher: newHasher(key)}
}

// Reset discards everything appended so far.
func (a *Accumulator) Reset() {
	a.hasher.Reset()
}

// AppendString appends s to the stream.
func (a *Accumulator) AppendString(s string) {
	a.writeHeader(kindString, uint64(len(s)))
	_, _ = io.WriteString(a.hasher, s)
}

// AppendFile appends the content of the file at path. A path that does
// not exist fails with an error wrapping ErrMissingFile and leaves the
// stream unchanged.
func (a *Accumulator) AppendFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return fmt.Errorf("opening %s for fingerprinting: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stating %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("fingerprinting %s: is a directory", path)
	}

	// The frame header carries the byte count actually read, so the
	// content is digested separately and appended after the header.
	content := newHasher(a.key)
	written, err := io.Copy(content, file)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	a.writeHeader(kindFile, uint64(written))
	_, _ = a.hasher.Write(content.Sum(nil))
	return nil
}

// Generate returns the digest of everything appended so far. It does
// not reset the accumulator.
func (a *Accumulator) Generate() Raw {
	return format(a.hasher)
}

func (a *Accumulator) writeHeader(kind byte, length uint64) {
	var header [9]byte
	header[0] = kind
	binary.LittleEndian.PutUint64(header[1:], length)
	_, _ = a.hasher.Write(header[:])
}

// AppendDependencies appends every path in order. Missing files are
// logged and skipped; any other read failure is returned.
func AppendDependencies(accumulator *Accumulator, paths []string, logger *slog.Logger) error {
	for _, path := range paths {
		err := accumulator.AppendFile(path)
		if errors.Is(err, ErrMissingFile) {
			logger.Warn("dependency missing, fingerprinting without it", "path", path)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ContextAccumulator is an Accumulator whose Generate also produces the
// context-specific digest for a fixed environment fingerprint.
type ContextAccumulator struct {
	*Accumulator
	environment Environment
}

// NewContext returns an empty accumulator bound to environment.
func NewContext(environment Environment) *ContextAccumulator {
	return &ContextAccumulator{Accumulator: New(), environment: environment}
}

// Generate returns the raw digest and hash(raw ++ environment). The
// running digest is not modified.
func (c *ContextAccumulator) Generate() Fingerprint {
	raw := c.Accumulator.Generate()
	return Fingerprint{Raw: raw, ContextSpecific: Combine(raw, c.environment)}
}

// Combine computes the context-specific digest of raw under environment.
func Combine(raw Raw, environment Environment) Raw {
	hasher := newHasher(contextDomain)
	_, _ = io.WriteString(hasher, string(raw))
	_, _ = io.WriteString(hasher, string(environment))
	return format(hasher)
}

// ArtifactKey derives the content-addressed fileKey of an artifact from
// its context-specific fingerprint and the digest of its packaged
// content.
func ArtifactKey(contextSpecific Raw, packaged Raw) string {
	hasher := newHasher(artifactDomain)
	_, _ = io.WriteString(hasher, string(contextSpecific))
	_, _ = io.WriteString(hasher, string(packaged))
	return string(format(hasher))
}

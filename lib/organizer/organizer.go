// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package organizer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

const (
	// ActiveName is the name of the symlink to the active artifact.
	ActiveName = "active"

	// CompleteSentinel marks a fully extracted and processed artifact
	// directory.
	CompleteSentinel = ".complete"

	// ArchiveExtension is the file extension of downloaded archives.
	ArchiveExtension = ".zip"
)

// ErrNoActiveArtifact is returned when no artifact has been activated.
var ErrNoActiveArtifact = errors.New("no active artifact")

// Location is the result of PrepareLocation: either the artifact is
// already available locally or it must be downloaded to an archive
// path first.
type Location interface {
	location()
}

// ArtifactExists means Dir holds a complete artifact.
type ArtifactExists struct {
	Dir string
}

// PreparedForArtifact means the archive should be downloaded to
// Archive and passed to Prepare.
type PreparedForArtifact struct {
	Archive string
}

func (ArtifactExists) location()      {}
func (PreparedForArtifact) location() {}

// Organizer manages the local artifact directories of one target.
type Organizer interface {
	// PrepareLocation reports where the artifact for fileKey is or
	// should be downloaded.
	PrepareLocation(fileKey string) (Location, error)

	// Prepare extracts (or reuses) the artifact of an archive and
	// returns its directory. It accepts the path of a downloaded
	// archive or of an existing artifact directory.
	Prepare(archivePath string) (string, error)

	// Activate makes dir the active artifact.
	Activate(dir string) error

	// ActiveLocation returns the directory of the active artifact.
	ActiveLocation() (string, error)

	// ActiveFileKey returns the fileKey of the active artifact.
	ActiveFileKey() (string, error)
}

// Processor transforms an artifact directory after extraction.
type Processor interface {
	Process(dir string) error
}

// ZipOrganizer is an Organizer for zip archives.
type ZipOrganizer struct {
	root       string
	processors []Processor
	logger     *slog.Logger
}

// NewZipOrganizer returns an organizer rooted at root.
func NewZipOrganizer(root string, logger *slog.Logger, processors ...Processor) *ZipOrganizer {
	return &ZipOrganizer{root: root, processors: processors, logger: logger}
}

// Root returns the cache root directory.
func (o *ZipOrganizer) Root() string {
	return o.root
}

func (o *ZipOrganizer) directory(fileKey string) string {
	return filepath.Join(o.root, fileKey)
}

func isComplete(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, CompleteSentinel))
	return err == nil
}

func validFileKey(fileKey string) error {
	if fileKey == "" || fileKey == "." || fileKey == ".." || fileKey == ActiveName ||
		strings.ContainsAny(fileKey, `/\`) {
		return fmt.Errorf("invalid fileKey %q", fileKey)
	}
	return nil
}

// PrepareLocation implements Organizer.
func (o *ZipOrganizer) PrepareLocation(fileKey string) (Location, error) {
	if err := validFileKey(fileKey); err != nil {
		return nil, err
	}
	dir := o.directory(fileKey)
	if isComplete(dir) {
		return ArtifactExists{Dir: dir}, nil
	}
	if err := os.MkdirAll(o.root, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache root: %w", err)
	}
	return PreparedForArtifact{Archive: dir + ArchiveExtension}, nil
}

// Prepare implements Organizer.
func (o *ZipOrganizer) Prepare(archivePath string) (string, error) {
	fileKey := strings.TrimSuffix(filepath.Base(archivePath), ArchiveExtension)
	if err := validFileKey(fileKey); err != nil {
		return "", err
	}
	dir := o.directory(fileKey)

	if isComplete(dir) {
		o.logger.Debug("reusing extracted artifact", "file_key", fileKey)
		if err := o.process(dir); err != nil {
			return "", err
		}
		return dir, nil
	}

	if _, err := os.Lstat(dir); err == nil {
		o.logger.Warn("removing incomplete artifact directory", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("removing incomplete artifact %s: %w", dir, err)
		}
	}

	staging := dir + ".tmp-" + uuid.NewString()
	success := false
	defer func() {
		if !success {
			os.RemoveAll(staging)
		}
	}()

	if err := Extract(archivePath, staging); err != nil {
		return "", err
	}
	if err := o.process(staging); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(staging, CompleteSentinel), nil, 0o644); err != nil {
		return "", fmt.Errorf("writing completion sentinel: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		// Another process may have finished the same artifact first.
		if isComplete(dir) {
			return dir, nil
		}
		return "", fmt.Errorf("moving artifact into place: %w", err)
	}
	success = true
	return dir, nil
}

func (o *ZipOrganizer) process(dir string) error {
	for _, processor := range o.processors {
		if err := processor.Process(dir); err != nil {
			return fmt.Errorf("processing artifact %s: %w", filepath.Base(dir), err)
		}
	}
	return nil
}

// Activate implements Organizer.
func (o *ZipOrganizer) Activate(dir string) error {
	if filepath.Dir(filepath.Clean(dir)) != filepath.Clean(o.root) {
		return fmt.Errorf("artifact %s is not inside cache root %s", dir, o.root)
	}
	if !isComplete(dir) {
		return fmt.Errorf("artifact %s is incomplete", dir)
	}
	link := filepath.Join(o.root, ActiveName)
	staging := link + ".tmp-" + uuid.NewString()
	if err := os.Symlink(filepath.Base(dir), staging); err != nil {
		return fmt.Errorf("creating active link: %w", err)
	}
	if err := os.Rename(staging, link); err != nil {
		os.Remove(staging)
		return fmt.Errorf("activating artifact: %w", err)
	}
	return nil
}

// ActiveLocation implements Organizer.
func (o *ZipOrganizer) ActiveLocation() (string, error) {
	target, err := os.Readlink(filepath.Join(o.root, ActiveName))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoActiveArtifact
	}
	if err != nil {
		return "", fmt.Errorf("reading active link: %w", err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(o.root, target)
	}
	return target, nil
}

// ActiveFileKey implements Organizer.
func (o *ZipOrganizer) ActiveFileKey() (string, error) {
	location, err := o.ActiveLocation()
	if err != nil {
		return "", err
	}
	return filepath.Base(location), nil
}

// Deactivate removes the active link.
func (o *ZipOrganizer) Deactivate() error {
	err := os.Remove(filepath.Join(o.root, ActiveName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing active link: %w", err)
	}
	return nil
}

// Extract unpacks the zip archive at archivePath into destination,
// which must not exist yet. Entries that would land outside
// destination are rejected.
func Extract(archivePath, destination string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer reader.Close()
	registerDecompressors(reader)

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", destination, err)
	}
	for _, entry := range reader.File {
		if err := extractEntry(entry, destination); err != nil {
			return fmt.Errorf("extracting %s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, destination string) error {
	target, err := safeJoin(destination, entry.Name)
	if err != nil {
		return err
	}
	mode := entry.Mode()
	if mode.IsDir() || strings.HasSuffix(entry.Name, "/") {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	source, err := entry.Open()
	if err != nil {
		return err
	}
	defer source.Close()

	if mode&os.ModeSymlink != 0 {
		linkTarget, err := io.ReadAll(source)
		if err != nil {
			return err
		}
		resolved := filepath.Join(filepath.Dir(target), string(linkTarget))
		if filepath.IsAbs(string(linkTarget)) || !within(destination, resolved) {
			return fmt.Errorf("symlink target %q escapes the artifact", linkTarget)
		}
		return os.Symlink(string(linkTarget), target)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, source); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("absolute entry name %q", name)
	}
	joined := filepath.Join(root, filepath.FromSlash(name))
	if !within(root, joined) {
		return "", fmt.Errorf("entry %q escapes the artifact", name)
	}
	return joined, nil
}

func within(root, path string) bool {
	relative, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator))
}

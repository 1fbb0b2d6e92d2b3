// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package organizer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
)

// archiveTime is the modification time stored for every entry.
var archiveTime = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// PackArchive writes a deterministic archive to out holding entries
// (paths relative to dir; directories are included recursively).
// Entry order, timestamps and compression settings are fixed, so equal
// inputs give byte-identical archives. The zero Compression is zstd.
func PackArchive(dir string, entries []string, out string, compression Compression) error {
	files, err := collect(dir, entries)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	writer := zip.NewWriter(tmpFile)
	registerCompressors(writer)
	method := compression.method()
	for _, relative := range files {
		if err := addEntry(writer, dir, relative, method); err != nil {
			tmpFile.Close()
			return fmt.Errorf("adding %s: %w", relative, err)
		}
	}
	if err := writer.Close(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("finishing archive: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		return fmt.Errorf("renaming archive to %s: %w", out, err)
	}
	success = true
	return nil
}

// collect expands entries into a sorted, de-duplicated list of files
// and symlinks relative to dir.
func collect(dir string, entries []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, entry := range entries {
		root := filepath.Join(dir, entry)
		info, err := os.Lstat(root)
		if err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", entry, err)
		}
		if !info.IsDir() {
			seen[filepath.ToSlash(filepath.Clean(entry))] = true
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			relative, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			seen[filepath.ToSlash(relative)] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", entry, err)
		}
	}
	files := make([]string, 0, len(seen))
	for file := range seen {
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

func addEntry(writer *zip.Writer, dir, relative string, method uint16) error {
	path := filepath.Join(dir, filepath.FromSlash(relative))
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	header := &zip.FileHeader{
		Name:     relative,
		Method:   method,
		Modified: archiveTime,
	}
	if info.Mode()&os.ModeSymlink != 0 {
		header.SetMode(os.ModeSymlink | 0o777)
		header.Method = zip.Store
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		entry, err := writer.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = io.WriteString(entry, target)
		return err
	}

	// Only the executable bit is carried over.
	mode := os.FileMode(0o644)
	if info.Mode().Perm()&0o111 != 0 {
		mode = 0o755
	}
	header.SetMode(mode)
	entry, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(entry, file)
	return err
}

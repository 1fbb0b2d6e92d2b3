// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathremap

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// overlayFile is the clang VFS overlay format. Xcode writes it as JSON,
// which is valid YAML.
type overlayFile struct {
	Version int            `yaml:"version"`
	Roots   []overlayEntry `yaml:"roots"`
}

type overlayEntry struct {
	Type             string         `yaml:"type"`
	Name             string         `yaml:"name"`
	ExternalContents string         `yaml:"external-contents"`
	Contents         []overlayEntry `yaml:"contents"`
}

// Overlay maps virtual header locations from a VFS overlay to the
// generic form of their real location. Virtual files do not exist on
// disk, so Local is the identity: generic paths always resolve to real
// files.
type Overlay struct {
	virtualToReal map[string]string
	inner         *Mapping
}

// LoadOverlay parses the overlay file at path. inner converts the real
// location to its generic form.
func LoadOverlay(path string, inner *Mapping) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overlay %s: %w", path, err)
	}
	return ParseOverlay(data, inner)
}

// ParseOverlay parses overlay content.
func ParseOverlay(data []byte, inner *Mapping) (*Overlay, error) {
	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing overlay: %w", err)
	}
	overlay := &Overlay{virtualToReal: make(map[string]string), inner: inner}
	for _, root := range file.Roots {
		overlay.collect(root, "")
	}
	return overlay, nil
}

func (o *Overlay) collect(entry overlayEntry, parent string) {
	name := entry.Name
	if parent != "" && !filepath.IsAbs(name) {
		name = filepath.Join(parent, name)
	}
	switch entry.Type {
	case "file":
		if entry.ExternalContents != "" {
			o.virtualToReal[name] = entry.ExternalContents
		}
	case "directory":
		for _, child := range entry.Contents {
			o.collect(child, name)
		}
	}
}

// Len returns the number of virtual files in the overlay.
func (o *Overlay) Len() int {
	return len(o.virtualToReal)
}

// Local implements Remapper. Generic paths never name virtual files.
func (o *Overlay) Local(generic []string) ([]string, error) {
	return append([]string(nil), generic...), nil
}

// Generic implements Remapper: a virtual path becomes the generic form
// of its real location; other paths are unchanged.
func (o *Overlay) Generic(local []string) ([]string, error) {
	result := make([]string, len(local))
	for i, path := range local {
		target, ok := o.virtualToReal[path]
		if !ok {
			result[i] = path
			continue
		}
		result[i] = o.inner.GenericString(target)
	}
	return result, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirectoryClient stores cache objects as files under a root directory.
type DirectoryClient struct {
	root string
}

// NewDirectoryClient returns a client rooted at root.
func NewDirectoryClient(root string) (*DirectoryClient, error) {
	if root == "" {
		return nil, fmt.Errorf("netclient: directory root is required")
	}
	return &DirectoryClient{root: root}, nil
}

func (c *DirectoryClient) path(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", &Error{Kind: KindInconsistentSession, Key: key, Err: fmt.Errorf("key escapes cache root")}
	}
	return filepath.Join(c.root, cleaned), nil
}

func (c *DirectoryClient) translate(key string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return notFound(key, err)
	}
	return &Error{Kind: KindOther, Key: key, Err: err}
}

// FileExists implements Client.
func (c *DirectoryClient) FileExists(ctx context.Context, key string) (bool, error) {
	location, err := c.path(key)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, classifyTransport(key, err)
	}
	_, err = os.Stat(location)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, c.translate(key, err)
	}
	return true, nil
}

// Fetch implements Client.
func (c *DirectoryClient) Fetch(ctx context.Context, key string) ([]byte, error) {
	location, err := c.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classifyTransport(key, err)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, c.translate(key, err)
	}
	return data, nil
}

// Download implements Client.
func (c *DirectoryClient) Download(ctx context.Context, key, destination string) error {
	location, err := c.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classifyTransport(key, err)
	}
	file, err := os.Open(location)
	if err != nil {
		return c.translate(key, err)
	}
	defer file.Close()
	return writeStream(key, destination, file)
}

// Upload implements Client.
func (c *DirectoryClient) Upload(ctx context.Context, source, key string) error {
	location, err := c.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classifyTransport(key, err)
	}
	file, err := os.Open(source)
	if err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	defer file.Close()
	return writeStream(key, location, file)
}

// Create implements Client.
func (c *DirectoryClient) Create(ctx context.Context, key string) error {
	location, err := c.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classifyTransport(key, err)
	}
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return c.translate(key, err)
	}
	if err := os.WriteFile(location, nil, 0o644); err != nil {
		return c.translate(key, err)
	}
	return nil
}

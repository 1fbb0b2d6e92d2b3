// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/buildcache/lib/artifactmeta"
	"github.com/bureau-foundation/buildcache/lib/netclient"
)

// Service performs cache operations for one target context.
type Service struct {
	client netclient.Client
	urls   URLBuilder
	logger *slog.Logger
}

// NewService returns a Service using client and urls.
func NewService(client netclient.Client, urls URLBuilder, logger *slog.Logger) *Service {
	return &Service{client: client, urls: urls, logger: logger}
}

// URLs returns the key builder of the service.
func (s *Service) URLs() URLBuilder {
	return s.urls
}

// FetchMeta downloads and decodes the meta of this context for commit.
// A missing meta is reported as a netclient not-found error.
func (s *Service) FetchMeta(ctx context.Context, commit string) (*artifactmeta.Meta, error) {
	key := s.urls.MetaKey(commit)
	data, err := s.client.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching meta: %w", err)
	}
	meta, err := artifactmeta.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("meta %s: %w", key, err)
	}
	return meta, nil
}

// DownloadArtifact downloads the archive for fileKey to destination.
func (s *Service) DownloadArtifact(ctx context.Context, fileKey, destination string) error {
	if err := s.client.Download(ctx, s.urls.ArtifactKey(fileKey), destination); err != nil {
		return fmt.Errorf("downloading artifact: %w", err)
	}
	return nil
}

// UploadArtifact uploads the archive at source unless an archive with
// the same fileKey already exists. It reports whether an upload
// happened.
func (s *Service) UploadArtifact(ctx context.Context, fileKey, source string) (bool, error) {
	key := s.urls.ArtifactKey(fileKey)
	exists, err := s.client.FileExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("checking artifact: %w", err)
	}
	if exists {
		s.logger.Debug("artifact already published", "file_key", fileKey)
		return false, nil
	}
	if err := s.client.Upload(ctx, source, key); err != nil {
		return false, fmt.Errorf("uploading artifact: %w", err)
	}
	return true, nil
}

// UploadMeta publishes meta as this context's meta for commit.
func (s *Service) UploadMeta(ctx context.Context, commit string, meta *artifactmeta.Meta) error {
	staging, err := os.MkdirTemp("", "buildcache-meta-")
	if err != nil {
		return fmt.Errorf("creating meta staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	location, err := artifactmeta.Write(meta, staging)
	if err != nil {
		return err
	}
	if err := s.client.Upload(ctx, location, s.urls.MetaKey(commit)); err != nil {
		return fmt.Errorf("uploading meta: %w", err)
	}
	return nil
}

// CreateMarker publishes the commit marker.
func (s *Service) CreateMarker(ctx context.Context, commit string) error {
	if err := s.client.Create(ctx, s.urls.MarkerKey(commit)); err != nil {
		return fmt.Errorf("creating commit marker: %w", err)
	}
	return nil
}

// MarkerExists reports whether commit has been fully published.
func (s *Service) MarkerExists(ctx context.Context, commit string) (bool, error) {
	exists, err := s.client.FileExists(ctx, s.urls.MarkerKey(commit))
	if err != nil {
		return false, fmt.Errorf("checking commit marker: %w", err)
	}
	return exists, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreOptions configures an ObjectStoreClient.
type ObjectStoreOptions struct {
	// Endpoint is the host[:port] of the S3-compatible service.
	Endpoint string

	Region string

	// AccessKey and SecretKey are static credentials. When both are
	// empty, credentials are read from the standard AWS environment
	// variables.
	AccessKey string
	SecretKey string

	// Insecure disables TLS.
	Insecure bool

	Bucket string

	// Prefix is prepended to every key.
	Prefix string

	Timeout time.Duration

	// Client overrides the minio client, for tests.
	Client *minio.Client
}

// ObjectStoreClient stores cache objects in an S3-compatible bucket.
type ObjectStoreClient struct {
	client  *minio.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewObjectStoreClient returns a client for options.
func NewObjectStoreClient(options ObjectStoreOptions) (*ObjectStoreClient, error) {
	if options.Bucket == "" {
		return nil, fmt.Errorf("netclient: object store bucket is required")
	}
	client := options.Client
	if client == nil {
		if options.Endpoint == "" {
			return nil, fmt.Errorf("netclient: object store endpoint is required")
		}
		var creds *credentials.Credentials
		if options.AccessKey != "" || options.SecretKey != "" {
			creds = credentials.NewStaticV4(options.AccessKey, options.SecretKey, "")
		} else {
			creds = credentials.NewEnvAWS()
		}
		var err error
		client, err = minio.New(options.Endpoint, &minio.Options{
			Creds:  creds,
			Secure: !options.Insecure,
			Region: options.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("netclient: creating object store client: %w", err)
		}
	}
	return &ObjectStoreClient{
		client:  client,
		bucket:  options.Bucket,
		prefix:  strings.Trim(options.Prefix, "/"),
		timeout: options.Timeout,
	}, nil
}

func (c *ObjectStoreClient) object(key string) string {
	key = strings.TrimPrefix(key, "/")
	if c.prefix == "" {
		return key
	}
	return path.Join(c.prefix, key)
}

// translate maps a minio error to an *Error.
func (c *ObjectStoreClient) translate(key string, err error) error {
	if err == nil {
		return nil
	}
	response := minio.ToErrorResponse(err)
	switch {
	case response.Code == "NoSuchKey" || response.Code == "NoSuchBucket":
		return notFound(key, err)
	case response.StatusCode != 0:
		return &Error{Kind: KindUnsuccessful, Status: response.StatusCode, Key: key, Err: err}
	default:
		return classifyTransport(key, err)
	}
}

// FileExists implements Client.
func (c *ObjectStoreClient) FileExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.client.StatObject(ctx, c.bucket, c.object(key), minio.StatObjectOptions{})
	err = c.translate(key, err)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Fetch implements Client.
func (c *ObjectStoreClient) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	object, err := c.client.GetObject(ctx, c.bucket, c.object(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, c.translate(key, err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, c.translate(key, err)
	}
	return data, nil
}

// Download implements Client.
func (c *ObjectStoreClient) Download(ctx context.Context, key, destination string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	object, err := c.client.GetObject(ctx, c.bucket, c.object(key), minio.GetObjectOptions{})
	if err != nil {
		return c.translate(key, err)
	}
	defer object.Close()
	// GetObject is lazy: errors such as a missing key surface on the
	// first read.
	if _, err := object.Stat(); err != nil {
		return c.translate(key, err)
	}
	if err := writeStream(key, destination, object); err != nil {
		var clientError *Error
		if errors.As(err, &clientError) && clientError.Kind != KindOther {
			return c.translate(key, clientError.Err)
		}
		return err
	}
	return nil
}

// Upload implements Client.
func (c *ObjectStoreClient) Upload(ctx context.Context, source, key string) error {
	file, err := os.Open(source)
	if err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	_, err = c.client.PutObject(ctx, c.bucket, c.object(key), file, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return c.translate(key, err)
}

// Create implements Client.
func (c *ObjectStoreClient) Create(ctx context.Context, key string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.client.PutObject(ctx, c.bucket, c.object(key), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	return c.translate(key, err)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	// BaseURL is the cache address. Keys are appended to it.
	BaseURL string

	// Timeout bounds each request including the body transfer.
	Timeout time.Duration

	// HTTPClient overrides the transport, for tests. When nil a new
	// client is used.
	HTTPClient *http.Client
}

// HTTPClient talks to a cache server with plain HEAD, GET and PUT
// requests.
type HTTPClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPClient returns an HTTPClient for config.
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("netclient: HTTP base URL is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		httpClient: httpClient,
	}, nil
}

func (c *HTTPClient) url(key string) string {
	return c.baseURL + "/" + strings.TrimPrefix(key, "/")
}

// do sends one request and returns the response for a 2xx status. The
// caller closes the body and the returned cancel function.
func (c *HTTPClient) do(ctx context.Context, method, key string, body io.Reader, length int64) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	request, err := http.NewRequestWithContext(ctx, method, c.url(key), body)
	if err != nil {
		cancel()
		return nil, nil, &Error{Kind: KindInconsistentSession, Key: key, Err: err}
	}
	if body != nil {
		request.ContentLength = length
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		cancel()
		return nil, nil, classifyTransport(key, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		response.Body.Close()
		cancel()
		return nil, nil, &Error{Kind: KindUnsuccessful, Status: response.StatusCode, Key: key}
	}
	return response, cancel, nil
}

// FileExists implements Client.
func (c *HTTPClient) FileExists(ctx context.Context, key string) (bool, error) {
	response, cancel, err := c.do(ctx, http.MethodHead, key, nil, 0)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	response.Body.Close()
	cancel()
	return true, nil
}

// Fetch implements Client.
func (c *HTTPClient) Fetch(ctx context.Context, key string) ([]byte, error) {
	response, cancel, err := c.do(ctx, http.MethodGet, key, nil, 0)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer response.Body.Close()
	if response.Body == nil || response.Body == http.NoBody {
		return nil, &Error{Kind: KindMissingBody, Key: key}
	}
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, classifyTransport(key, err)
	}
	return data, nil
}

// Download implements Client.
func (c *HTTPClient) Download(ctx context.Context, key, destination string) error {
	response, cancel, err := c.do(ctx, http.MethodGet, key, nil, 0)
	if err != nil {
		return err
	}
	defer cancel()
	defer response.Body.Close()
	return writeStream(key, destination, response.Body)
}

// Upload implements Client.
func (c *HTTPClient) Upload(ctx context.Context, source, key string) error {
	file, err := os.Open(source)
	if err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return &Error{Kind: KindOther, Key: key, Err: err}
	}
	response, cancel, err := c.do(ctx, http.MethodPut, key, file, info.Size())
	if err != nil {
		return err
	}
	response.Body.Close()
	cancel()
	return nil
}

// Create implements Client.
func (c *HTTPClient) Create(ctx context.Context, key string) error {
	response, cancel, err := c.do(ctx, http.MethodPut, key, bytes.NewReader(nil), 0)
	if err != nil {
		return err
	}
	response.Body.Close()
	cancel()
	return nil
}

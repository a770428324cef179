// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// defaultHTTPClient is used by the commands that query a running dev
// webview. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// devClient provides HTTP access to a running dev webview.
type devClient struct {
	baseURL string
	http    *http.Client
}

func newDevClient(addr string) *devClient {
	return &devClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// A refused connection is reported as CodeCLIServerDown.
func (c *devClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return cwerr.Wrap(err, cwerr.CodeCLIServerDown, "dev webview is not running")
		}
		return cwerr.Errorf(cwerr.CodeCLISetupFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return cwerr.Errorf(cwerr.CodeCLISetupFailure, "dev webview returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return cwerr.Errorf(cwerr.CodeCLISetupFailure, "invalid response: %w", err)
	}
	return nil
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

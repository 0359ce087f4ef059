package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	graftsqlerrors "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// APIError represents an error response from the gateway's HTTP API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Client is a gateway lease HTTP client for one repository.
type Client struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client
}

// New creates a gateway client talking to baseURL, authenticating with the
// given key id and secret.
func New(baseURL, keyID, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		keyID:   keyID,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do performs an HTTP request against the gateway and decodes the response
// body into result. It returns the raw response body alongside any error so
// that callers that need to special-case a status text (the 405 "Method Not
// Allowed" refresh fallback) can inspect it even on failure.
func (c *Client) do(ctx context.Context, method, path string, body, result any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, graftsqlerrors.Wrap(graftsqlerrors.InputInvalid, err, "failed to marshal gateway request body")
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "failed to build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "gateway request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "failed to read gateway response")
	}

	if resp.StatusCode >= 400 {
		return respBody, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return respBody, graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "failed to decode gateway response")
		}
	}

	return respBody, nil
}

func leasePathURL(repo, leasePath string) string {
	return "/leases/" + url.PathEscape(repo) + "/" + strings.TrimPrefix(leasePath, "/")
}

func sessionURL(token string) string {
	return "/leases/" + url.PathEscape(token)
}

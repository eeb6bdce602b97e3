// Package wsclient implements the HTTP client for the remote web-service
// endpoint. Every remote operation is a named function invoked through Call;
// failures are classified into the NetworkError / RemoteServiceError taxonomy
// so callers can decide offline-fallback eligibility.
package wsclient

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

	"github.com/edupath/coursesync/pkg/api"
)

//go:generate moq -out client_mock.go . Caller

// Caller invokes one named web-service function. params is marshaled as the
// JSON request body; a non-nil result receives the decoded response.
type Caller interface {
	Call(ctx context.Context, wsfunction string, params, result any) error
}

// Client is the HTTP implementation of Caller for one site.
type Client struct {
	httpClient *http.Client
	serverURL  string
	token      string
}

// Compile-time check that Client implements Caller
var _ Caller = (*Client)(nil)

// New creates a web-service client for the given site URL and access token.
func New(serverURL, token string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Keep the token header across redirects
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Call invokes wsfunction with the given params. Transport failures come back
// as *NetworkError; an exception envelope in the response (regardless of HTTP
// status) comes back as *RemoteServiceError.
func (c *Client) Call(ctx context.Context, wsfunction string, params, result any) error {
	endpoint := fmt.Sprintf("%s/ws/server.php?wsfunction=%s", c.serverURL, url.QueryEscape(wsfunction))

	var bodyReader io.Reader
	if params != nil {
		jsonData, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params for %s: %w", wsfunction, err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", wsfunction, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: wsfunction, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: wsfunction, Err: err}
	}

	// The endpoint reports function-level failures through an exception
	// envelope, sometimes under HTTP 200. Probe for it before decoding.
	var exc api.Exception
	if jsonErr := json.Unmarshal(respBody, &exc); jsonErr == nil && (exc.Exception != "" || exc.ErrorCode != "") {
		return &RemoteServiceError{
			Function:  wsfunction,
			Exception: exc.Exception,
			Code:      exc.ErrorCode,
			Message:   exc.Message,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteServiceError{
			Function: wsfunction,
			Code:     fmt.Sprintf("http%d", resp.StatusCode),
			Message:  strings.TrimSpace(string(respBody)),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", wsfunction, err)
		}
	}

	return nil
}

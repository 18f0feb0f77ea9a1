package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Headers the API reads
const (
	identityHeader      = "X-Client-Identity"
	adminPasswordHeader = "X-Admin-Password"
)

// Client is an HTTP client for the API
type Client struct {
	baseURL       string
	identity      string
	adminPassword string
	httpClient    *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, identity, adminPassword string) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		identity:      identity,
		adminPassword: adminPassword,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetIdentity updates the client's identity
func (c *Client) SetIdentity(identity string) {
	c.identity = identity
}

// SetAdminPassword updates the operator password sent with requests
func (c *Client) SetAdminPassword(password string) {
	c.adminPassword = password
}

// APIError represents an error response from the API
type APIError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Number    string   `json:"number,omitempty"`
	Confirmed []string `json:"confirmed,omitempty"`
	Rejected  []string `json:"rejected,omitempty"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) String() string {
	msg := fmt.Sprintf("%s (%s)", e.Message, e.Code)
	if len(e.Confirmed) > 0 {
		msg += "\nConfirmed anyway: " + strings.Join(e.Confirmed, ", ")
	}
	return msg
}

// Error lets an APIError be returned as an error
func (e *APIError) Error() string {
	return e.String()
}

// Do performs an HTTP request
func (c *Client) Do(method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.identity != "" {
		req.Header.Set(identityHeader, c.identity)
	}
	if c.adminPassword != "" {
		req.Header.Set(adminPasswordHeader, c.adminPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return &errResp.Error
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Get performs a GET request
func (c *Client) Get(path string, result any) error {
	return c.Do(http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(path string, body, result any) error {
	return c.Do(http.MethodPost, path, body, result)
}

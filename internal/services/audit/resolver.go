// Package audit resolves the public network address recorded with each
// confirmed reservation. Resolution is best effort.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultLookupURL returns the caller's public address as {"ip": "..."}
const DefaultLookupURL = "https://api.ipify.org?format=json"

// ErrNoAddress is returned when no public address could be determined
var ErrNoAddress = errors.New("no public address available")

type contextKey struct{}

// WithClientAddress stores the address a request came from
func WithClientAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, contextKey{}, address)
}

// ClientAddress returns the address stored by WithClientAddress
func ClientAddress(ctx context.Context) string {
	address, _ := ctx.Value(contextKey{}).(string)
	return address
}

// Resolver prefers the public address the request came from. When that is
// missing or private (a client on the same host or LAN) it asks the lookup
// service, whose answer is then the shared public address.
type Resolver struct {
	lookupURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewResolver creates a Resolver. An empty lookupURL disables the lookup.
func NewResolver(lookupURL string, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		lookupURL: strings.TrimSpace(lookupURL),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(slog.String("component", "address-resolver")),
	}
}

// Resolve returns the client's public address
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if address := ClientAddress(ctx); isPublic(address) {
		return address, nil
	}
	if r.lookupURL == "" {
		return "", ErrNoAddress
	}
	return r.lookup(ctx)
}

type lookupResponse struct {
	IP string `json:"ip"`
}

func (r *Resolver) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.lookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("address lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("address lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode lookup response: %w", err)
	}

	ip := net.ParseIP(strings.TrimSpace(body.IP))
	if ip == nil {
		return "", ErrNoAddress
	}
	r.logger.Debug("resolved public address via lookup", slog.String("address", ip.String()))
	return ip.String(), nil
}

func isPublic(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}
	return ip.IsGlobalUnicast() && !ip.IsPrivate()
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package remote is the shared HTTP client used by every REST collaborator
// in §6.3 (identity directory, profile service, reference
// service): a fixed-timeout client wrapped in a circuit breaker so a
// degraded collaborator fails fast instead of blocking the caller's queue
// consumer, per the RemoteUnavailable policy in §7.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Client performs JSON GETs against one base URL, gated by a circuit
// breaker keyed on the collaborator's name.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
}

// New builds a Client for a single collaborator.
func New(name, baseURL string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// ErrUnavailable wraps any error the circuit breaker or transport raised,
// so callers can apply the RemoteUnavailable fallback policy without
// inspecting gobreaker internals.
type ErrUnavailable struct {
	Collaborator string
	Err          error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// GetJSON performs a GET against baseURL+path and decodes a 2xx JSON body
// into out. A non-2xx status or transport error counts as a breaker
// failure and is wrapped in ErrUnavailable.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errNotFound
		}
		if resp.StatusCode/100 != 2 {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	if err == errNotFound {
		return errNotFound
	}
	if err != nil {
		return &ErrUnavailable{Collaborator: c.breaker.Name(), Err: err}
	}
	return nil
}

var errNotFound = fmt.Errorf("remote resource not found")

// IsNotFound reports whether err is the sentinel returned for a 404, which
// callers treat as "zero results" rather than RemoteUnavailable.
func IsNotFound(err error) bool {
	return err == errNotFound
}

// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mq is the client for the IBM MQ administrative REST API. It
// covers the three operations the assistant needs: listing queue managers,
// reporting installation details, and dispatching MQSC commands to a named
// queue manager on a specific host.
package mq

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/queueworks/mqassist/services/llm"
)

// csrfToken is the CSRF header value accepted by the IBM MQ REST API.
// Any non-empty value works; the header just has to be present.
const csrfToken = "token"

const (
	requestTimeout = 30 * time.Second
	probeTimeout   = 5 * time.Second
)

// Config holds the connection settings for the MQ administrative REST API.
type Config struct {
	// BaseURL is the admin API root, e.g.
	// "https://localhost:9443/ibmmq/rest/v2/admin/". The "localhost"
	// placeholder is swapped for the target hostname per command.
	BaseURL string

	// Username and Password are the basic-auth credentials.
	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification. The MQ
	// appliances in lower environments run self-signed certificates.
	InsecureSkipVerify bool
}

// LoadConfig reads the MQ connection settings from the environment.
//
// Description:
//
//	Reads MQ_URL_BASE, MQ_USER_NAME, and MQ_PASSWORD. BaseURL is
//	normalized to end with a trailing slash.
//
// Outputs:
//   - Config: The populated configuration.
//   - error: Non-nil if MQ_URL_BASE or MQ_USER_NAME is unset.
func LoadConfig() (Config, error) {
	cfg := Config{
		BaseURL:            os.Getenv("MQ_URL_BASE"),
		Username:           os.Getenv("MQ_USER_NAME"),
		Password:           os.Getenv("MQ_PASSWORD"),
		InsecureSkipVerify: true,
	}
	if cfg.BaseURL == "" || cfg.Username == "" {
		return Config{}, fmt.Errorf("mq: MQ_URL_BASE or MQ_USER_NAME is not set")
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	return cfg, nil
}

// Manager is one queue manager row from the qmgr listing.
type Manager struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Installation is one installation row from the installation listing.
type Installation struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Architecture     string `json:"architecture"`
	InstallationPath string `json:"installationPath"`
}

// CommandResponse is the parsed result of an MQSC dispatch.
type CommandResponse struct {
	OverallCompletionCode int             `json:"overallCompletionCode"`
	CommandResponse       []CommandRecord `json:"commandResponse"`
}

// CommandRecord is one per-object record in a command response.
type CommandRecord struct {
	CompletionCode int      `json:"completionCode"`
	ReasonCode     int      `json:"reasonCode"`
	Text           []string `json:"text"`
}

// Client talks to the IBM MQ administrative REST API over basic auth.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a Client from an explicit configuration.
func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
}

// NewClientFromEnv creates a Client from environment variables.
func NewClientFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	slog.Debug("Initializing MQ admin client", "base_url", cfg.BaseURL, "user", cfg.Username)
	return NewClient(cfg), nil
}

// ListManagers returns the queue managers known to the default host.
//
// Description:
//
//	Calls GET {base}qmgr/ and parses the qmgr array. This is the REST
//	equivalent of the dspmq command.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//
// Outputs:
//   - []Manager: Name and state per queue manager.
//   - error: Non-nil on transport or decode failure.
func (c *Client) ListManagers(ctx context.Context) ([]Manager, error) {
	body, err := c.get(ctx, c.baseURL+"qmgr/")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Qmgr []Manager `json:"qmgr"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("mq: parsing qmgr listing: %w", err)
	}
	return payload.Qmgr, nil
}

// Installations returns version and installation details for the default host.
//
// Description:
//
//	Calls GET {base}installation and parses the installation array. This
//	is the REST equivalent of the dspmqver command.
func (c *Client) Installations(ctx context.Context) ([]Installation, error) {
	body, err := c.get(ctx, c.baseURL+"installation")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Installation []Installation `json:"installation"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("mq: parsing installation listing: %w", err)
	}
	return payload.Installation, nil
}

// RunCommand dispatches one MQSC command to a queue manager.
//
// Description:
//
//	Calls POST {base}action/qmgr/{qmgr}/mqsc with a runCommand body. When
//	hostname is non-empty, the "localhost" placeholder in the base URL is
//	replaced with it so the command lands on the right host. Callers are
//	responsible for checking the hostname against the security gate
//	before invoking this method.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - qmgr: Target queue manager name.
//   - command: The MQSC command text.
//   - hostname: Host carrying the queue manager; empty means the default
//     host in the base URL.
//
// Outputs:
//   - *CommandResponse: Parsed per-object records.
//   - error: Non-nil on transport, HTTP, or decode failure.
func (c *Client) RunCommand(ctx context.Context, qmgr, command, hostname string) (*CommandResponse, error) {
	base := c.baseURL
	if hostname != "" {
		base = strings.Replace(base, "localhost", hostname, 1)
	}
	endpoint := base + "action/qmgr/" + url.PathEscape(qmgr) + "/mqsc"

	reqBody, err := json.Marshal(map[string]interface{}{
		"type":       "runCommand",
		"parameters": map[string]string{"command": command},
	})
	if err != nil {
		return nil, fmt.Errorf("mq: marshaling command body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("mq: creating HTTP request: %w", err)
	}
	c.setHeaders(req)

	slog.Debug("Dispatching MQSC command",
		slog.String("qmgr", qmgr),
		slog.String("hostname", hostname),
		slog.String("command", command),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mq: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mq: reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mq: API returned status %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}

	var parsed CommandResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("mq: parsing command response: %w", err)
	}
	return &parsed, nil
}

// VerifyConnectivity probes the admin API with a short timeout.
//
// Description:
//
//	Calls GET {base}installation with a 5 second deadline. Used at
//	startup so a misconfigured base URL or bad credentials surface
//	before the first user request.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"installation", nil)
	if err != nil {
		return fmt.Errorf("mq: creating probe request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mq: REST API unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mq: REST API returned status %d, check credentials", resp.StatusCode)
	}
	slog.Info("MQ REST API is responsive")
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mq: creating HTTP request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mq: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mq: reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mq: API returned status %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ibm-mq-rest-csrf-token", csrfToken)
}

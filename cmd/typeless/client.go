package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
)

// client talks to a running typeless server. TYPELESS_URL overrides the
// address derived from the config.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(cfg *config.RuntimeConfig) *client {
	bind := cfg.Bind
	if bind == "" || bind == "0.0.0.0" {
		bind = "127.0.0.1"
	}
	base := fmt.Sprintf("http://%s:%s", bind, cfg.Port)
	if envURL := os.Getenv("TYPELESS_URL"); envURL != "" {
		base = strings.TrimRight(envURL, "/")
	}
	return &client{base: base, token: cfg.Token, http: &http.Client{Timeout: 60 * time.Second}}
}

// statusError is a non-2xx server reply.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	var payload struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		if payload.Code != "" && payload.Code != "error" {
			return fmt.Sprintf("server returned %d (%s): %s", e.Status, payload.Code, payload.Error)
		}
		return fmt.Sprintf("server returned %d: %s", e.Status, payload.Error)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (c *client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil)
}

func (c *client) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
}

func (c *client) do(ctx context.Context, method, u string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed (is typeless serve running?): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// printJSON pretty-prints body when it is JSON.
func printJSON(w io.Writer, body []byte) {
	var buf bytes.Buffer
	if json.Indent(&buf, body, "", "  ") == nil {
		fmt.Fprintln(w, buf.String())
	} else {
		fmt.Fprintln(w, string(body))
	}
}

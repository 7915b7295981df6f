// Package leadstore provides the typed façade over the external document
// store's /items/<collection> REST surface. All reads and writes used by the
// intake bridge, the missed-lead aggregator and the contact/newsletter sync
// go through this client.
package leadstore

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

	"crm_intake_backend/platform/config"
)

// Client talks to the document store. It carries a static bearer credential;
// constructing a client without one is a configuration error.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	collections Collections
}

// Collections holds the (deployment-overridable) collection names.
type Collections struct {
	Leads         string
	Contacts      string
	Subscriptions string
	IdentityMap   string
}

// NewClient creates a store client from configuration.
func NewClient(cfg config.LeadStoreConfig) (*Client, error) {
	baseURL := strings.TrimRight(cfg.GetLeadStoreBaseURL(), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("lead store base URL is required")
	}
	if cfg.GetLeadStoreToken() == "" {
		return nil, fmt.Errorf("lead store token is required")
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		token:      cfg.GetLeadStoreToken(),
		collections: Collections{
			Leads:         cfg.GetLeadsCollection(),
			Contacts:      cfg.GetContactsCollection(),
			Subscriptions: cfg.GetSubscriptionsCollection(),
			IdentityMap:   cfg.GetIdentityMapCollection(),
		},
	}, nil
}

// Collections returns the configured collection names.
func (c *Client) Collections() Collections {
	return c.collections
}

// Items returns an untyped sub-client scoped to one collection. Used by the
// sync module for contacts, newsletter subscriptions and the identity map.
func (c *Client) Items(collection string) *Items {
	return &Items{client: c, collection: collection}
}

// Items is an untyped collection-scoped client.
type Items struct {
	client     *Client
	collection string
}

// Record is an untyped store record.
type Record map[string]any

// Find returns records matching the query parameters.
func (it *Items) Find(ctx context.Context, query url.Values) ([]Record, error) {
	var out []Record
	path := "/items/" + url.PathEscape(it.collection)
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if err := it.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a record and returns the stored echo.
func (it *Items) Create(ctx context.Context, payload map[string]any) (Record, error) {
	var out Record
	path := "/items/" + url.PathEscape(it.collection)
	if err := it.client.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Patch applies a partial update to one record.
func (it *Items) Patch(ctx context.Context, id string, payload map[string]any) (Record, error) {
	var out Record
	path := "/items/" + url.PathEscape(it.collection) + "/" + url.PathEscape(id)
	if err := it.client.do(ctx, http.MethodPatch, path, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one record.
func (it *Items) Delete(ctx context.Context, id string) error {
	path := "/items/" + url.PathEscape(it.collection) + "/" + url.PathEscape(id)
	return it.client.do(ctx, http.MethodDelete, path, nil, nil)
}

// envelope is the store's standard response wrapper.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []remoteError   `json:"errors"`
}

type remoteError struct {
	Message string `json:"message"`
}

// do performs one request. Non-2xx responses surface as an error carrying
// the remote-reported message; there is no retry and no 4xx/5xx distinction
// at this layer.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lead store request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lead store: %s (status %d)", remoteMessage(raw), resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func remoteMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Errors) > 0 && env.Errors[0].Message != "" {
		return env.Errors[0].Message
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "request failed"
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

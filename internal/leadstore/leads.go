package leadstore

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// FetchLatestIncomingLead returns the most recently created incoming lead,
// or nil when there is none.
func (c *Client) FetchLatestIncomingLead(ctx context.Context) (*Lead, error) {
	query := url.Values{}
	query.Set("filter[status][_eq]", string(StatusIncoming))
	query.Set("sort", "-date_created")
	query.Set("limit", "1")

	leads, err := c.findLeads(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// FetchIncomingLeads returns incoming leads, newest first.
func (c *Client) FetchIncomingLeads(ctx context.Context, limit int) ([]Lead, error) {
	query := url.Values{}
	query.Set("filter[status][_eq]", string(StatusIncoming))
	query.Set("sort", "-date_created")
	setLimit(query, limit)
	return c.findLeads(ctx, query)
}

// FetchMissedLeads returns missed leads, most recently active first.
func (c *Client) FetchMissedLeads(ctx context.Context, limit int) ([]Lead, error) {
	query := url.Values{}
	query.Set("filter[status][_eq]", string(StatusMissed))
	query.Set("sort", "-last_attempt_at,-date_created")
	setLimit(query, limit)
	return c.findLeads(ctx, query)
}

// FindMissedByDedupeKey returns the most recently active missed lead for the
// given dedupe key, or nil when none exists.
func (c *Client) FindMissedByDedupeKey(ctx context.Context, key string) (*Lead, error) {
	query := url.Values{}
	query.Set("filter[status][_eq]", string(StatusMissed))
	query.Set("filter[dedupe_key][_eq]", key)
	query.Set("sort", "-last_attempt_at,-date_created")
	query.Set("limit", "1")

	leads, err := c.findLeads(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// GetLead fetches one lead by id.
func (c *Client) GetLead(ctx context.Context, id string) (Lead, error) {
	var lead Lead
	err := c.do(ctx, http.MethodGet, c.leadPath(id), nil, &lead)
	return lead, err
}

// CreateLead inserts a new lead and returns the stored record.
func (c *Client) CreateLead(ctx context.Context, fields Fields) (Lead, error) {
	var lead Lead
	err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(c.collections.Leads), map[string]any(fields), &lead)
	return lead, err
}

// PatchLead applies a partial update to one lead.
func (c *Client) PatchLead(ctx context.Context, id string, fields Fields) (Lead, error) {
	var lead Lead
	err := c.do(ctx, http.MethodPatch, c.leadPath(id), map[string]any(fields), &lead)
	return lead, err
}

// DeleteLead removes one lead.
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.leadPath(id), nil, nil)
}

func (c *Client) findLeads(ctx context.Context, query url.Values) ([]Lead, error) {
	var leads []Lead
	path := "/items/" + url.PathEscape(c.collections.Leads) + "?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

func (c *Client) leadPath(id string) string {
	return "/items/" + url.PathEscape(c.collections.Leads) + "/" + url.PathEscape(id)
}

func setLimit(query url.Values, limit int) {
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
}

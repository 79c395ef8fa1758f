package apiclient

import (
	"context"
	"net/url"
)

// Nearby returns the businesses around the authenticated user. The endpoint
// wraps its result in a success flag rather than an HTTP status, so a false
// flag is surfaced as an error carrying the backend's message.
func (c *Client) Nearby(ctx context.Context) ([]map[string]any, error) {
	var payload struct {
		Success    bool             `json:"success"`
		Message    string           `json:"message"`
		Businesses []map[string]any `json:"businesses"`
	}
	if err := c.getJSON(ctx, pathNearby, &payload); err != nil {
		return nil, err
	}

	if !payload.Success {
		msg := payload.Message
		if msg == "" {
			msg = MsgServer
		}
		return nil, &Error{Message: payload.Message, UserMessage: msg}
	}

	return payload.Businesses, nil
}

// BusinessByID fetches one business record. The record arrives either under
// a data wrapper or as the payload itself.
func (c *Client) BusinessByID(ctx context.Context, id string) (map[string]any, error) {
	var payload map[string]any
	if err := c.getJSON(ctx, pathBusiness+url.PathEscape(id), &payload); err != nil {
		return nil, err
	}

	if record, ok := payload["data"].(map[string]any); ok {
		return record, nil
	}
	return payload, nil
}

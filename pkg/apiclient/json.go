package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const contentTypeJSON = "application/json"

// decodeJSON reads a response and decodes its body into target. Non-2xx
// responses become a typed *Error carrying the backend's message. A nil
// target discards the body.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Err: err, UserMessage: MsgNetwork}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errorFromResponse(resp.StatusCode, body)
	}

	if target == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, target)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := c.do(ctx, http.MethodPost, path, body, contentTypeJSON)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target)
}

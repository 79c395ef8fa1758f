package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

// FetchProfile returns the authenticated user's profile. A response that
// carries nothing recognizable as a profile yields (nil, nil); deciding what
// to do about that is the caller's business.
func (c *Client) FetchProfile(ctx context.Context) (map[string]any, error) {
	var payload map[string]any
	if err := c.getJSON(ctx, pathProfile, &payload); err != nil {
		return nil, err
	}

	return ProfileFromPayload(payload, c.profileKeys), nil
}

// FormFile is a file attached to a multipart profile update.
type FormFile struct {
	Name    string
	Content []byte
}

// UpdateProfile sends a multipart form to the profile update endpoint:
// scalar fields plus optional files keyed by form field name (e.g. an
// avatar image). The multipart content type, boundary included, is passed
// through untouched.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string, files map[string]FormFile) (map[string]any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("apiclient: write form field %q: %w", name, err)
		}
	}
	for field, file := range files {
		fw, err := w.CreateFormFile(field, file.Name)
		if err != nil {
			return nil, fmt.Errorf("apiclient: create form file %q: %w", field, err)
		}
		if _, err := fw.Write(file.Content); err != nil {
			return nil, fmt.Errorf("apiclient: write form file %q: %w", field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("apiclient: finalize form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathUpdateUser, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := decodeJSON(resp, &payload); err != nil {
		return nil, err
	}

	return ProfileFromPayload(payload, c.profileKeys), nil
}

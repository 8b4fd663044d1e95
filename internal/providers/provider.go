// Package providers holds the HTTP plumbing shared by the model adapters
// under internal/providers: the embedding oracle, the object detector and
// the image generation backend. The adapters themselves satisfy the narrow
// interfaces declared by their consumers.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mwiater/trigbench/internal/logging"
)

// DefaultTimeout applies when an adapter is built without a timeout.
const DefaultTimeout = 600 * time.Second

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed: %s: %s", e.URL, e.Status, e.Body)
}

// JoinURL joins a base URL and a path with exactly one slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// PostJSON sends in as JSON to url and decodes the response into out. out
// may be nil when the body is not needed.
func PostJSON(ctx context.Context, client *http.Client, url, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	logging.LogRequest("out", url, "", op, body)
	return Do(client, req, op, out)
}

// GetJSON fetches url and decodes the response into out.
func GetJSON(ctx context.Context, client *http.Client, url, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	return Do(client, req, op, out)
}

// Do executes req and decodes a JSON response into out.
func Do(client *http.Client, req *http.Request, op string, out any) error {
	raw, err := DoRaw(client, req, op)
	if err != nil {
		return err
	}
	logging.LogRequest("in", req.URL.String(), "", op, raw)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	return nil
}

// DoRaw executes req and returns the response body.
func DoRaw(client *http.Client, req *http.Request, op string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			URL:    req.URL.String(),
			Status: resp.Status,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}
	return raw, nil
}

// DetectImageMIME sniffs the image type from its content, defaulting to
// JPEG for anything that is not recognisably an image.
func DetectImageMIME(image []byte) string {
	m := mimetype.Detect(image)
	if m == nil || !strings.HasPrefix(m.String(), "image/") {
		return "image/jpeg"
	}
	return m.String()
}

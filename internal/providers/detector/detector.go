// Package detector calls an object detection service (a YOLO model behind
// HTTP) and returns boxes for the requested classes.
package detector

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/providers"
)

// Client calls <url>/detect.
type Client struct {
	url    string
	client *http.Client
}

// New returns a client for the detection service at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("detector url is empty")
	}
	return &Client{url: providers.JoinURL(baseURL, "detect"), client: providers.NewHTTPClient(timeout)}, nil
}

type detectRequest struct {
	ImageB64 string   `json:"image_b64"`
	Classes  []string `json:"classes,omitempty"`
}

type detectResponse struct {
	Boxes []distractor.Box `json:"boxes"`
}

// Detect returns every box the service reports. Filtering by class is left
// to distractor.BestBox.
func (c *Client) Detect(ctx context.Context, image []byte, classes []string) ([]distractor.Box, error) {
	var resp detectResponse
	req := detectRequest{ImageB64: base64.StdEncoding.EncodeToString(image), Classes: classes}
	if err := providers.PostJSON(ctx, c.client, c.url, "detect", req, &resp); err != nil {
		return nil, err
	}
	return resp.Boxes, nil
}

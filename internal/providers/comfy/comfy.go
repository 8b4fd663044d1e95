// Package comfy drives a ComfyUI server: it uploads a source image, queues
// an image-edit workflow, waits for completion over the websocket and
// downloads the outputs.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mwiater/trigbench/internal/providers"
)

// Client talks to one ComfyUI server. A Client holds a single websocket and
// is not meant for concurrent WaitForCompletion calls.
type Client struct {
	server   string
	clientID string
	http     *http.Client

	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns a client for server given as host:port.
func New(server string, timeout time.Duration) (*Client, error) {
	server = strings.TrimSpace(server)
	server = strings.TrimPrefix(strings.TrimPrefix(server, "http://"), "ws://")
	server = strings.TrimRight(server, "/")
	if server == "" {
		return nil, errors.New("comfy server address is empty")
	}
	return &Client{
		server:   server,
		clientID: uuid.New().String(),
		http:     providers.NewHTTPClient(timeout),
	}, nil
}

// ClientID is the id sent with queued prompts and used on the websocket.
func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) httpURL(path string) string {
	return "http://" + c.server + path
}

// Connect opens the status websocket.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	wsURL := fmt.Sprintf("ws://%s/ws?clientId=%s", c.server, url.QueryEscape(c.clientID))
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect to comfy at %s: %w", c.server, err)
	}
	c.conn = conn
	return nil
}

// Close closes the websocket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// UploadImage uploads data into the server's input directory and returns
// the stored name.
func (c *Client) UploadImage(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpURL("/upload/image"), &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Name string `json:"name"`
	}
	if err := providers.Do(c.http, req, "upload", &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", errors.New("upload response has no name")
	}
	return resp.Name, nil
}

// QueuePrompt queues workflow and returns its prompt id.
func (c *Client) QueuePrompt(ctx context.Context, workflow Workflow) (string, error) {
	var resp struct {
		PromptID string `json:"prompt_id"`
	}
	payload := map[string]any{"prompt": workflow, "client_id": c.clientID}
	if err := providers.PostJSON(ctx, c.http, c.httpURL("/prompt"), "queue", payload, &resp); err != nil {
		return "", err
	}
	if resp.PromptID == "" {
		return "", errors.New("queue response has no prompt_id")
	}
	return resp.PromptID, nil
}

type wsMessage struct {
	Type string `json:"type"`
	Data struct {
		Node     *string `json:"node"`
		PromptID string  `json:"prompt_id"`
	} `json:"data"`
}

// WaitForCompletion blocks until the server reports that promptID finished
// executing, or ctx ends. Binary preview frames are ignored. On a read
// error the websocket is closed.
func (c *Client) WaitForCompletion(ctx context.Context, promptID string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("comfy websocket is not connected")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			// A failed gorilla connection cannot be read again; the next
			// Connect dials a fresh one.
			_ = c.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("comfy websocket: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "executing" && msg.Data.Node == nil && msg.Data.PromptID == promptID {
			return nil
		}
	}
}

// OutputImage identifies one generated file on the server.
type OutputImage struct {
	Node      string `json:"-"`
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []OutputImage `json:"images"`
	} `json:"outputs"`
}

// Outputs returns the images produced by promptID, ordered by node id.
func (c *Client) Outputs(ctx context.Context, promptID string) ([]OutputImage, error) {
	var history map[string]historyEntry
	if err := providers.GetJSON(ctx, c.http, c.httpURL("/history/"+url.PathEscape(promptID)), "history", &history); err != nil {
		return nil, err
	}
	entry, ok := history[promptID]
	if !ok {
		return nil, fmt.Errorf("history has no entry for prompt %s", promptID)
	}
	nodes := make([]string, 0, len(entry.Outputs))
	for id := range entry.Outputs {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	var images []OutputImage
	for _, id := range nodes {
		for _, img := range entry.Outputs[id].Images {
			img.Node = id
			images = append(images, img)
		}
	}
	return images, nil
}

// FetchImage downloads one output image.
func (c *Client) FetchImage(ctx context.Context, img OutputImage) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", img.Filename)
	q.Set("subfolder", img.Subfolder)
	q.Set("type", img.Type)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpURL("/view?"+q.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("create view request: %w", err)
	}
	return providers.DoRaw(c.http, req, "view")
}

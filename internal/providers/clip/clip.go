// Package clip is the embedding similarity oracle. It posts an image and
// candidate texts to an embedding service that returns CLIP-style vectors
// and scores each text by cosine similarity to the image.
package clip

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/trigbench/internal/providers"
)

// Client calls <url>/embed.
type Client struct {
	url    string
	client *http.Client
}

// New returns a client for the embedding service at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("embedding url is empty")
	}
	return &Client{url: providers.JoinURL(baseURL, "embed"), client: providers.NewHTTPClient(timeout)}, nil
}

type embedRequest struct {
	ImageB64 string   `json:"image_b64"`
	Texts    []string `json:"texts"`
}

type embedResponse struct {
	ImageEmbedding []float64   `json:"image_embedding"`
	TextEmbeddings [][]float64 `json:"text_embeddings"`
}

// Similarity returns the cosine similarity of image to each of texts, keyed
// by text.
func (c *Client) Similarity(ctx context.Context, image []byte, texts []string) (map[string]float64, error) {
	if len(texts) == 0 {
		return map[string]float64{}, nil
	}
	var resp embedResponse
	req := embedRequest{ImageB64: base64.StdEncoding.EncodeToString(image), Texts: texts}
	if err := providers.PostJSON(ctx, c.client, c.url, "embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.ImageEmbedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty image vector")
	}
	if len(resp.TextEmbeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response returned %d text vectors for %d texts", len(resp.TextEmbeddings), len(texts))
	}

	imageNorm := vectorNorm(resp.ImageEmbedding)
	scores := make(map[string]float64, len(texts))
	for i, text := range texts {
		vec := resp.TextEmbeddings[i]
		if len(vec) != len(resp.ImageEmbedding) {
			return nil, fmt.Errorf("text vector %d has dimension %d, image has %d", i, len(vec), len(resp.ImageEmbedding))
		}
		scores[text] = cosineSimilarity(resp.ImageEmbedding, vec, imageNorm)
	}
	return scores, nil
}

func cosineSimilarity(a, b []float64, normA float64) float64 {
	if normA == 0 {
		return 0
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}

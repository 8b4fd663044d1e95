package vlm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func completionServer(t *testing.T, reply string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		if inspect != nil {
			inspect(payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   payload["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPredictLocationSendsImageAndPrompt(t *testing.T) {
	var seen map[string]any
	srv := completionServer(t, "(48.8584, 2.2945)", func(p map[string]any) { seen = p })

	client, err := New(Config{BaseURL: srv.URL + "/v1/", Model: "qwen-vl"})
	require.NoError(t, err)

	got, err := client.PredictLocation(context.Background(), pngHeader, "")
	require.NoError(t, err)
	assert.Equal(t, "(48.8584, 2.2945)", got)

	require.NotNil(t, seen)
	assert.Equal(t, "qwen-vl", seen["model"])
	assert.EqualValues(t, 128, seen["max_tokens"])
	temp, ok := seen["temperature"].(float64)
	require.True(t, ok, "temperature must be sent even when zero")
	assert.Less(t, temp, 1e-6)

	messages := seen["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]any)["text"], "GPS coordinates")
	url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), url)
}

func TestGenerateAttacksUsesJSONMode(t *testing.T) {
	reply := "Sure! {\"original_text\": \" McDonald's \", \"attacks\": {\"Similar\": \"McDonalds\", \"random\": \"banana\", \"adversarial\": \"Burger King\", \"extra\": \"  \"}}"
	var format any
	srv := completionServer(t, reply, func(p map[string]any) { format = p["response_format"] })

	client, err := New(Config{BaseURL: srv.URL, Model: "qwen-vl"})
	require.NoError(t, err)

	attacks, err := client.GenerateAttacks(context.Background(), []byte("jpeg"), "image/jpeg", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "McDonald's", attacks.OriginalText)
	assert.Equal(t, map[string]string{"similar": "McDonalds", "random": "banana", "adversarial": "Burger King"}, attacks.Attacks)
	assert.Equal(t, map[string]any{"type": "json_object"}, format)
}

func TestPredictLocationServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	_, err = client.PredictLocation(context.Background(), []byte("x"), "image/jpeg")
	assert.Error(t, err)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestParseAttacksErrors(t *testing.T) {
	_, err := ParseAttacks("no json here")
	assert.Error(t, err)
	_, err = ParseAttacks(`{"original_text":"x","attacks":{}}`)
	assert.Error(t, err)
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,aGk=", DataURL([]byte("hi"), "image/jpeg"))
	assert.True(t, strings.HasPrefix(DataURL(pngHeader, ""), "data:image/png;base64,"))
}

package comfy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComfy struct {
	t        *testing.T
	queued   map[string]any
	uploaded []byte
	holdWS   bool
}

func (f *fakeComfy) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/image", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		require.NoError(f.t, err)
		defer file.Close()
		f.uploaded, _ = io.ReadAll(file)
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "uploaded_" + header.Filename})
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.queued))
		_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-1"})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(f.t, r.URL.Query().Get("clientId"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(f.t, err)
		defer conn.Close()
		if f.holdWS {
			_, _, _ = conn.ReadMessage()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status","data":{"status":{}}}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":"3","prompt_id":"p-1"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":null,"prompt_id":"other"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":null,"prompt_id":"p-1"}}`))
		_, _, _ = conn.ReadMessage()
	})
	mux.HandleFunc("/history/p-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"p-1":{"outputs":{
			"9":{"images":[{"filename":"out_00001_.png","subfolder":"","type":"output"}]},
			"10":{"text":["ignored"]},
			"12":{"images":[{"filename":"preview.png","subfolder":"tmp","type":"temp"}]}
		}}}`))
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png:" + r.URL.Query().Get("filename") + ":" + r.URL.Query().Get("type")))
	})
	return mux
}

func newFake(t *testing.T) (*fakeComfy, *Client) {
	t.Helper()
	fake := &fakeComfy{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return fake, client
}

func TestGenerationRoundTrip(t *testing.T) {
	fake, client := newFake(t)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))

	name, err := client.UploadImage(ctx, "London.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded_London.jpg", name)
	assert.Equal(t, "jpeg-bytes", string(fake.uploaded))

	wf := Workflow{"78": {ClassType: "LoadImage", Inputs: map[string]any{}}}
	id, err := client.QueuePrompt(ctx, wf)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)
	assert.Equal(t, client.ClientID(), fake.queued["client_id"])

	require.NoError(t, client.WaitForCompletion(ctx, id))

	outputs, err := client.Outputs(ctx, id)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "12", outputs[0].Node, "node ids sort as strings")
	assert.Equal(t, "out_00001_.png", outputs[1].Filename)

	data, err := client.FetchImage(ctx, outputs[1])
	require.NoError(t, err)
	assert.Equal(t, "png:out_00001_.png:output", string(data))
}

func TestWaitForCompletionHonoursContext(t *testing.T) {
	fake, client := newFake(t)
	fake.holdWS = true
	require.NoError(t, client.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := client.WaitForCompletion(ctx, "p-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitWithoutConnect(t *testing.T) {
	_, client := newFake(t)
	assert.Error(t, client.WaitForCompletion(context.Background(), "p-1"))
}

func TestOutputsMissingPrompt(t *testing.T) {
	_, client := newFake(t)
	_, err := client.Outputs(context.Background(), "p-2")
	assert.Error(t, err)
}

func TestNewNormalisesAddress(t *testing.T) {
	c, err := New("http://127.0.0.1:8188/", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8188/prompt", c.httpURL("/prompt"))
	_, err = New("  ", 0)
	assert.Error(t, err)
}

func TestWorkflowFillDoesNotTouchTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.json")
	raw := `{
		"78": {"class_type": "LoadImage", "inputs": {"image": "placeholder.png"}},
		"76": {"class_type": "TextEncodeQwenImageEdit", "inputs": {"prompt": ""}, "_meta": {"title": "Prompt"}},
		"3":  {"class_type": "KSampler", "inputs": {"seed": 1, "steps": 20}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	tmpl, err := LoadWorkflow(path)
	require.NoError(t, err)

	filled, missing := tmpl.Fill(DefaultNodeIDs(), "London.jpg", "Add the text 'Go'", 99)
	assert.Empty(t, missing)
	assert.Equal(t, "London.jpg", filled["78"].Inputs["image"])
	assert.Equal(t, int64(99), filled["3"].Inputs["seed"])
	assert.EqualValues(t, 20, filled["3"].Inputs["steps"])
	assert.Equal(t, "placeholder.png", tmpl["78"].Inputs["image"])
	assert.EqualValues(t, 1, tmpl["3"].Inputs["seed"])

	_, missing = tmpl.Fill(NodeIDs{LoadImage: "78", Prompt: "999", Sampler: "3"}, "a", "b", 1)
	assert.Equal(t, []string{"999"}, missing)
}

func TestLoadWorkflowErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadWorkflow(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = LoadWorkflow(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(strings.Repeat("{", 3)), 0o644))
	_, err = LoadWorkflow(bad)
	assert.Error(t, err)
}

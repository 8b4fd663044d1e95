package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := PostJSON(context.Background(), NewHTTPClient(time.Second), JoinURL(srv.URL+"/", "/echo"), "echo", map[string]string{"msg": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := GetJSON(context.Background(), NewHTTPClient(0), srv.URL, "health", nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "model not loaded", statusErr.Body)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://h:1/embed", JoinURL("http://h:1/", "/embed"))
	assert.Equal(t, "http://h:1/embed", JoinURL("http://h:1", "embed"))
}

func TestNewHTTPClientDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewHTTPClient(0).Timeout)
}

func TestDetectImageMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	assert.Equal(t, "image/png", DetectImageMIME(png))
	assert.Equal(t, "image/jpeg", DetectImageMIME([]byte("plain text")))
	assert.Equal(t, "image/jpeg", DetectImageMIME(nil))
}

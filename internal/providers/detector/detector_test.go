package detector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/trigbench/internal/distractor"
)

func TestDetectFeedsBestBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"bus", "car"}, req.Classes)
		_, _ = w.Write([]byte(`{"boxes":[
			{"class":"car","confidence":0.9,"x1":0,"y1":0,"x2":10,"y2":10},
			{"class":"bus","confidence":0.8,"x1":0,"y1":0,"x2":30,"y2":20},
			{"class":"person","confidence":0.99,"x1":0,"y1":0,"x2":100,"y2":100}
		]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	task := distractor.Task{RequestedStrategy: distractor.ObjectAnchored, TargetClasses: []string{"bus", "car"}}
	resolved, box, err := distractor.Locate(context.Background(), c, task, []byte("img"))
	require.NoError(t, err)
	require.NotNil(t, box)
	assert.Equal(t, "bus", box.Class)
	assert.Equal(t, distractor.ObjectAnchored, resolved.AchievedStrategy)
	assert.False(t, resolved.Degraded)
}

func TestDetectServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	task := distractor.Task{RequestedStrategy: distractor.ObjectAnchored, TargetClasses: []string{"car"}}
	resolved, box, err := distractor.Locate(context.Background(), c, task, []byte("img"))
	assert.Error(t, err)
	assert.Nil(t, box)
	assert.Equal(t, distractor.FreePlacement, resolved.AchievedStrategy)
	assert.True(t, resolved.Degraded)
}

package emotion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDetectorDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emotion", r.URL.Path)
		switch r.URL.Query().Get("connection_id") {
		case "c1":
			w.Write([]byte(`{"emotion":"sad"}`))
		case "unseen":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, time.Second)

	emotion, err := d.Detect(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "sad", emotion)

	// 404 means no reading yet, not a failure.
	emotion, err = d.Detect(context.Background(), "unseen")
	require.NoError(t, err)
	assert.Empty(t, emotion)

	_, err = d.Detect(context.Background(), "broken")
	assert.Error(t, err)
}

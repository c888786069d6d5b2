package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenshotKeys(t *testing.T) {
	projectID := uuid.New()
	checkID := uuid.New()
	shotID := uuid.New()

	key := ScreenshotKey(projectID, checkID, shotID)
	thumb := ThumbnailKey(projectID, checkID, shotID)

	assert.Equal(t, fmt.Sprintf("projects/%s/screenshots/%s/%s.png", projectID, checkID, shotID), key)
	assert.Equal(t, fmt.Sprintf("projects/%s/screenshots/%s/%s_thumb.png", projectID, checkID, shotID), thumb)
	assert.NotEqual(t, key, thumb)
}

func TestPresignUpload(t *testing.T) {
	var gotPath, gotKey, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotAuth = r.Header.Get("Authorization")

		json.NewEncoder(w).Encode(map[string]string{
			"url":        "https://bucket.example.com/put/abc",
			"expires_at": time.Now().Add(15 * time.Minute).Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "storage-key", 5*time.Second)

	url, err := c.PresignUpload(context.Background(), "projects/p/screenshots/c/s.png")
	require.NoError(t, err)

	assert.Equal(t, "/v1/presign", gotPath)
	assert.Equal(t, "projects/p/screenshots/c/s.png", gotKey)
	assert.Equal(t, "Bearer storage-key", gotAuth)
	assert.Equal(t, "https://bucket.example.com/put/abc", url)
}

func TestPresignUpload_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)

	_, err := c.PresignUpload(context.Background(), "some/key")
	assert.ErrorIs(t, err, ErrGatewayError)
}

func TestPresignUpload_Unreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "", 500*time.Millisecond)

	_, err := c.PresignUpload(context.Background(), "some/key")
	assert.ErrorIs(t, err, ErrGatewayUnreachable)
}

func TestDelete(t *testing.T) {
	var gotMethod, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.URL.Query().Get("key")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)

	require.NoError(t, c.Delete(context.Background(), "projects/p/screenshots/c/s.png"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "projects/p/screenshots/c/s.png", gotKey)
}

func TestDelete_MissingObjectTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	assert.NoError(t, c.Delete(context.Background(), "already/gone"))
}

func TestDelete_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	assert.ErrorIs(t, c.Delete(context.Background(), "some/key"), ErrGatewayError)
}

package storageapi_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel_finder/internal/adapters/storageapi"
	"hostel_finder/internal/domain"
)

func TestClient_Upload_RetriesThenSuccess(t *testing.T) {
	var hits int32
	var lastBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/object/hostel_images/abc.png", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		lastBody, _ = io.ReadAll(r.Body)
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(503)
		default:
			w.WriteHeader(200)
		}
	}))
	defer ts.Close()

	cl, err := storageapi.New(ts.URL, "test-key", 100, 1<<20)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = cl.Upload(ctx, "hostel_images", "abc.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	assert.Equal(t, "png-bytes", string(lastBody), "body is resent in full on retry")
}

func TestClient_Upload_ConflictAfterLostResponseIsSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		// the first attempt is stored but its response is a 502
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusConflict)
		}
	}))
	defer ts.Close()

	cl, err := storageapi.New(ts.URL, "k", 100, 1<<20)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, cl.Upload(ctx, "hostel_images", "abc.png", strings.NewReader("png-bytes"), "image/png"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestClient_Upload_ConflictOnFirstAttempt(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	cl, err := storageapi.New(ts.URL, "k", 100, 1<<20)
	require.NoError(t, err)

	err = cl.Upload(context.Background(), "hostel_images", "abc.png", strings.NewReader("png-bytes"), "image/png")
	assert.ErrorIs(t, err, storageapi.ErrConflict)
}

func TestClient_Upload_TooLarge(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	cl, err := storageapi.New(ts.URL, "k", 100, 10)
	require.NoError(t, err)

	err = cl.Upload(context.Background(), "b", "x.jpg", bytes.NewReader(make([]byte, 11)), "image/jpeg")
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestClient_Upload_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	cl, err := storageapi.New(ts.URL, "bad", 100, 0)
	require.NoError(t, err)
	err = cl.Upload(context.Background(), "b", "x.jpg", strings.NewReader("x"), "image/jpeg")
	assert.ErrorIs(t, err, storageapi.ErrUnauthorized)
}

func TestClient_Delete_IgnoresMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	cl, err := storageapi.New(ts.URL, "k", 100, 0)
	require.NoError(t, err)
	assert.NoError(t, cl.Delete(context.Background(), "b", "gone.png"))
}

func TestClient_PublicURL(t *testing.T) {
	cl, err := storageapi.New("https://store.test/storage/v1/", "k", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://store.test/storage/v1/object/public/hostel_images/a%20b.png", cl.PublicURL("hostel_images", "a b.png"))
	assert.Equal(t, "https://store.test/storage/v1/object/public/hostel_images/", cl.PublicURL("hostel_images", ""))
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := storageapi.New("https://store.test", "", 1, 0)
	assert.Error(t, err)
}

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aweris/assetsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/enumerate", func(w http.ResponseWriter, r *http.Request) {
		resp := EnumerateResponse{Resources: []assetsync.ResourceDescriptor{}}
		for _, name := range []string{"a.dac", "b.dac"} {
			if data, ok := files[name]; ok {
				resp.Resources = append(resp.Resources, assetsync.ResourceDescriptor{
					Name: name, Hash: assetsync.ContentHash(data), Size: int64(len(data)),
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/get", func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Query().Get("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientFetchManifest(t *testing.T) {
	srv := newAPIServer(t, map[string][]byte{"a.dac": []byte("alpha"), "b.dac": {}})

	c, err := NewHTTPClient(srv.URL+"/api", srv.Client())
	require.NoError(t, err)

	got, err := c.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []assetsync.ResourceDescriptor{
		{Name: "a.dac", Hash: assetsync.ContentHash([]byte("alpha")), Size: 5},
		{Name: "b.dac", Hash: assetsync.ContentHash(nil), Size: 0},
	}, got)
}

func TestHTTPClientFetchContent(t *testing.T) {
	srv := newAPIServer(t, map[string][]byte{"a.dac": []byte("alpha"), "b.dac": {}})

	c, err := NewHTTPClient(srv.URL+"/api/", nil)
	require.NoError(t, err)

	data, err := c.FetchContent(context.Background(), "a.dac")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)

	data, err = c.FetchContent(context.Background(), "b.dac")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = c.FetchContent(context.Background(), "missing.dac")
	assert.ErrorIs(t, err, assetsync.ErrResourceNotFound)
}

func TestHTTPClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.FetchManifest(context.Background())
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.Code)
	assert.True(t, status.Temporary())
}

func TestHTTPClientMalformedManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.FetchManifest(context.Background())
	assert.Error(t, err)
}

func TestNewHTTPClientValidatesURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "://bad"} {
		_, err := NewHTTPClient(raw, nil)
		assert.Error(t, err, raw)
	}
}

func TestOpen(t *testing.T) {
	rm, err := Open(Config{Kind: "HTTP", URL: "http://127.0.0.1:8080/api"})
	require.NoError(t, err)
	assert.NotNil(t, rm)

	rm, err = Open(Config{Kind: KindOCI, Ref: "localhost:5000/assets:dev"})
	require.NoError(t, err)
	assert.NotNil(t, rm)

	_, err = Open(Config{Kind: "ftp"})
	assert.Error(t, err)

	_, err = Open(Config{Kind: KindOCI})
	assert.Error(t, err)
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/aweris/assetsync"
	"github.com/aweris/assetsync/internal/remote"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "maps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dac"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps", "b.dac"), []byte("bravo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	logger, _ := test.NewNullLogger()
	app, err := NewApp(Options{Dir: dir, Logger: logger})
	require.NoError(t, err)
	return app, dir
}

func TestEnumerate(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/enumerate", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body remote.EnumerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []assetsync.ResourceDescriptor{
		{Name: "a.dac", Hash: assetsync.ContentHash([]byte("alpha")), Size: 5},
		{Name: "maps/b.dac", Hash: assetsync.ContentHash([]byte("bravo")), Size: 5},
	}, body.Resources)
}

func TestGet(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "top level", query: "a.dac", wantStatus: fiber.StatusOK, wantBody: "alpha"},
		{name: "nested", query: "maps/b.dac", wantStatus: fiber.StatusOK, wantBody: "bravo"},
		{name: "missing", query: "c.dac", wantStatus: fiber.StatusNotFound},
		{name: "extension not served", query: "notes.txt", wantStatus: fiber.StatusNotFound},
		{name: "traversal", query: "../a.dac", wantStatus: fiber.StatusNotFound},
		{name: "no name", query: "", wantStatus: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/get?name="+url.QueryEscape(tt.query), nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				data, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(data))
				assert.Equal(t, fiber.MIMEOctetStream, resp.Header.Get(fiber.HeaderContentType))
			}
		})
	}
}

func TestEnumerateMissingDir(t *testing.T) {
	logger, hook := test.NewNullLogger()
	app, err := NewApp(Options{Dir: filepath.Join(t.TempDir(), "gone"), Logger: logger})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/enumerate", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "enumerate", hook.LastEntry().Data["action"])
}

func TestNewAppValidates(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := NewApp(Options{Logger: logger})
	assert.Error(t, err)

	_, err = NewApp(Options{Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestHTTPClientAgainstServer(t *testing.T) {
	app, _ := newTestApp(t)
	srv := httptest.NewServer(adaptor(app))
	t.Cleanup(srv.Close)

	c, err := remote.NewHTTPClient(srv.URL+APIPrefix, srv.Client())
	require.NoError(t, err)

	manifest, err := c.FetchManifest(context.Background())
	require.NoError(t, err)
	require.Len(t, manifest, 2)

	data, err := c.FetchContent(context.Background(), "maps/b.dac")
	require.NoError(t, err)
	assert.NoError(t, assetsync.VerifyDigest.Verify(manifest[1], data))

	_, err = c.FetchContent(context.Background(), "nope.dac")
	assert.ErrorIs(t, err, assetsync.ErrResourceNotFound)
}

// adaptor routes net/http requests through app.Test.
func adaptor(app *fiber.App) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := httptest.NewRequest(r.Method, r.URL.RequestURI(), r.Body)
		resp, err := app.Test(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	})
}

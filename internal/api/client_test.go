package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/OCAP2/coil/internal/storage"
	"github.com/OCAP2/coil/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memory backends are uploadable exports
var _ Export = storage.Uploadable(nil)

type fakeExport struct {
	path string
	meta core.UploadMetadata
}

func (f fakeExport) GetExportedFilePath() string            { return f.path }
func (f fakeExport) GetExportMetadata() core.UploadMetadata { return f.meta }

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Op_Aegis_20260301_203000.json.gz")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret", "PvE")
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret", c.apiKey)
	assert.NotNil(t, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	c := New(server.URL, "", "")
	assert.NoError(t, c.Healthcheck(context.Background()))

	status.Store(http.StatusInternalServerError)
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestUpload_Success(t *testing.T) {
	fields := make(map[string]string)
	var fileContent []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/recordings/add", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			fileContent, _ = io.ReadAll(f)
			f.Close()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeTempFile(t, "recording-data")
	c := New(server.URL, "secret123", "PvE")
	err := c.UploadExport(context.Background(), fakeExport{
		path: path,
		meta: core.UploadMetadata{WorldName: "Altis", SessionName: "Op Aegis", SessionDuration: 125.5},
	})
	require.NoError(t, err)

	assert.Equal(t, "secret123", fields["secret"])
	assert.Equal(t, filepath.Base(path), fields["filename"])
	assert.Equal(t, "Altis", fields["worldName"])
	assert.Equal(t, "Op Aegis", fields["sessionName"])
	assert.Equal(t, "125.500", fields["sessionDuration"])
	assert.Equal(t, "PvE", fields["tag"], "client tag fills an empty upload tag")
	assert.Equal(t, "recording-data", string(fileContent))
}

func TestUpload_ExplicitTagWins(t *testing.T) {
	var tag string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		tag = r.FormValue("tag")
	}))
	defer server.Close()

	c := New(server.URL, "", "PvE")
	require.NoError(t, c.Upload(context.Background(), writeTempFile(t, "x"), core.UploadMetadata{Tag: "Training"}))
	assert.Equal(t, "Training", tag)
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "bad secret", http.StatusForbidden)
	}))
	defer server.Close()

	c := New(server.URL, "wrong", "")
	err := c.Upload(context.Background(), writeTempFile(t, "data"), core.UploadMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "bad secret")
}

func TestUpload_MissingFile(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.json"), core.UploadMetadata{})
	assert.Error(t, err)
}

func TestUpload_ServerDown(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	err := c.Upload(context.Background(), writeTempFile(t, "data"), core.UploadMetadata{})
	assert.Error(t, err)
}

func TestUploadExport_NoExport(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "")
	assert.ErrorIs(t, c.UploadExport(context.Background(), fakeExport{}), ErrNoExport)
}

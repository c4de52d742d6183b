package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mgmu/greenlog/internal/plants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDataURIWithContentType(t *testing.T) {
	got, err := DataURI(strings.NewReader("abc"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, plants.ImageRef("data:image/jpeg;base64,YWJj"), got)
}

func TestDataURISniffsContentType(t *testing.T) {
	got, err := DataURI(strings.NewReader(string(pngHeader)), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "data:image/png;base64,"), got)
}

func TestDataURIDropsParameters(t *testing.T) {
	got, err := DataURI(strings.NewReader("hi"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, plants.ImageRef("data:text/plain;base64,aGk="), got)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaf.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	got, err := FromFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "data:image/png;base64,"))

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leaf.gif" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/gif")
		w.Write([]byte("GIF89a"))
	}))
	defer srv.Close()
	f := NewFetcher(0)

	got, err := f.Load(context.Background(), srv.URL+"/leaf.gif")
	require.NoError(t, err)
	assert.Equal(t, plants.ImageRef("data:image/gif;base64,R0lGODlh"), got)

	_, err = f.FromURL(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	got, err := NewFetcher(0).Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, plants.ImageRef(""), got)
}

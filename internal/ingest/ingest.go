// Package ingest turns image files into self-contained data URIs.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mgmu/greenlog/internal/plants"
)

// DataURI reads r to the end and encodes it as a base64 data URI. When
// contentType is empty it is sniffed from the content.
func DataURI(r io.Reader, contentType string) (plants.ImageRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return encode(data, contentType), nil
}

func encode(data []byte, contentType string) plants.ImageRef {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	} else {
		contentType = ""
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
	}
	var buf bytes.Buffer
	buf.WriteString("data:")
	buf.WriteString(contentType)
	buf.WriteString(";base64,")
	buf.WriteString(base64.StdEncoding.EncodeToString(data))
	return plants.ImageRef(buf.String())
}

// FromFile encodes the file at path, using its extension to find the content
// type.
func FromFile(path string) (plants.ImageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return encode(data, mime.TypeByExtension(filepath.Ext(path))), nil
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	client *retryablehttp.Client
}

// NewFetcher returns a fetcher retrying failed downloads up to retries times.
func NewFetcher(retries int) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.Logger = nil
	return &Fetcher{client}
}

// FromURL downloads the image at url and encodes it.
func (f *Fetcher) FromURL(ctx context.Context, url string) (plants.ImageRef, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ingest: GET %s: %s", url, resp.Status)
	}
	return DataURI(resp.Body, resp.Header.Get("Content-Type"))
}

// Load encodes src, downloading it when it is an http(s) URL and reading it
// from disk otherwise. An empty src gives an empty reference.
func (f *Fetcher) Load(ctx context.Context, src string) (plants.ImageRef, error) {
	switch {
	case src == "":
		return "", nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return f.FromURL(ctx, src)
	}
	return FromFile(src)
}

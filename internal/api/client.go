// Package api uploads finished session recordings to a web frontend.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/coil/pkg/core"
)

// ErrNoExport is returned when the recording backend has not written an export yet.
var ErrNoExport = errors.New("no exported recording")

// Export is a backend that writes a recording file on session end.
type Export interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Client handles communication with the web frontend.
type Client struct {
	baseURL    string
	apiKey     string
	tag        string
	httpClient *http.Client
}

// New creates a new API client. tag is applied to uploads that carry none.
func New(baseURL, apiKey, tag string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		tag:        tag,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the web frontend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadExport uploads the last recording written by src.
func (c *Client) UploadExport(ctx context.Context, src Export) error {
	path := src.GetExportedFilePath()
	if path == "" {
		return ErrNoExport
	}
	return c.Upload(ctx, path, src.GetExportMetadata())
}

// Upload sends a recording file as a multipart form.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if meta.Tag == "" {
		meta.Tag = c.tag
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// form fields and file are streamed from a goroutine
	errCh := make(chan error, 1)
	go func() {
		err := writeForm(writer, file, filepath.Base(filePath), c.apiKey, meta)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/recordings/add", pr)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func writeForm(w *multipart.Writer, file io.Reader, name, secret string, meta core.UploadMetadata) error {
	fields := [][2]string{
		{"secret", secret},
		{"filename", name},
		{"worldName", meta.WorldName},
		{"sessionName", meta.SessionName},
		{"sessionDuration", strconv.FormatFloat(meta.SessionDuration, 'f', 3, 64)},
		{"tag", meta.Tag},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}

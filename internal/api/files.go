package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/aviellagerev/shareterm/internal/event"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

// Upload sends one local file to the shared folder. The returned record is
// the server's view of what was stored, since the server may have renamed the
// file to avoid an overwrite. The local collection is NOT updated here; the
// membership change arrives through the event stream.
func (c *Client) Upload(ctx context.Context, path string) (sharefile.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return sharefile.Record{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	// Stream the multipart body through a pipe so large files are never
	// buffered whole in memory.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	var out struct {
		Filename   string `json:"filename"`
		Uploader   string `json:"uploader"`
		UploadTime string `json:"upload_time"`
		Size       int64  `json:"size"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/files/upload", pr, writer.FormDataContentType(), &out); err != nil {
		return sharefile.Record{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return sharefile.Record{
		Filename:   out.Filename,
		Uploader:   out.Uploader,
		UploadTime: event.ParseUploadTime(out.UploadTime),
		Size:       out.Size,
	}, nil
}

// Delete removes a file from the shared folder. Callers must have obtained
// explicit user confirmation first.
func (c *Client) Delete(ctx context.Context, filename string) error {
	path := "/files/delete/" + url.PathEscape(filename)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, "", nil); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

// Download opens a stream of the file's contents. The caller owns the
// returned reader and must close it.
func (c *Client) Download(ctx context.Context, filename string) (io.ReadCloser, error) {
	path := "/files/download/" + url.PathEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download %s: %w", filename,
			&APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)})
	}
	return resp.Body, nil
}

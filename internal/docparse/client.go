// Package docparse consumes the document-conversion service: submit a PDF,
// poll the task until it is terminal, download the result archive and
// extract markdown plus figure images.
package docparse

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"papervid/internal/config"
	"papervid/internal/storage"
)

// pngSignature identifies real PNG payloads inside the result archive.
var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// Result is the extracted conversion output. Images maps the archive file
// name to the absolute path it was extracted to.
type Result struct {
	Markdown string
	Images   map[string]string
}

type Converter interface {
	Convert(ctx context.Context, pdfPath, outputDir string) (*Result, error)
}

type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(cfg config.DoclingConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("document conversion service URL is not configured")
	}
	pollInterval := time.Duration(cfg.PollIntervalSec) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	pollTimeout := time.Duration(cfg.PollTimeoutSec) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Minute
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}, nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL + "/" + path.Join(parts...)
}

// failMsg wraps an upstream error with the endpoint's path-only form so
// credentials in the base URL or query never surface.
func (c *Client) failMsg(endpoint string, err error) error {
	u, parseErr := url.Parse(endpoint)
	p := endpoint
	if parseErr == nil {
		p = u.Path
	}
	return fmt.Errorf("document conversion request to %s failed: %w", p, err)
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	TaskStatus string `json:"task_status"`
}

func (c *Client) Convert(ctx context.Context, pdfPath, outputDir string) (*Result, error) {
	taskID, err := c.submit(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if err := c.waitForTask(ctx, taskID); err != nil {
		return nil, err
	}
	archive, err := c.fetchResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return extractArchive(archive, outputDir)
}

func (c *Client) submit(ctx context.Context, pdfPath string) (string, error) {
	endpoint := c.endpoint("convert", "file", "async")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return "", err
	}
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open source PDF: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var submitted submitResponse
	if err := c.doJSON(req, &submitted); err != nil {
		return "", c.failMsg(endpoint, err)
	}
	if submitted.TaskID == "" {
		return "", c.failMsg(endpoint, errors.New("response missing task_id"))
	}
	return submitted.TaskID, nil
}

func (c *Client) waitForTask(ctx context.Context, taskID string) error {
	endpoint := c.endpoint("status", "poll", taskID)
	deadline := time.Now().Add(c.pollTimeout)

	for {
		if time.Now().After(deadline) {
			return c.failMsg(endpoint, errors.New("conversion task timed out"))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		var status statusResponse
		if err := c.doJSON(req, &status); err != nil {
			return c.failMsg(endpoint, err)
		}

		switch status.TaskStatus {
		case "success":
			return nil
		case "failure", "revoked":
			return c.failMsg(endpoint, fmt.Errorf("conversion task ended with status %q", status.TaskStatus))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, taskID string) ([]byte, error) {
	endpoint := c.endpoint("result", taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failMsg(endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.failMsg(endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

func extractArchive(archive []byte, outputDir string) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open conversion result archive: %w", err)
	}

	result := &Result{Images: map[string]string{}}
	imagesDir := filepath.Join(outputDir, "images")

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(file)
		if err != nil {
			return nil, err
		}

		name := path.Base(file.Name)
		switch {
		case strings.HasSuffix(name, ".md"):
			result.Markdown = string(data)
		case bytes.HasPrefix(data, pngSignature):
			target := filepath.Join(imagesDir, name)
			if err := storage.WriteFileAtomic(target, data); err != nil {
				return nil, fmt.Errorf("extract image %s: %w", name, err)
			}
			result.Images[name] = target
		}
	}

	if strings.TrimSpace(result.Markdown) == "" {
		return nil, errors.New("conversion result archive contained no markdown document")
	}
	return result, nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

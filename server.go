package models

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Server endpoints, relative to Config.ServerURL.
const (
	modelInfoPath     = "/model_info"
	downloadModelPath = "/download_model"
)

// errorBodyLimit caps how much of a failed response body is kept for logs.
const errorBodyLimit = 512

// serverClient handles HTTP communication with the seed model server.
type serverClient struct {
	// baseURL is the base URL of the server (e.g., "https://ml.example.com").
	baseURL string

	// httpClient is used for HTTP requests.
	httpClient HTTPClient

	// timeout bounds each request, including reading the body.
	timeout time.Duration

	// logger receives diagnostic messages. May be nil.
	logger Logger
}

// newServerClient creates a new server client.
// The baseURL is normalized by removing any trailing slashes.
func newServerClient(baseURL string, client HTTPClient, timeout time.Duration, logger Logger) *serverClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &serverClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		timeout:    timeout,
		logger:     logger,
	}
}

// get issues a GET request for path. The caller must close the body and call
// cancel. Non-200 responses are returned as ErrServerError with a body excerpt.
func (s *serverClient) get(ctx context.Context, path string) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("GET %s: %v: %w", path, err, ErrNetworkError)
	}

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("GET %s: status %d: %q: %w", path, resp.StatusCode, strings.TrimSpace(string(excerpt)), ErrServerError)
	}

	return resp, cancel, nil
}

// fetchModelInfo fetches and parses the server's model metadata.
func (s *serverClient) fetchModelInfo(ctx context.Context) (ServerModelInfo, error) {
	resp, cancel, err := s.get(ctx, modelInfoPath)
	if err != nil {
		return ServerModelInfo{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	var info ServerModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ServerModelInfo{}, fmt.Errorf("parsing model info: %v: %w", err, ErrServerError)
	}

	return info, nil
}

// fetchModel downloads the seed model blob.
// The onProgress callback, if set, receives cumulative progress.
func (s *serverClient) fetchModel(ctx context.Context, onProgress func(DownloadProgress)) ([]byte, error) {
	resp, cancel, err := s.get(ctx, downloadModelPath)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.ContentLength > MaxModelSize {
		return nil, fmt.Errorf("model size %d exceeds limit %d: %w", resp.ContentLength, int64(MaxModelSize), ErrServerError)
	}

	var reader io.Reader = io.LimitReader(resp.Body, MaxModelSize+1)
	if onProgress != nil {
		reader = &progressReader{reader: reader, total: resp.ContentLength, onProgress: onProgress}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading model body: %v: %w", err, ErrNetworkError)
	}
	if len(data) > MaxModelSize {
		return nil, fmt.Errorf("model body exceeds limit %d: %w", int64(MaxModelSize), ErrServerError)
	}

	if s.logger != nil {
		s.logger.Debug("seed model fetched", "bytes", len(data))
	}

	return data, nil
}

// progressReader wraps an io.Reader and reports cumulative progress as bytes are read.
type progressReader struct {
	reader     io.Reader
	total      int64
	read       int64
	onProgress func(DownloadProgress)
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.onProgress(DownloadProgress{BytesTotal: pr.total, BytesDownloaded: pr.read})
	}
	return
}

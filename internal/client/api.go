package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
)

// Health is the service health report.
type Health struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// API is a thin client for the request/response endpoints.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 2 * time.Minute}}
}

// Chat runs a non-streaming turn.
func (a *API) Chat(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error) {
	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out chat.ChatResponse
	if err := a.do(ctx, http.MethodPost, "/api/v1/chat", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends one file for ingestion.
func (a *API) Upload(ctx context.Context, filename string, r io.Reader) (domain.IngestionResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return domain.IngestionResponse{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return domain.IngestionResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.IngestionResponse{}, err
	}
	var out domain.IngestionResponse
	err = a.do(ctx, http.MethodPost, "/api/v1/ingest/upload", mw.FormDataContentType(), &buf, &out)
	return out, err
}

// JobStatus fetches one job. An unknown id is a NotFoundError.
func (a *API) JobStatus(ctx context.Context, jobID string) (domain.IngestionJob, error) {
	var out domain.IngestionJob
	err := a.do(ctx, http.MethodGet, "/api/v1/ingest/status/"+url.PathEscape(jobID), "", nil, &out)
	var te *TransportError
	if errors.As(err, &te) && te.Status == http.StatusNotFound {
		return out, &NotFoundError{JobID: jobID}
	}
	return out, err
}

// ListJobs lists jobs, most recent first. An empty status lists every status.
func (a *API) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.IngestionJob, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/ingest/status"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []domain.IngestionJob
	err := a.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// Health returns the report for healthy and degraded services alike.
func (a *API) Health(ctx context.Context) (Health, error) {
	var out Health
	err := a.do(ctx, http.MethodGet, "/api/v1/health", "", nil, &out)
	return out, err
}

func (a *API) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient(a.HTTP).Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(method+" "+path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

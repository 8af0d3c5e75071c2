package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/warp/custody-engine/generic"
)

// maxBody bounds how much of a reply is read into memory.
const maxBody = 4 << 20

// HTTPPort implements Port against the backend's custody-records routes.
type HTTPPort struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPPort(baseURL string, timeout time.Duration) *HTTPPort {
	return &HTTPPort{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// FetchMonth: GET /api/custody-records?year=2023&month=11
func (p *HTTPPort) FetchMonth(ctx context.Context, w generic.Window) (*Response, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(w.Year))
	q.Set("month", strconv.Itoa(int(w.Month)))
	return p.send(ctx, http.MethodGet, "/api/custody-records?"+q.Encode(), nil)
}

// UpdateRecord: PUT /api/custody-records/2023-11-04
func (p *HTTPPort) UpdateRecord(ctx context.Context, u generic.RecordUpdate) (*Response, error) {
	return p.send(ctx, http.MethodPut, "/api/custody-records/"+url.PathEscape(u.Date.String()), u)
}

// CreateRecord: POST /api/custody-records
func (p *HTTPPort) CreateRecord(ctx context.Context, u generic.RecordUpdate) (*Response, error) {
	return p.send(ctx, http.MethodPost, "/api/custody-records", u)
}

func (p *HTTPPort) send(ctx context.Context, method, path string, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

var _ Port = (*HTTPPort)(nil)

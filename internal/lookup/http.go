package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/circuitbreaker"
)

const maxResponseBytes = 1 << 20

// HTTPClient calls the remote patient API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		cb:      circuitbreaker.New(circuitbreaker.DefaultSettings("patient-lookup")),
	}
}

func (c *HTTPClient) Search(ctx context.Context, q Query) ([]model.PatientRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if q.InvoiceNumber != "" {
		params.Set("invoice_number", strings.TrimSpace(q.InvoiceNumber))
	} else {
		params.Set("national_id", strings.TrimSpace(q.NationalID))
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.do(ctx, c.baseURL+"/patients?"+params.Encode())
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return res.([]model.PatientRecord), nil
}

func (c *HTTPClient) do(ctx context.Context, endpoint string) ([]model.PatientRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []model.PatientRecord{}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return decodeRecords(body)
}

// decodeRecords accepts a bare JSON list or a {"data": [...]} envelope.
func decodeRecords(body []byte) ([]model.PatientRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	records := []model.PatientRecord{}

	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Data []model.PatientRecord `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if envelope.Data != nil {
			records = envelope.Data
		}
		return records, nil
	}

	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return records, nil
}

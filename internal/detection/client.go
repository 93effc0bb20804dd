package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jatinpathak/Truth-Spectrogram/internal/config"
)

// Detector dispatches a prepared detection request. The session depends on
// this seam; Client is the production implementation.
type Detector interface {
	Detect(ctx context.Context, apiKey string, req Request) (*Response, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.DetectionConfig) (*Client, error) {
	slog.Info("Creating voice detection client", "baseURL", cfg.BaseURL)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("voice detection base URL cannot be empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Detect POSTs the request to the voice detection endpoint with the
// credential in the x-api-key header. Non-2xx replies come back as
// *StatusError, 2xx replies with unusable bodies as *InvalidResponseError,
// and anything else is a transport failure.
func (c *Client) Detect(ctx context.Context, apiKey string, req Request) (*Response, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice-detection", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("Voice detection request failed", "error", err)
		return nil, fmt.Errorf("voice detection request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		// Non-JSON error bodies leave the detail empty.
		_ = json.Unmarshal(respBody, &envelope)
		slog.Error("Voice detection service error", "status", resp.StatusCode, "detail", envelope.Detail.String())
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: envelope.Detail}
	}

	out, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}

	slog.Info("Voice detection succeeded", "classification", out.Classification, "confidence", out.ConfidenceScore)
	return out, nil
}

// Health probes the service's health endpoint. Any 2xx counts as reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voice detection service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("voice detection service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

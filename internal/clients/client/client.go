package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
)

// HttpClient is the surface every outgoing collaborator client exposes to
// SendRequest.
type HttpClient interface {
	GetBaseURL() string
	GetDefaultRequestTimeout() time.Duration
	GetHttpClient() *http.Client
}

type HttpClientOptions struct {
	Path    string
	Headers map[string]string
	// TemplatePath is the parametrized path used as the metrics label, so
	// per-id paths do not explode label cardinality.
	TemplatePath string
}

// SendRequest sends a JSON request to the collaborator and decodes a JSON
// response. Non-2xx statuses are errors carrying the status code.
func SendRequest[Req any, Resp any](
	ctx context.Context,
	c HttpClient,
	method string,
	opts *HttpClientOptions,
	body *Req,
) (*Resp, error) {
	url := c.GetBaseURL() + opts.Path

	timeout := c.GetDefaultRequestTimeout()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	stopTimer := metrics.StartClientRequestDurationTimer(
		c.GetBaseURL(), method, opts.TemplatePath,
	)

	resp, err := c.GetHttpClient().Do(req)
	if err != nil {
		stopTimer(0)
		return nil, err
	}
	defer resp.Body.Close()
	stopTimer(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("request to %s failed with status %d: %s",
			opts.TemplatePath, resp.StatusCode, string(payload))
	}

	var decoded Resp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &decoded, nil
}

// Package client talks to the OCR service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ffmemes-ocr/api/internal/ocr"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 200 * time.Second},
	}
}

// Response holds either the detections or the service error message.
type Response struct {
	Result ocr.Result
	Error  string
	// Raw is the body as received, for printing.
	Raw       json.RawMessage
	RequestID string
}

func (r Response) Failed() bool { return r.Error != "" }

// Predict posts raw image bytes to /predict?lang=<lang>. lang is always sent,
// so an explicit empty value reaches the service as lang= and selects English.
func (c *Client) Predict(ctx context.Context, image []byte, lang string) (Response, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return Response{}, fmt.Errorf("bad base url: %w", err)
	}
	u = u.JoinPath("predict")
	q := u.Query()
	q.Set("lang", lang)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(image))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	out := Response{Raw: body, RequestID: resp.Header.Get("X-Request-ID")}
	if resp.StatusCode != http.StatusOK {
		var er ocr.ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return out, fmt.Errorf("ocr service: %s (%d)", er.Error, resp.StatusCode)
		}
		return out, fmt.Errorf("ocr service: status %d", resp.StatusCode)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var er ocr.ErrorResponse
		if err := json.Unmarshal(trimmed, &er); err != nil {
			return out, fmt.Errorf("decode error body: %w", err)
		}
		out.Error = er.Error
		return out, nil
	}
	if err := json.Unmarshal(trimmed, &out.Result); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

// Healthz returns nil when /healthz answers 200.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("healthz: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

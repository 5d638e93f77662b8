// Package commerce はリモートのコマースAPI（カート・商品・注文）を呼ぶHTTPクライアント。
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// レスポンスの上限（10MB）
const maxResponseSize = 10 * 1024 * 1024

const (
	headerIdempotencyKey = "X-Idempotency-Key"
	headerCorrelation    = "X-Session-Correlation"
)

// APIError はリモートが返した非2xx。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce api: %d %s", e.Status, e.Message)
}

func (e *APIError) RemoteStatus() int     { return e.Status }
func (e *APIError) RemoteMessage() string { return e.Message }

// Unwrap で 404 を repository.ErrNotFound として扱えるようにする
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return repo.ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type requestOption func(*http.Request)

func withHeader(k, v string) requestOption {
	return func(r *http.Request) {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
}

// do はJSONで送ってJSONで受ける。out が nil なら本文を読み捨てる。
func (c *Client) do(ctx context.Context, method string, path string, who model.Identity, in any, out any, opts ...requestOption) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("commerce api: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("commerce api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+who.AccessToken)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("commerce api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("commerce api: decode response: %w", err)
	}
	return nil
}

// IsRemoteRejection はリモートが業務的に拒否した（4xx）か。
func IsRemoteRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

// CartAPI は cart/* を担当する。
type CartAPI struct{ *Client }

// ProductAPI は product/* を担当する。
type ProductAPI struct{ *Client }

// OrderAPI は order/* を担当する。
type OrderAPI struct{ *Client }

func (c *Client) Carts() *CartAPI       { return &CartAPI{c} }
func (c *Client) Products() *ProductAPI { return &ProductAPI{c} }
func (c *Client) Orders() *OrderAPI     { return &OrderAPI{c} }

package cloudevent

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature-256"

const (
	userAgent = "assetgraph-notifier/1"
	// maxDetail bounds how much of an error response ends up in HTTPError.
	maxDetail = 512
)

// Sender posts events in structured JSON mode, with the binary-mode Ce-* headers
// copied so receivers can route without parsing the body.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given per-request timeout.
func NewSender(timeout time.Duration) *Sender {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	return &Sender{client: &http.Client{Timeout: timeout, Transport: transport}}
}

// Send posts event to url. A non-empty signingKey adds an X-Signature-256 header.
func (s *Sender) Send(ctx context.Context, url string, event *Event, signingKey string) error {
	req, err := newRequest(ctx, url, event, signingKey)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", event.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetail))
	_, _ = io.Copy(io.Discard, resp.Body)
	return &HTTPError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
}

func newRequest(ctx context.Context, url string, event *Event, signingKey string) (*http.Request, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	h := req.Header
	h.Set("Content-Type", "application/cloudevents+json")
	h.Set("User-Agent", userAgent)
	h.Set("Ce-Specversion", event.SpecVersion)
	h.Set("Ce-Id", event.ID)
	h.Set("Ce-Type", event.Type)
	h.Set("Ce-Source", event.Source)
	h.Set("Ce-Time", event.Time.Format(time.RFC3339Nano))
	if event.Subject != "" {
		h.Set("Ce-Subject", event.Subject)
	}
	if signingKey != "" {
		h.Set(SignatureHeader, Signature(body, signingKey))
	}
	return req, nil
}

// Signature returns "sha256=" followed by the hex HMAC-SHA256 of payload.
func Signature(payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under key. Receivers use it
// to check deliveries.
func Verify(payload []byte, key, signature string) bool {
	return hmac.Equal([]byte(Signature(payload, key)), []byte(signature))
}

// HTTPError is a non-2xx response. Detail holds the start of the response body.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

// Retryable reports whether a failed send may succeed if repeated. Client
// errors other than 408 and 429 are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if !errors.As(err, &he) {
		return true
	}
	switch he.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return he.StatusCode < 400 || he.StatusCode >= 500
}

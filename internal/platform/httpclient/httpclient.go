// Package httpclient: cliente JSON mínimo para adapters salientes (webhooks).
package httpclient

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
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	UserAgent      = "medication-adherence/1.0"

	// SignatureHeader lleva "sha256=<hex>" del body cuando hay secreto.
	SignatureHeader = "X-Adherence-Signature"

	maxBody = 1 << 20
)

type Options struct {
	Timeout   time.Duration
	Transport http.RoundTripper // opcional (tests)

	// Secret firma cada body con HMAC-SHA256.
	Secret string
}

type Client struct {
	http   *http.Client
	secret []byte
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	c := &http.Client{Timeout: opts.Timeout}
	if opts.Transport != nil {
		c.Transport = opts.Transport
	}
	out := &Client{http: c}
	if opts.Secret != "" {
		out.secret = []byte(opts.Secret)
	}
	return out
}

// HTTPError: respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable: 429 y 5xx. El cliente no reintenta; decide quien llama.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ValidateURL exige URL absoluta http(s).
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url scheme %q", u.Scheme)
	}
	return nil
}

// PostJSON serializa in, firma si corresponde y decodifica out si viene.
func (c *Client) PostJSON(ctx context.Context, target string, headers map[string]string, in, out any) error {
	if c == nil || c.http == nil {
		return errors.New("httpclient: nil client")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("httpclient: marshal json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpclient: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if len(c.secret) > 0 {
		req.Header.Set(SignatureHeader, "sha256="+Sign(c.secret, body))
	}
	for k, v := range headers {
		if strings.TrimSpace(k) != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("httpclient: unmarshal json: %w", err)
	}
	return nil
}

// Sign devuelve el HMAC-SHA256 hex de body.
func Sign(secret, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// Verify compara en tiempo constante una firma "sha256=<hex>".
func Verify(secret, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(got), []byte(Sign(secret, body)))
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"github.com/synaptica-ai/pseudonym/pkg/common/models"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	maxDelay         = 2 * time.Second
)

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pseudonym service returned %d: %s", e.Code, e.Message)
}

// Client calls the pseudonymization API of a remote deid-service. Lookups
// and recomputation are retried on transport errors and 5xx responses.
// Pseudonymize is sent once: a repeated run would issue a second keyfile.
type Client struct {
	baseURL string
	token   string
	retry   *retryablehttp.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRetry sets the total number of attempts and the first backoff wait.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.retry.RetryMax = attempts - 1
		c.retry.RetryWaitMin = baseDelay
		if c.retry.RetryWaitMax < baseDelay {
			c.retry.RetryWaitMax = baseDelay
		}
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = newHTTPClient(timeout)
	rc.RetryMax = defaultAttempts - 1
	rc.RetryWaitMin = defaultBaseDelay
	rc.RetryWaitMax = maxDelay
	rc.Logger = nil
	rc.CheckRetry = retryPolicy
	rc.RequestLogHook = requestLogHook
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type singleAttemptKey struct{}

func singleAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, singleAttemptKey{}, true)
}

// retryPolicy wraps the default policy and never repeats a request marked
// as single attempt.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	if !retry {
		return false, checkErr
	}
	if once, _ := ctx.Value(singleAttemptKey{}).(bool); once {
		return false, checkErr
	}

	reason := "unknown"
	if err != nil {
		reason = err.Error()
	} else if resp != nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	logger.WithField("reason", reason).Debug("retrying pseudonym service request")
	return true, checkErr
}

func requestLogHook(_ retryablehttp.Logger, req *http.Request, attempt int) {
	logger.WithFields(map[string]interface{}{
		"method":  req.Method,
		"path":    req.URL.Path,
		"attempt": attempt + 1,
	}).Debug("pseudonym service request")
}

func (c *Client) Pseudonymize(ctx context.Context, req models.PseudonymizeRequest) (models.PseudonymizeResponse, error) {
	var resp models.PseudonymizeResponse
	err := c.do(singleAttempt(ctx), http.MethodPost, "/api/v1/pseudonymize", req, &resp)
	return resp, err
}

// Recompute has no side effects on the service, so it is retried like a GET.
func (c *Client) Recompute(ctx context.Context, req models.RecomputeRequest) (string, error) {
	var resp models.RecomputeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/recompute", req, &resp); err != nil {
		return "", err
	}
	return resp.Label, nil
}

// Reidentify looks up a counter or random label. runID scopes the lookup to
// one run; without it the service refuses labels issued by several runs.
func (c *Client) Reidentify(ctx context.Context, runID, label string) (models.ReidentifyResponse, error) {
	path := "/api/v1/labels/" + url.PathEscape(label)
	if runID != "" {
		path = "/api/v1/runs/" + url.PathEscape(runID) + "/labels/" + url.PathEscape(label)
	}
	var resp models.ReidentifyResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.retry.Do(req)
	if resp == nil {
		if err == nil {
			err = fmt.Errorf("%s %s: no response", method, path)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(msg)}
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

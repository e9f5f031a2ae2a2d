package webc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"llm-gateway/domain/provider"

	"github.com/sirupsen/logrus"
)

// Doer executes prepared web requests. Adapters hand it WebRequestData and
// never see the HTTP layer; retry policy lives here, not in adapters.
type Doer interface {
	// Do executes a request and returns the response body. Non-2xx replies
	// surface as *StatusError.
	Do(ctx context.Context, data *provider.WebRequestData) ([]byte, error)
	// Stream executes a request and returns the live response body for
	// incremental decoding. The caller owns closing it.
	Stream(ctx context.Context, data *provider.WebRequestData) (io.ReadCloser, error)
}

// StatusError is a completed exchange with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// Client is the HTTP transport collaborator with connection pooling and
// bounded retries for retryable statuses.
type Client struct {
	httpClient *http.Client
	// streamClient has no overall timeout; a stream lives as long as the
	// consumer keeps polling. Cancellation comes from the context.
	streamClient *http.Client
	maxRetries   int
	rng          *rand.Rand
	rngMutex     sync.Mutex
}

func NewClient() *Client {
	// Configure HTTP client with connection pooling
	transport := &http.Transport{
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       200,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    false,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: transport,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
		maxRetries: 3,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Client) newRequest(ctx context.Context, data *provider.WebRequestData) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", data.URL, bytes.NewReader(data.Payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range data.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) Do(ctx context.Context, data *provider.WebRequestData) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, plus up to 250ms jitter
			base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.rngMutex.Lock()
			jitter := time.Duration(c.rng.Intn(250)) * time.Millisecond
			c.rngMutex.Unlock()
			backoff := base + jitter
			logrus.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"backoff": backoff,
			}).Info("Retrying provider call after backoff")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := c.newRequest(ctx, data)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("do: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read: %w", err)
			continue
		}

		// Retry on server errors (5xx) or rate limiting (429)
		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			lastErr = &StatusError{Status: resp.StatusCode, Body: string(body)}
			logrus.WithFields(logrus.Fields{
				"status":  resp.StatusCode,
				"url":     data.URL,
				"attempt": attempt + 1,
			}).Warn("Retryable provider error")
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
		}

		return body, nil
	}

	return nil, fmt.Errorf("provider call failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) Stream(ctx context.Context, data *provider.WebRequestData) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	return resp.Body, nil
}

package webc

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"llm-gateway/domain/provider"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for circuit breaker behavior.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold uint32        `yaml:"success_threshold" json:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests"`
}

// DefaultBreakerConfig returns sensible defaults for circuit breaker
// configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,                // Open after 5 consecutive failures
		SuccessThreshold: 2,                // Close after 2 successes in half-open state
		Timeout:          60 * time.Second, // Stay open for 60 seconds
		MaxRequests:      3,                // Allow max 3 requests in half-open state
	}
}

// BreakerClient wraps a Doer with circuit breaker protection. It keeps a
// separate breaker per provider host for granular failure isolation.
type BreakerClient struct {
	inner    Doer
	config   BreakerConfig
	breakers map[string]*gobreaker.CircuitBreaker
	mutex    sync.RWMutex
}

func NewBreakerClient(inner Doer, config BreakerConfig) *BreakerClient {
	return &BreakerClient{
		inner:    inner,
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *BreakerClient) Do(ctx context.Context, data *provider.WebRequestData) ([]byte, error) {
	if !c.config.Enabled {
		return c.inner.Do(ctx, data)
	}

	host := requestHost(data)
	breaker := c.getOrCreateBreaker(host)

	result, err := breaker.Execute(func() (interface{}, error) {
		return c.inner.Do(ctx, data)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logrus.WithFields(logrus.Fields{
				"host":  host,
				"state": breaker.State(),
			}).Warn("Circuit breaker is open, failing fast")
			return nil, fmt.Errorf("circuit breaker open for %s: requests are being rejected to prevent cascade failures", host)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *BreakerClient) Stream(ctx context.Context, data *provider.WebRequestData) (io.ReadCloser, error) {
	if !c.config.Enabled {
		return c.inner.Stream(ctx, data)
	}

	host := requestHost(data)
	breaker := c.getOrCreateBreaker(host)

	result, err := breaker.Execute(func() (interface{}, error) {
		return c.inner.Stream(ctx, data)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logrus.WithFields(logrus.Fields{
				"host":  host,
				"state": breaker.State(),
			}).Warn("Circuit breaker is open for streaming, failing fast")
			return nil, fmt.Errorf("circuit breaker open for %s: streaming requests are being rejected to prevent cascade failures", host)
		}
		return nil, err
	}
	return result.(io.ReadCloser), nil
}

// States returns the current state of all breakers for monitoring.
func (c *BreakerClient) States() map[string]gobreaker.State {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	states := make(map[string]gobreaker.State, len(c.breakers))
	for host, breaker := range c.breakers {
		states[host] = breaker.State()
	}
	return states
}

func (c *BreakerClient) getOrCreateBreaker(host string) *gobreaker.CircuitBreaker {
	c.mutex.RLock()
	if breaker, exists := c.breakers[host]; exists {
		c.mutex.RUnlock()
		return breaker
	}
	c.mutex.RUnlock()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Double-check pattern: another goroutine might have created it while
	// we waited.
	if breaker, exists := c.breakers[host]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("provider-%s", host),
		MaxRequests: c.config.MaxRequests,
		Interval:    0, // No automatic clearing of counts (we rely on timeout)
		Timeout:     c.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= c.config.FailureThreshold &&
				counts.TotalFailures >= c.config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"host":       host,
				"from_state": from,
				"to_state":   to,
			}).Info("Circuit breaker state changed")
		},
	}

	breaker := gobreaker.NewCircuitBreaker(settings)
	c.breakers[host] = breaker

	logrus.WithField("host", host).Info("Created new circuit breaker for provider host")
	return breaker
}

func requestHost(data *provider.WebRequestData) string {
	if u, err := url.Parse(data.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return "default"
}

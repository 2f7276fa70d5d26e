package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

// Client wraps the OpenSearch connection used by the filter-mode scope
// resolver.
type Client struct {
	client  *opensearch.Client
	cfg     config.OpenSearchConfig
	logger  logging.Logger
	healthy atomic.Bool
}

// NewClient connects to the cluster and verifies reachability.
func NewClient(ctx context.Context, cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "opensearch addresses are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		Transport:     transport,
		MaxRetries:    3,
		RetryBackoff:  func(int) time.Duration { return 100 * time.Millisecond },
		RetryOnStatus: []int{429, 502, 503, 504},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUpstreamError, "failed to create opensearch client")
	}

	c := &Client{client: osClient, cfg: cfg, logger: logger.Named("opensearch")}
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUpstreamError, "opensearch cluster unreachable")
	}

	logger.Info("connected to OpenSearch", logging.Any("addresses", cfg.Addresses))
	return c, nil
}

// Ping checks cluster reachability and updates the health flag.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.healthy.Store(false)
		return errors.Newf(errors.ErrCodeUpstreamError, "opensearch ping returned status %d", resp.StatusCode)
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the result of the last ping.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *Client) api() *opensearch.Client {
	return c.client
}

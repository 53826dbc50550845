package ergoclient

import (
	"context"
	"math/rand"
	"net/url"
	"strconv"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shark-explorer/shark-indexer/common"
	"github.com/shark-explorer/shark-indexer/common/errs"
	"github.com/shark-explorer/shark-indexer/pkg/httpclient"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
	"github.com/valyala/fasthttp"
)

const (
	// apiKeyHeader is the literal header name the node authenticates with.
	apiKeyHeader = "api_key"

	defaultRequestTimeout = 30 * time.Second
	defaultCacheTTL       = time.Hour

	retryBaseDelay   = 200 * time.Millisecond
	retryMaxDelay    = 5 * time.Second
	retryMaxAttempts = 6
)

type Config struct {
	// URL is the base URL of the node REST API, e.g. "http://127.0.0.1:9053".
	URL string

	// APIKey is attached to every request when set.
	APIKey string

	// RequestTimeout bounds a single HTTP round trip. Defaults to 30s.
	RequestTimeout time.Duration

	// Debug enables request logging on the underlying HTTP client.
	Debug bool

	// CacheClient enables read-through caching of immutable-by-id lookups
	// when set. Node status and height lookups are never cached.
	CacheClient redis.UniversalClient

	// CacheTTL is the lifetime of cached responses. Defaults to an hour.
	CacheTTL time.Duration
}

type Client struct {
	httpClient *httpclient.Client
	cache      redis.UniversalClient
	cacheTTL   time.Duration
}

var _ Contract = (*Client)(nil)

func New(config Config) (*Client, error) {
	headers := make(map[string]string)
	if config.APIKey != "" {
		headers[apiKeyHeader] = config.APIKey
	}
	httpClient, err := httpclient.New(config.URL, httpclient.Config{
		Debug:   config.Debug,
		Headers: headers,
		Timeout: utils.Default(config.RequestTimeout, defaultRequestTimeout),
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	return &Client{
		httpClient: httpClient,
		cache:      config.CacheClient,
		cacheTTL:   utils.Default(config.CacheTTL, defaultCacheTTL),
	}, nil
}

func (c *Client) Info(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := c.get(ctx, "/info", nil, &info); err != nil {
		return nil, errors.WithStack(err)
	}
	return &info, nil
}

func (c *Client) BlockIDsAtHeight(ctx context.Context, height int64) ([]string, error) {
	var ids []string
	if err := c.get(ctx, "/blocks/at/"+strconv.FormatInt(height, 10), nil, &ids); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(errs.NotFound, "no block at height %d", height)
	}
	return ids, nil
}

func (c *Client) BlockByID(ctx context.Context, id string) (*FullBlock, error) {
	if !common.IsHexID(id) {
		return nil, errors.Wrapf(errs.InvalidArgument, "malformed block id %q", id)
	}
	var block FullBlock
	if c.cacheGet(ctx, cacheKeyBlock+id, &block) {
		return &block, nil
	}
	if err := c.get(ctx, "/blocks/"+id, nil, &block); err != nil {
		return nil, errors.WithStack(err)
	}
	c.cacheSet(ctx, cacheKeyBlock+id, &block)
	return &block, nil
}

func (c *Client) HeaderByID(ctx context.Context, id string) (*BlockHeader, error) {
	if !common.IsHexID(id) {
		return nil, errors.Wrapf(errs.InvalidArgument, "malformed block id %q", id)
	}
	var header BlockHeader
	if c.cacheGet(ctx, cacheKeyHeader+id, &header) {
		return &header, nil
	}
	if err := c.get(ctx, "/blocks/"+id+"/header", nil, &header); err != nil {
		return nil, errors.WithStack(err)
	}
	c.cacheSet(ctx, cacheKeyHeader+id, &header)
	return &header, nil
}

func (c *Client) UnconfirmedTransactions(ctx context.Context, limit, offset int32) ([]Transaction, error) {
	query := url.Values{
		"limit":  []string{strconv.FormatInt(int64(limit), 10)},
		"offset": []string{strconv.FormatInt(int64(offset), 10)},
	}
	var txs []Transaction
	if err := c.get(ctx, "/transactions/unconfirmed", query, &txs); err != nil {
		return nil, errors.WithStack(err)
	}
	return txs, nil
}

// get performs a GET with retries on transient failures. Client errors and
// missing resources are returned without retrying.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-time.After(backoffDelay(attempt)):
			}
			logger.DebugContext(ctx, "retrying node request",
				slogx.String("path", path),
				slogx.Int("attempt", attempt+1),
				slogx.Error(lastErr),
			)
		}
		err := c.getOnce(ctx, path, query, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.httpClient.Get(ctx, path, httpclient.RequestOptions{Query: query})
	if err != nil {
		if errors.Is(err, errs.Timeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return errors.WithStack(err)
		}
		return errors.Wrapf(errs.Unavailable, "node request failed: %v", err)
	}
	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusNotFound:
		return errors.Wrapf(errs.NotFound, "%s", path)
	case code >= 400 && code < 500:
		return errors.Wrapf(errs.BadRequest, "node rejected %s with status %d", path, code)
	case code >= 500:
		return errors.Wrapf(errs.Unavailable, "node returned status %d for %s", code, path)
	}
	if out != nil {
		if err := resp.UnmarshalBody(out); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, errs.Unavailable) || errors.Is(err, errs.Timeout)
}

// backoffDelay implements full-jitter exponential backoff.
func backoffDelay(attempt int) time.Duration {
	ceiling := retryBaseDelay << (attempt - 1)
	if ceiling > retryMaxDelay {
		ceiling = retryMaxDelay
	}
	return time.Duration(rand.Int63n(int64(ceiling)) + 1)
}

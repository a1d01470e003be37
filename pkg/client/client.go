// Package client talks to the routing aggregator's HTTP API: route
// quotes, step-transaction construction and cross-chain status.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"xswap/pkg/cache"
	"xswap/pkg/swaperr"
	"xswap/pkg/types"
)

const (
	// DefaultTimeout bounds every aggregator call.
	DefaultTimeout = 15 * time.Second
	// StepTransactionTimeout is longer: constructing calldata for a
	// complex bridge leg can take the aggregator most of a minute.
	StepTransactionTimeout = 90 * time.Second

	maxRetries     = 2
	retryBaseDelay = time.Second

	referenceTTL = 5 * time.Minute
)

var log = logrus.WithField("pkg", "client")

// Client is the aggregator API client. Chain and token lists are
// served from the injected cache when fresh.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	cache     *cache.Cache
	sanitizer *Sanitizer

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	limited   bool
}

// New creates a client. cache may be nil to disable reference-data
// caching; sanitizer may be nil to skip token sanitation.
func New(baseURL, apiKey string, c *cache.Cache, s *Sanitizer) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		http:      &http.Client{},
		cache:     c,
		sanitizer: s,
	}
}

// Chains returns the aggregator's chain list, cached for five minutes.
func (c *Client) Chains(ctx context.Context) ([]types.Chain, error) {
	var cached []types.Chain
	if c.cache.Get("chains", &cached) {
		return cached, nil
	}

	var resp struct {
		Chains []types.Chain `json:"chains"`
	}
	if err := c.do(ctx, http.MethodGet, "/chains", nil, &resp, DefaultTimeout); err != nil {
		return nil, err
	}
	c.cache.Put("chains", resp.Chains, referenceTTL)
	return resp.Chains, nil
}

// Tokens returns the sanitized token lists for the given chains,
// cached for five minutes. The raw upstream response is never cached:
// only the sanitized view is.
func (c *Client) Tokens(ctx context.Context, chains []int64) (map[int64][]types.Token, error) {
	key := tokensCacheKey(chains)
	var cached map[int64][]types.Token
	if c.cache.Get(key, &cached) {
		return cached, nil
	}

	q := url.Values{}
	for _, id := range chains {
		q.Add("chains", strconv.FormatInt(id, 10))
	}
	var resp struct {
		Tokens map[string][]types.Token `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodGet, "/tokens?"+q.Encode(), nil, &resp, DefaultTimeout); err != nil {
		return nil, err
	}

	out := make(map[int64][]types.Token, len(resp.Tokens))
	for idStr, toks := range resp.Tokens {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			log.WithField("chain", idStr).Warn("dropping token list with unparseable chain id")
			continue
		}
		out[id] = c.sanitizer.SanitizeTokens(id, toks)
	}
	c.cache.Put(key, out, referenceTTL)
	return out, nil
}

func tokensCacheKey(chains []int64) string {
	key := "tokens"
	for _, id := range chains {
		key += fmt.Sprintf(":%d", id)
	}
	return key
}

// Routes requests candidate routes for a swap. The caller is expected
// to validate and timestamp them; no caching applies to quotes.
func (c *Client) Routes(ctx context.Context, req *types.RoutesRequest) ([]*types.Route, error) {
	var resp struct {
		Routes []*types.Route `json:"routes"`
	}
	if err := c.do(ctx, http.MethodPost, "/routes", req, &resp, DefaultTimeout); err != nil {
		return nil, err
	}
	return resp.Routes, nil
}

// StepTransaction asks the aggregator to build the concrete
// transaction payload for one step.
func (c *Client) StepTransaction(ctx context.Context, step *types.Step) (*types.TransactionRequest, error) {
	var resp struct {
		TransactionRequest *types.TransactionRequest `json:"transactionRequest"`
	}
	if err := c.do(ctx, http.MethodPost, "/stepTransaction", step, &resp, StepTransactionTimeout); err != nil {
		return nil, err
	}
	if resp.TransactionRequest == nil {
		return nil, swaperr.New(swaperr.KindValidation, "aggregator returned no transaction request")
	}
	return resp.TransactionRequest, nil
}

// Status reports the aggregator's view of a submitted transaction.
// bridge may be empty for same-chain swaps.
func (c *Client) Status(ctx context.Context, txHash, bridge string, fromChain, toChain int64) (*types.StatusReport, error) {
	q := url.Values{}
	q.Set("txHash", txHash)
	if bridge != "" {
		q.Set("bridge", bridge)
	}
	q.Set("fromChain", strconv.FormatInt(fromChain, 10))
	q.Set("toChain", strconv.FormatInt(toChain, 10))

	var resp types.StatusReport
	if err := c.do(ctx, http.MethodGet, "/status?"+q.Encode(), nil, &resp, DefaultTimeout); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one logical API call: per-call timeout, up to two
// retries with doubling backoff, rate-limit accounting. Cancellation
// is never retried.
func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}, timeout time.Duration) error {
	if err := c.checkRateLimit(); err != nil {
		return err
	}

	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err := c.doOnce(ctx, method, path, body, dest, timeout)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retriable(err) {
			return err
		}
		lastErr = err
		log.WithError(err).WithFields(logrus.Fields{"path": path, "attempt": attempt + 1}).Debug("retrying aggregator call")
	}
	return swaperr.Wrap(swaperr.KindNetwork, lastErr, "aggregator request failed after retries")
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, dest interface{}, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return swaperr.Wrap(swaperr.KindValidation, err, "encoding request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return swaperr.Wrap(swaperr.KindValidation, err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return swaperr.Wrap(swaperr.KindNetwork, err, "aggregator request")
	}
	defer resp.Body.Close()

	c.updateRateLimit(resp)

	if resp.StatusCode == http.StatusTooManyRequests {
		return &swaperr.RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode >= 500 {
		return swaperr.New(swaperr.KindNetwork, "aggregator returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return swaperr.New(swaperr.KindValidation, "aggregator rejected request: %s", apiErrorMessage(resp))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return swaperr.Wrap(swaperr.KindNetwork, err, "decoding response")
	}
	return nil
}

// apiErrorMessage pulls the message field out of an error response so
// the user sees the aggregator's reason, not just a status code.
func apiErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, string(data))
}

func retriable(err error) bool {
	if _, ok := err.(*swaperr.RateLimitError); ok {
		return false
	}
	return swaperr.KindOf(err) == swaperr.KindNetwork
}

// checkRateLimit fails fast while the remaining-quota counter is
// exhausted, without hitting the network.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.limited {
		return nil
	}
	if time.Now().After(c.resetAt) {
		c.limited = false
		return nil
	}
	return &swaperr.RateLimitError{RetryAfter: time.Until(c.resetAt)}
}

func (c *Client) updateRateLimit(resp *http.Response) {
	rem := resp.Header.Get("X-RateLimit-Remaining")
	if rem == "" {
		return
	}
	remaining, err := strconv.Atoi(rem)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = remaining
	if remaining <= 0 {
		c.limited = true
		c.resetAt = time.Now().Add(retryAfterHeader(resp))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	return retryAfterHeader(resp)
}

func retryAfterHeader(resp *http.Response) time.Duration {
	for _, h := range []string{"Retry-After", "X-RateLimit-Reset"} {
		if v := resp.Header.Get(h); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Minute
}

// Package quote owns the current quote request: it debounces input
// changes, cancels superseded fetches, and discards responses that
// arrive after a newer request has started.
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"xswap/pkg/route"
	"xswap/pkg/swaperr"
	"xswap/pkg/types"
)

const (
	// DefaultDebounce is how long input must be quiet before a fetch
	// actually goes out.
	DefaultDebounce = 800 * time.Millisecond
	// FreshnessWindow is how long a fetched route stays usable. It is
	// enforced again at execution time, not only at selection time.
	FreshnessWindow = 60 * time.Second
)

var log = logrus.WithField("pkg", "quote")

// RouteSource fetches candidate routes; satisfied by client.Client.
type RouteSource interface {
	Routes(ctx context.Context, req *types.RoutesRequest) ([]*types.Route, error)
}

// Params is the logical input tuple a quote request is keyed by.
type Params struct {
	FromChainID int64
	ToChainID   int64
	FromToken   string
	ToToken     string
	FromAmount  string // atomic units
	FromAddress string
	ToAddress   string
	Slippage    float64
}

// Update is delivered for the latest-generation response only.
type Update struct {
	Generation uint64
	Params     Params
	Routes     []*types.Route
	Err        error
}

// Coordinator keeps exactly one quote request current. Each new
// Request cancels the in-flight fetch and bumps a generation counter;
// a response is applied only if its generation still matches, so a
// slow stale response can never overwrite the result for newer input.
type Coordinator struct {
	source    RouteSource
	debounce  time.Duration
	freshness time.Duration
	now       func() time.Time

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool
	updates chan Update
}

// Option tweaks coordinator behavior (used mainly by tests).
type Option func(*Coordinator)

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithFreshness overrides the freshness window.
func WithFreshness(d time.Duration) Option {
	return func(c *Coordinator) { c.freshness = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator. Updates() carries at most the latest
// result; consume it from a single goroutine.
func New(source RouteSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		debounce:  DefaultDebounce,
		freshness: FreshnessWindow,
		now:       time.Now,
		updates:   make(chan Update, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Updates returns the channel carrying latest-generation results.
func (c *Coordinator) Updates() <-chan Update { return c.updates }

// Request schedules a quote fetch for params after the debounce
// interval, superseding any pending or in-flight request.
func (c *Coordinator) Request(params Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.gen++
	gen := c.gen

	// Supersede: stop the pending debounce timer and cancel the
	// network call for the previous generation.
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	// A malformed address must never reach the aggregator: routes built
	// for it would direct funds to an unusable recipient.
	if err := validateAddresses(params); err != nil {
		c.deliverLocked(gen, Update{Generation: gen, Params: params, Err: err})
		return
	}

	c.timer = time.AfterFunc(c.debounce, func() {
		c.fetch(gen, params)
	})
}

func validateAddresses(params Params) error {
	if params.FromAddress != "" && !common.IsHexAddress(params.FromAddress) {
		return swaperr.New(swaperr.KindValidation, "invalid sender address %q", params.FromAddress)
	}
	if params.ToAddress != "" && !common.IsHexAddress(params.ToAddress) {
		return swaperr.New(swaperr.KindValidation, "invalid recipient address %q", params.ToAddress)
	}
	return nil
}

func (c *Coordinator) fetch(gen uint64, params Params) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.cancel = cancel
	c.mu.Unlock()

	routes, err := c.source.Routes(ctx, &types.RoutesRequest{
		FromChainID: params.FromChainID,
		ToChainID:   params.ToChainID,
		FromToken:   params.FromToken,
		ToToken:     params.ToToken,
		FromAmount:  params.FromAmount,
		FromAddress: params.FromAddress,
		ToAddress:   params.ToAddress,
		Slippage:    params.Slippage,
	})

	update := Update{Generation: gen, Params: params}
	if err != nil {
		if ctx.Err() != nil {
			// Superseded mid-flight; the newer generation owns the
			// channel now.
			return
		}
		update.Err = err
	} else {
		update.Routes, update.Err = c.screen(routes)
	}

	c.deliver(gen, update)
}

// screen drops structurally invalid routes and stamps survivors with
// the retrieval time. An empty surviving set is a domain condition
// distinct from network failure.
func (c *Coordinator) screen(routes []*types.Route) ([]*types.Route, error) {
	fetchedAt := c.now()
	valid := make([]*types.Route, 0, len(routes))
	for _, r := range routes {
		res := route.Validate(r)
		if !res.Valid {
			log.WithFields(logrus.Fields{"route": r.ID, "errors": res.Errors}).
				Warn("dropping invalid route from aggregator")
			continue
		}
		for _, w := range res.Warnings {
			log.WithField("route", r.ID).Warn(w)
		}
		r.FetchedAt = fetchedAt
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return nil, swaperr.New(swaperr.KindNoRoute, "no route found for the requested swap")
	}
	return valid, nil
}

// deliver applies an update only if its generation is still current.
// The channel holds the latest result; an unconsumed older one is
// replaced.
func (c *Coordinator) deliver(gen uint64, update Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliverLocked(gen, update)
}

func (c *Coordinator) deliverLocked(gen uint64, update Update) {
	if c.closed || gen != c.gen {
		return
	}
	select {
	case <-c.updates:
	default:
	}
	c.updates <- update
}

// Fresh reports whether a route is still inside the freshness window.
func (c *Coordinator) Fresh(r *types.Route) bool {
	return r != nil && r.Age(c.now()) <= c.freshness
}

// Close cancels any pending timer and in-flight fetch. No update is
// delivered after Close returns.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	close(c.updates)
}

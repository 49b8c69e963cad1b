// Package token obtains and renews the API credentials: the shared OAuth
// consumer identity, the ticket-to-OAuth1 exchange and the OAuth1-to-OAuth2
// exchange.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/transport"
)

// Consumer is the OAuth1 application identity shared by every client of
// this integration. It is a public bootstrap value, not a user secret, so
// it is cached for the process lifetime and never persisted.
type Consumer struct {
	Key    string `json:"consumer_key"`
	Secret string `json:"consumer_secret"`
}

// ConsumerProvider fetches and caches the consumer pair. Concurrent first
// callers share a single bootstrap fetch.
type ConsumerProvider struct {
	doer   transport.Doer
	url    string
	logger zerolog.Logger

	lock   sync.RWMutex
	cached *Consumer
	group  singleflight.Group
}

// NewConsumerProvider initializes a provider against the bootstrap URL.
func NewConsumerProvider(doer transport.Doer, url string, logger zerolog.Logger) (*ConsumerProvider, error) {
	if doer == nil {
		return nil, errors.New("[NewConsumerProvider] transport is required")
	}
	if url == "" {
		return nil, errors.New("[NewConsumerProvider] url is required")
	}
	return &ConsumerProvider{doer: doer, url: url, logger: logger}, nil
}

// Get returns the cached consumer pair, fetching it once on first use.
func (p *ConsumerProvider) Get(ctx context.Context) (*Consumer, error) {
	p.lock.RLock()
	cached := p.cached
	p.lock.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := p.group.Do("consumer", func() (interface{}, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Consumer), nil
}

func (p *ConsumerProvider) fetch(ctx context.Context) (*Consumer, error) {
	// Re-check under the flight: a racing caller may have populated the
	// cache between the fast path and Do.
	p.lock.RLock()
	cached := p.cached
	p.lock.RUnlock()
	if cached != nil {
		return cached, nil
	}

	resp, err := p.doer.Do(ctx, "GET", p.url, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[ConsumerProvider.fetch] bootstrap request")
	}
	if resp.Status != 200 {
		return nil, fmt.Errorf("[ConsumerProvider.fetch] bootstrap endpoint returned status %d", resp.Status)
	}

	var consumer Consumer
	if err := json.Unmarshal(resp.Body, &consumer); err != nil {
		return nil, errors.Wrap(err, "[ConsumerProvider.fetch] decoding bootstrap response")
	}
	if consumer.Key == "" || consumer.Secret == "" {
		return nil, errors.New("[ConsumerProvider.fetch] bootstrap response missing consumer key or secret")
	}

	p.lock.Lock()
	p.cached = &consumer
	p.lock.Unlock()
	p.logger.Debug().Msg("Cached OAuth consumer credentials")
	return &consumer, nil
}

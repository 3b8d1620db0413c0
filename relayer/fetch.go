// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"gitlab.com/jaxnet/bridged/types/chainhash"
)

// FetchConfig parameterizes the source-chain REST client.
type FetchConfig struct {
	// Endpoint is the base URL of a node exposing the REST interface,
	// e.g. http://127.0.0.1:8332.
	Endpoint string `yaml:"endpoint"`

	// Proxy, when set, routes every request through a SOCKS5 proxy.
	Proxy     string `yaml:"proxy"`
	ProxyUser string `yaml:"proxy_user"`
	ProxyPass string `yaml:"proxy_pass"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries caps the exponential backoff retry loop per request.
	MaxRetries uint64 `yaml:"max_retries"`

	// Parallelism is the number of concurrent block downloads in a range
	// fetch.
	Parallelism int `yaml:"parallelism"`
}

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 5
	defaultParallelism = 4
)

// Client fetches headers and raw blocks over the bitcoind-style REST
// interface.  Every request is retried with exponential backoff; range
// fetches fan out over a bounded worker set and reassemble in height order.
type Client struct {
	endpoint    string
	http        *http.Client
	maxRetries  uint64
	parallelism int
}

// NewClient builds a Client from the config, applying defaults for unset
// limits.
func NewClient(cfg FetchConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("fetch endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	transport := &http.Transport{}
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		transport.Dial = func(network, addr string) (net.Conn, error) {
			return proxy.DialTimeout(network, addr, timeout)
		}
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		http:        &http.Client{Transport: transport, Timeout: timeout},
		maxRetries:  maxRetries,
		parallelism: parallelism,
	}, nil
}

// chainInfo is the subset of /rest/chaininfo.json the relayer needs.
type chainInfo struct {
	Blocks        uint64 `json:"blocks"`
	BestBlockHash string `json:"bestblockhash"`
}

// BestBlockNumber returns the current tip height of the source chain.
func (c *Client) BestBlockNumber(ctx context.Context) (uint64, error) {
	body, err := c.get(ctx, "/rest/chaininfo.json")
	if err != nil {
		return 0, err
	}
	var info chainInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, errors.Wrap(err, "decode chaininfo")
	}
	return info.Blocks, nil
}

// BlockHashAtNumber resolves a height to its block hash, in display byte
// order.
func (c *Client) BlockHashAtNumber(ctx context.Context, number uint64) (chainhash.Hash, error) {
	body, err := c.get(ctx, fmt.Sprintf("/rest/blockhashbyheight/%d.hex", number))
	if err != nil {
		return chainhash.Hash{}, err
	}

	hash, err := chainhash.NewHashFromStr(strings.TrimSpace(string(body)))
	if err != nil {
		return chainhash.Hash{}, errors.Wrapf(err, "decode block hash at %d", number)
	}
	// NewHashFromStr yields wire order; the ledger works in display order.
	return hash.Reversed(), nil
}

// RawBlock downloads the full serialized block with the given display-order
// hash.
func (c *Client) RawBlock(ctx context.Context, hash chainhash.Hash) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("/rest/block/%s.bin", hash.Reversed().String()))
}

// RawBlockAtNumber downloads the full serialized block at the given height.
func (c *Client) RawBlockAtNumber(ctx context.Context, number uint64) ([]byte, error) {
	hash, err := c.BlockHashAtNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return c.RawBlock(ctx, hash)
}

// BlockRange downloads the raw blocks for heights [from, to], fanning the
// downloads out over the client's parallelism and returning them in height
// order.  The first failure cancels the remaining downloads.
func (c *Client) BlockRange(ctx context.Context, from, to uint64) ([][]byte, error) {
	if to < from {
		return nil, errors.Errorf("invalid range %d..%d", from, to)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := int(to - from + 1)
	blocks := make([][]byte, total)
	heights := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	workers := c.parallelism
	if workers > total {
		workers = total
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range heights {
				raw, err := c.RawBlockAtNumber(ctx, from+uint64(i))
				if err != nil {
					fail(errors.Wrapf(err, "block %d", from+uint64(i)))
					return
				}
				blocks[i] = raw
			}
		}()
	}

	for i := 0; i < total; i++ {
		select {
		case heights <- i:
		case <-ctx.Done():
			i = total
		}
	}
	close(heights)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return blocks, nil
}

// get performs one GET against the endpoint, retried with exponential
// backoff.  Server-side errors retry, client-side errors (4xx) abort
// immediately.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(errors.Errorf("%s: status %s", path, resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("%s: status %s", path, resp.Status)
		}

		body, err = ioutil.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Str("path", path).Dur("retryIn", next).Msg("fetch failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	return body, nil
}

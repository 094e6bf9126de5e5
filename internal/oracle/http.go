package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"QuantSentinel/internal/model"
)

// HTTPOracle implements PriceOracle against a REST quote endpoint returning
// {"price": <integer>} in stable smallest units. Quotes are cached for the
// current tick so every call within one tick agrees.
type HTTPOracle struct {
	BaseURL string
	APIKey  string
	Client  *http.Client

	mu        sync.Mutex
	cacheTick model.Tick
	cache     map[string]uint64
}

// NewHTTPOracle creates a new oracle with optional proxy support.
func NewHTTPOracle(baseURL, apiKey, proxyURL string) *HTTPOracle {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPOracle{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		cache: make(map[string]uint64),
	}
}

func (o *HTTPOracle) Name() string { return "http" }

// PriceOf serves symbol from the tick cache or fetches it. The lock is not
// held during the request; if two fetches race, the first cached quote wins.
func (o *HTTPOracle) PriceOf(ctx context.Context, symbol string, tick model.Tick) (uint64, error) {
	if p, ok := o.cached(symbol, tick); ok {
		return p, nil
	}
	p, err := o.fetchQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetFor(tick)
	if cached, ok := o.cache[symbol]; ok {
		return cached, nil
	}
	o.cache[symbol] = p
	return p, nil
}

func (o *HTTPOracle) PricesOf(ctx context.Context, symbols []string, tick model.Tick) (map[string]uint64, error) {
	return pricesOf(ctx, o, symbols, tick)
}

func (o *HTTPOracle) cached(symbol string, tick model.Tick) (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetFor(tick)
	p, ok := o.cache[symbol]
	return p, ok
}

// resetFor drops the cache when tick moves. Callers hold mu.
func (o *HTTPOracle) resetFor(tick model.Tick) {
	if tick != o.cacheTick {
		o.cacheTick = tick
		o.cache = make(map[string]uint64)
	}
}

func (o *HTTPOracle) fetchQuote(ctx context.Context, symbol string) (uint64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", o.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("fetch quote %s: %w", symbol, model.ErrAssetNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("fetch quote %s: status %d, body: %s", symbol, resp.StatusCode, string(body))
	}
	var result struct {
		Price uint64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	if result.Price == 0 {
		return 0, fmt.Errorf("quote %s: %w", symbol, model.ErrInvalidPrice)
	}
	return result.Price, nil
}

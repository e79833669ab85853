package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPFeed is a PriceFeed client for a JSON price oracle exposing
// GET {baseURL}/price/{feedRef} → {"price": "...", "precision": n,
// "observed_at": "RFC3339"}.
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFeed creates a feed client. The per-call deadline comes from
// the caller's context; the http.Client timeout is a backstop.
func NewHTTPFeed(baseURL string) *HTTPFeed {
	return &HTTPFeed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type feedResponse struct {
	Price      decimal.Decimal `json:"price"`
	Precision  int32           `json:"precision"`
	ObservedAt time.Time       `json:"observed_at"`
}

func (f *HTTPFeed) GetPrice(ctx context.Context, feedRef string) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/price/"+feedRef, nil)
	if err != nil {
		return Quote{}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("price feed returned status %d for %s", resp.StatusCode, feedRef)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("decode price feed response: %w", err)
	}

	return Quote{
		Price:      body.Price,
		Precision:  body.Precision,
		ObservedAt: body.ObservedAt,
	}, nil
}

// StaticFeed serves fixed prices set at runtime. Used for development
// and tests; quotes are observed "now" on every call unless an explicit
// observation time was set.
type StaticFeed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	now    func() time.Time
}

// NewStaticFeed creates an empty static feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		quotes: make(map[string]Quote),
		now:    time.Now,
	}
}

// SetNow injects the time source used for default observation times.
func (f *StaticFeed) SetNow(now func() time.Time) { f.now = now }

// SetPrice sets the current price for feedRef, observed now.
func (f *StaticFeed) SetPrice(feedRef string, price decimal.Decimal, precision int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[feedRef] = Quote{Price: price, Precision: precision}
}

// SetQuote sets a full quote including its observation time.
func (f *StaticFeed) SetQuote(feedRef string, q Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[feedRef] = q
}

func (f *StaticFeed) GetPrice(_ context.Context, feedRef string) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q, ok := f.quotes[feedRef]
	if !ok {
		return Quote{}, fmt.Errorf("no price for feed ref %q", feedRef)
	}
	if q.ObservedAt.IsZero() {
		q.ObservedAt = f.now()
	}
	return q, nil
}

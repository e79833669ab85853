// Package pricing converts between credits and priced external assets
// using externally supplied price data. All conversion is fixed-point
// decimal arithmetic — never float64 — and rounds consistently in one
// direction: up when converting an amount the counterparty must pay,
// down when converting an amount the platform pays out.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RPS-Stake/rps-stake/internal/model"
)

var (
	// ErrAssetNotSupported is returned for unregistered assets.
	ErrAssetNotSupported = errors.New("pricing: asset not supported")

	// ErrAssetInactive is returned for registered but deactivated assets.
	ErrAssetInactive = errors.New("pricing: asset inactive")

	// ErrStalePrice is returned when the quote's observation time is
	// older than the configured freshness bound.
	ErrStalePrice = errors.New("pricing: stale price")

	// ErrOracleUnavailable is returned on transport failure or timeout
	// talking to the price feed.
	ErrOracleUnavailable = errors.New("pricing: oracle unavailable")

	// ErrPurchaseBounds is returned when a purchase amount falls outside
	// the asset's configured min/max bounds.
	ErrPurchaseBounds = errors.New("pricing: purchase amount out of bounds")

	// ErrAmountRange is returned when a conversion result cannot be
	// represented in credit units.
	ErrAmountRange = errors.New("pricing: amount out of representable range")
)

// Quote is one observation from the external price feed. Price is the
// value of one whole asset unit expressed in credits.
type Quote struct {
	Price      decimal.Decimal `json:"price"`
	Precision  int32           `json:"precision"`
	ObservedAt time.Time       `json:"observed_at"`
}

// PriceFeed is the external price oracle collaborator.
type PriceFeed interface {
	GetPrice(ctx context.Context, feedRef string) (Quote, error)
}

// Rounding selects the conversion direction.
type Rounding int

const (
	// RoundCharge rounds against the counterparty: amounts they must
	// pay are rounded up.
	RoundCharge Rounding = iota

	// RoundPayable rounds in the platform's favor: amounts paid out are
	// rounded down.
	RoundPayable
)

// Adapter owns the supported-asset registry and the staleness/timeout
// policy around the external feed. Stateless besides the registry.
type Adapter struct {
	mu        sync.RWMutex
	assets    map[string]*model.SupportedAsset
	feed      PriceFeed
	freshness time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// New creates an adapter over the given feed. Quotes older than
// freshness are rejected; feed calls are bounded by timeout.
func New(feed PriceFeed, freshness, timeout time.Duration) *Adapter {
	return &Adapter{
		assets:    make(map[string]*model.SupportedAsset),
		feed:      feed,
		freshness: freshness,
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetNow injects the time source used for staleness checks.
func (a *Adapter) SetNow(now func() time.Time) { a.now = now }

// RegisterAsset adds or replaces a supported asset. Admin-only.
func (a *Adapter) RegisterAsset(asset model.SupportedAsset) error {
	if asset.ID == "" || asset.FeedRef == "" {
		return fmt.Errorf("pricing: asset id and feed ref are required")
	}
	if asset.Precision < 0 || asset.MinPurchase < 0 || asset.MaxPurchase < asset.MinPurchase {
		return fmt.Errorf("pricing: invalid asset bounds for %s", asset.ID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	cp := asset
	a.assets[asset.ID] = &cp
	return nil
}

// DeactivateAsset marks an asset inactive. Admin-only.
func (a *Adapter) DeactivateAsset(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	asset, ok := a.assets[id]
	if !ok {
		return ErrAssetNotSupported
	}
	asset.Active = false
	return nil
}

// Asset returns the registry entry for id.
func (a *Adapter) Asset(id string) (model.SupportedAsset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	asset, ok := a.assets[id]
	if !ok {
		return model.SupportedAsset{}, ErrAssetNotSupported
	}
	return *asset, nil
}

// ListAssets returns all registered assets.
func (a *Adapter) ListAssets() []model.SupportedAsset {
	a.mu.RLock()
	defer a.mu.RUnlock()

	assets := make([]model.SupportedAsset, 0, len(a.assets))
	for _, asset := range a.assets {
		assets = append(assets, *asset)
	}
	return assets
}

// activeAsset resolves id to a registered, active asset.
func (a *Adapter) activeAsset(id string) (model.SupportedAsset, error) {
	asset, err := a.Asset(id)
	if err != nil {
		return model.SupportedAsset{}, err
	}
	if !asset.Active {
		return model.SupportedAsset{}, ErrAssetInactive
	}
	return asset, nil
}

// GetQuote fetches a fresh price for the asset, enforcing the staleness
// bound and the feed timeout.
func (a *Adapter) GetQuote(ctx context.Context, assetID string) (Quote, error) {
	asset, err := a.activeAsset(assetID)
	if err != nil {
		return Quote{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	q, err := a.feed.GetPrice(ctx, asset.FeedRef)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if !q.Price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: non-positive price %s", ErrOracleUnavailable, q.Price)
	}
	if a.now().Sub(q.ObservedAt) > a.freshness {
		return Quote{}, fmt.Errorf("%w: observed at %s", ErrStalePrice, q.ObservedAt.Format(time.RFC3339))
	}
	return q, nil
}

// CreditsToAssetAmount converts a credit amount into asset units at the
// current price, rounded to the asset's precision in the direction given
// by mode.
func (a *Adapter) CreditsToAssetAmount(ctx context.Context, assetID string, credits int64, mode Rounding) (decimal.Decimal, error) {
	if credits <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive credits %d", ErrAmountRange, credits)
	}
	asset, err := a.activeAsset(assetID)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := a.GetQuote(ctx, assetID)
	if err != nil {
		return decimal.Zero, err
	}

	// amount = credits / price. Extra guard digits before the final
	// directional rounding so the division itself cannot leak value.
	amount := decimal.NewFromInt(credits).DivRound(q.Price, asset.Precision+6)
	return roundTo(amount, asset.Precision, mode), nil
}

// AssetAmountToCredits converts an asset amount into credits at the
// current price, rounded to a whole credit in the direction given by
// mode.
func (a *Adapter) AssetAmountToCredits(ctx context.Context, assetID string, amount decimal.Decimal, mode Rounding) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: non-positive amount %s", ErrAmountRange, amount)
	}
	if _, err := a.activeAsset(assetID); err != nil {
		return 0, err
	}
	q, err := a.GetQuote(ctx, assetID)
	if err != nil {
		return 0, err
	}

	credits := roundTo(amount.Mul(q.Price), 0, mode)
	if credits.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("%w: %s credits", ErrAmountRange, credits)
	}
	return credits.IntPart(), nil
}

// CheckPurchaseBounds enforces the asset's min/max purchase bounds,
// independent of any ledger balance check.
func (a *Adapter) CheckPurchaseBounds(assetID string, credits int64) error {
	asset, err := a.activeAsset(assetID)
	if err != nil {
		return err
	}
	if credits < asset.MinPurchase || credits > asset.MaxPurchase {
		return fmt.Errorf("%w: %d credits (allowed %d..%d)",
			ErrPurchaseBounds, credits, asset.MinPurchase, asset.MaxPurchase)
	}
	return nil
}

// roundTo rounds d to the given number of decimal places, up for
// RoundCharge and down for RoundPayable.
func roundTo(d decimal.Decimal, places int32, mode Rounding) decimal.Decimal {
	if mode == RoundCharge {
		return d.RoundUp(places)
	}
	return d.RoundDown(places)
}

package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/pricing"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testNow = time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)

// newAdapter creates an adapter over a static feed with one registered
// asset priced at 100 credits per whole unit, two decimal places.
func newAdapter(t *testing.T) (*pricing.Adapter, *pricing.StaticFeed) {
	t.Helper()
	feed := pricing.NewStaticFeed()
	feed.SetNow(func() time.Time { return testNow })
	feed.SetPrice("USDT-FEED", d(100), 2)

	a := pricing.New(feed, 30*time.Second, time.Second)
	a.SetNow(func() time.Time { return testNow })

	err := a.RegisterAsset(model.SupportedAsset{
		ID:          "USDT",
		FeedRef:     "USDT-FEED",
		Precision:   2,
		MinPurchase: 10,
		MaxPurchase: 100_000,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("register asset: %v", err)
	}
	return a, feed
}

// --- Conversion and rounding tests ---

func TestCreditsToAssetAmount_ExactDivision(t *testing.T) {
	a, _ := newAdapter(t)

	// 250 credits at 100 credits/unit = 2.50 units, exact either way.
	for _, mode := range []pricing.Rounding{pricing.RoundCharge, pricing.RoundPayable} {
		amount, err := a.CreditsToAssetAmount(context.Background(), "USDT", 250, mode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !amount.Equal(d(2.5)) {
			t.Errorf("mode %d: expected 2.5, got %s", mode, amount)
		}
	}
}

func TestCreditsToAssetAmount_ChargeRoundsUp(t *testing.T) {
	a, feed := newAdapter(t)
	// 100 credits at 3 credits/unit = 33.333... units.
	feed.SetPrice("USDT-FEED", d(3), 2)

	amount, err := a.CreditsToAssetAmount(context.Background(), "USDT", 100, pricing.RoundCharge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d(33.34)) {
		t.Errorf("charge should round up to 33.34, got %s", amount)
	}
}

func TestCreditsToAssetAmount_PayableRoundsDown(t *testing.T) {
	a, feed := newAdapter(t)
	feed.SetPrice("USDT-FEED", d(3), 2)

	amount, err := a.CreditsToAssetAmount(context.Background(), "USDT", 100, pricing.RoundPayable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d(33.33)) {
		t.Errorf("payable should round down to 33.33, got %s", amount)
	}
}

func TestCreditsToAssetAmount_ChargeNeverBelowPayable(t *testing.T) {
	a, feed := newAdapter(t)

	prices := []float64{1, 3, 7, 99.99, 123.456, 10000}
	credits := []int64{1, 7, 100, 999, 12345}

	for _, p := range prices {
		feed.SetPrice("USDT-FEED", d(p), 2)
		for _, c := range credits {
			charge, err := a.CreditsToAssetAmount(context.Background(), "USDT", c, pricing.RoundCharge)
			if err != nil {
				t.Fatalf("charge(%f, %d): %v", p, c, err)
			}
			payable, err := a.CreditsToAssetAmount(context.Background(), "USDT", c, pricing.RoundPayable)
			if err != nil {
				t.Fatalf("payable(%f, %d): %v", p, c, err)
			}
			if charge.LessThan(payable) {
				t.Errorf("price %f credits %d: charge %s < payable %s", p, c, charge, payable)
			}
			// The two directions differ by at most one asset minor unit.
			if charge.Sub(payable).GreaterThan(d(0.01)) {
				t.Errorf("price %f credits %d: rounding gap %s exceeds one minor unit",
					p, c, charge.Sub(payable))
			}
		}
	}
}

func TestAssetAmountToCredits_Rounding(t *testing.T) {
	a, feed := newAdapter(t)
	// 0.333 units at 100 credits/unit = 33.3 credits.
	feed.SetPrice("USDT-FEED", d(100), 2)

	up, err := a.AssetAmountToCredits(context.Background(), "USDT", d(0.333), pricing.RoundCharge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != 34 {
		t.Errorf("charge should round up to 34 credits, got %d", up)
	}

	down, err := a.AssetAmountToCredits(context.Background(), "USDT", d(0.333), pricing.RoundPayable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if down != 33 {
		t.Errorf("payable should round down to 33 credits, got %d", down)
	}
}

func TestConversion_RoundTripWithinOneMinorUnit(t *testing.T) {
	a, feed := newAdapter(t)

	for _, p := range []float64{3, 7.77, 100, 123.456} {
		feed.SetPrice("USDT-FEED", d(p), 2)
		for _, c := range []int64{10, 99, 1000, 54321} {
			// Buyer pays the charge leg, then cashes the same credits out.
			paid, err := a.CreditsToAssetAmount(context.Background(), "USDT", c, pricing.RoundCharge)
			if err != nil {
				t.Fatalf("charge: %v", err)
			}
			back, err := a.AssetAmountToCredits(context.Background(), "USDT", paid, pricing.RoundPayable)
			if err != nil {
				t.Fatalf("back: %v", err)
			}
			// Rounding always favors the platform, never the counterparty,
			// and the drift per round trip stays within one credit plus one
			// asset minor unit's worth of credits.
			if back < c {
				t.Errorf("price %f credits %d: round trip lost value for platform (%d back)", p, c, back)
			}
			maxDrift := int64(p*0.01) + 2
			if back-c > maxDrift {
				t.Errorf("price %f credits %d: drift %d exceeds %d", p, c, back-c, maxDrift)
			}
		}
	}
}

func TestCreditsToAssetAmount_Monotonic(t *testing.T) {
	a, feed := newAdapter(t)
	feed.SetPrice("USDT-FEED", d(7.77), 2)

	for _, mode := range []pricing.Rounding{pricing.RoundCharge, pricing.RoundPayable} {
		prev := decimal.Zero
		for c := int64(1); c <= 200; c++ {
			amount, err := a.CreditsToAssetAmount(context.Background(), "USDT", c, mode)
			if err != nil {
				t.Fatalf("credits %d: %v", c, err)
			}
			if amount.LessThan(prev) {
				t.Fatalf("mode %d: conversion must be non-decreasing, %d credits → %s after %s",
					mode, c, amount, prev)
			}
			prev = amount
		}
	}
}

func TestCreditsToAssetAmount_NonPositiveCredits(t *testing.T) {
	a, _ := newAdapter(t)
	for _, c := range []int64{0, -1} {
		_, err := a.CreditsToAssetAmount(context.Background(), "USDT", c, pricing.RoundCharge)
		if !errors.Is(err, pricing.ErrAmountRange) {
			t.Errorf("credits %d: expected ErrAmountRange, got %v", c, err)
		}
	}
}

// --- Registry tests ---

func TestAsset_NotSupported(t *testing.T) {
	a, _ := newAdapter(t)
	_, err := a.CreditsToAssetAmount(context.Background(), "DOGE", 100, pricing.RoundCharge)
	if !errors.Is(err, pricing.ErrAssetNotSupported) {
		t.Errorf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestDeactivateAsset_BlocksConversion(t *testing.T) {
	a, _ := newAdapter(t)
	if err := a.DeactivateAsset("USDT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := a.CreditsToAssetAmount(context.Background(), "USDT", 100, pricing.RoundCharge)
	if !errors.Is(err, pricing.ErrAssetInactive) {
		t.Errorf("expected ErrAssetInactive, got %v", err)
	}
}

func TestRegisterAsset_InvalidBounds(t *testing.T) {
	a, _ := newAdapter(t)
	err := a.RegisterAsset(model.SupportedAsset{
		ID: "BAD", FeedRef: "BAD-FEED", MinPurchase: 100, MaxPurchase: 10,
	})
	if err == nil {
		t.Error("expected error for max < min bounds")
	}
}

func TestCheckPurchaseBounds(t *testing.T) {
	a, _ := newAdapter(t)

	if err := a.CheckPurchaseBounds("USDT", 10); err != nil {
		t.Errorf("min bound inclusive: %v", err)
	}
	if err := a.CheckPurchaseBounds("USDT", 100_000); err != nil {
		t.Errorf("max bound inclusive: %v", err)
	}
	if err := a.CheckPurchaseBounds("USDT", 9); !errors.Is(err, pricing.ErrPurchaseBounds) {
		t.Errorf("below min: expected ErrPurchaseBounds, got %v", err)
	}
	if err := a.CheckPurchaseBounds("USDT", 100_001); !errors.Is(err, pricing.ErrPurchaseBounds) {
		t.Errorf("above max: expected ErrPurchaseBounds, got %v", err)
	}
}

// --- Quote policy tests ---

func TestGetQuote_StalePrice(t *testing.T) {
	a, feed := newAdapter(t)
	feed.SetQuote("USDT-FEED", pricing.Quote{
		Price:      d(100),
		Precision:  2,
		ObservedAt: testNow.Add(-31 * time.Second), // past the 30s bound
	})

	_, err := a.GetQuote(context.Background(), "USDT")
	if !errors.Is(err, pricing.ErrStalePrice) {
		t.Errorf("expected ErrStalePrice, got %v", err)
	}
}

func TestGetQuote_FreshAtBound(t *testing.T) {
	a, feed := newAdapter(t)
	feed.SetQuote("USDT-FEED", pricing.Quote{
		Price:      d(100),
		Precision:  2,
		ObservedAt: testNow.Add(-30 * time.Second),
	})

	if _, err := a.GetQuote(context.Background(), "USDT"); err != nil {
		t.Errorf("quote exactly at the freshness bound should be accepted: %v", err)
	}
}

func TestGetQuote_FeedFailure(t *testing.T) {
	a, _ := newAdapter(t)
	// No price registered for this ref.
	if err := a.RegisterAsset(model.SupportedAsset{
		ID: "ETH", FeedRef: "ETH-FEED", Precision: 6, MaxPurchase: 1000, Active: true,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := a.GetQuote(context.Background(), "ETH")
	if !errors.Is(err, pricing.ErrOracleUnavailable) {
		t.Errorf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestGetQuote_NonPositivePrice(t *testing.T) {
	a, feed := newAdapter(t)
	feed.SetPrice("USDT-FEED", decimal.Zero, 2)

	_, err := a.GetQuote(context.Background(), "USDT")
	if !errors.Is(err, pricing.ErrOracleUnavailable) {
		t.Errorf("zero price should be rejected as unavailable, got %v", err)
	}
}

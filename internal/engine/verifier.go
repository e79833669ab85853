package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTPVerifier is a Verifier client for an external verification
// provider exposing GET {baseURL}/verified/{accountID} →
// {"verified": bool}.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier creates a verification provider client.
func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *HTTPVerifier) IsVerified(ctx context.Context, accountID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/verified/"+accountID, nil)
	if err != nil {
		return false, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verification provider returned status %d", resp.StatusCode)
	}

	var body struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Verified, nil
}

// StaticVerifier holds an in-memory verified set. Used for development
// and tests; AllowAll short-circuits every check.
type StaticVerifier struct {
	mu       sync.RWMutex
	verified map[string]bool
	AllowAll bool
}

// NewStaticVerifier creates an empty static verifier.
func NewStaticVerifier(allowAll bool) *StaticVerifier {
	return &StaticVerifier{
		verified: make(map[string]bool),
		AllowAll: allowAll,
	}
}

// SetVerified marks an account verified or not.
func (v *StaticVerifier) SetVerified(accountID string, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verified[accountID] = ok
}

func (v *StaticVerifier) IsVerified(_ context.Context, accountID string) (bool, error) {
	if v.AllowAll {
		return true, nil
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.verified[accountID], nil
}

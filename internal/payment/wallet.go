package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/knightmint/knightmint/internal/domain"
)

// WalletBridge reaches the user's wallet capability over a local HTTP
// bridge exposed by the mini-app host. When no bridge is configured the
// service runs without server-side payments and unlocks go through the
// client-driven confirm endpoint instead.
type WalletBridge struct {
	baseURL string
	client  *http.Client
}

// NewWalletBridge creates a bridge client for the given base URL.
func NewWalletBridge(baseURL string) *WalletBridge {
	return &WalletBridge{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// IsAvailable probes the bridge's health endpoint with a short deadline.
func (b *WalletBridge) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Pay submits one payment through the bridge. The wallet blocks until the
// user approves or dismisses the prompt, so the generous client timeout is
// deliberate.
func (b *WalletBridge) Pay(ctx context.Context, payReq domain.PaymentRequest) (domain.PaymentResult, error) {
	body, err := json.Marshal(payReq)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/pay", bytes.NewReader(body))
	if err != nil {
		return domain.PaymentResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return domain.PaymentResult{}, domain.WrapAppError(domain.ErrWalletGone.Code, domain.ErrWalletGone.Message, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.PaymentResult{}, domain.NewAppError(domain.ErrWalletGone.Code, "wallet bridge returned "+resp.Status)
	}

	var result domain.PaymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.PaymentResult{}, domain.WrapAppError(domain.ErrWalletGone.Code, "decode wallet result", err)
	}
	return result, nil
}

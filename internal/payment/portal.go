package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knightmint/knightmint/internal/domain"
)

// PortalTransaction is the portal's authoritative record for a submitted
// transaction. Field names follow the portal's wire format.
type PortalTransaction struct {
	TransactionStatus string `json:"transactionStatus"`
	RecipientAddress  string `json:"recipientAddress"`
	Reference         string `json:"reference"`
}

// TransactionSource looks up the authoritative transaction record.
type TransactionSource interface {
	Transaction(ctx context.Context, transactionID string) (PortalTransaction, error)
}

// PortalClient fetches transaction records from the payment portal over
// HTTP with Bearer auth.
type PortalClient struct {
	baseURL string
	appID   string
	apiKey  string
	client  *http.Client
}

// NewPortalClient creates a client with a bounded request timeout.
func NewPortalClient(baseURL, appID, apiKey string) *PortalClient {
	return &PortalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Transaction fetches the record for one transaction id.
func (p *PortalClient) Transaction(ctx context.Context, transactionID string) (PortalTransaction, error) {
	endpoint := fmt.Sprintf("%s/transaction/%s?app_id=%s",
		p.baseURL, url.PathEscape(transactionID), url.QueryEscape(p.appID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PortalTransaction{}, domain.WrapAppError(domain.ErrPortalLookup.Code, domain.ErrPortalLookup.Message, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return PortalTransaction{}, domain.WrapAppError(domain.ErrPortalLookup.Code, domain.ErrPortalLookup.Message, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PortalTransaction{}, domain.NewAppError(domain.ErrPortalLookup.Code,
			fmt.Sprintf("portal returned status %d for transaction %s", resp.StatusCode, transactionID))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PortalTransaction{}, domain.WrapAppError(domain.ErrPortalLookup.Code, domain.ErrPortalLookup.Message, err)
	}

	var tx PortalTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return PortalTransaction{}, domain.WrapAppError(domain.ErrPortalLookup.Code, "decode portal transaction", err)
	}
	return tx, nil
}

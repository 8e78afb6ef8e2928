package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

// Remote is an HTTP client for an external trade-execution service holding the
// per-exchange credentials and REST logic. The bot sends it one request per
// attempt and trusts its settlement report.
type Remote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemote creates a Remote gateway client for the service at baseURL.
// apiKey, when non-empty, is sent as a bearer token.
func NewRemote(baseURL, apiKey string) *Remote {
	return &Remote{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type executeRequest struct {
	Pair        string `json:"pair"`
	BuyVenue    string `json:"buy_venue"`
	SellVenue   string `json:"sell_venue"`
	BaseAmount  string `json:"base_amount"`
	QuoteBudget string `json:"quote_budget,omitempty"`
}

type executeResponse struct {
	BuyPrice   string `json:"buy_price"`
	SellPrice  string `json:"sell_price"`
	Profit     string `json:"profit"`
	BuyFee     string `json:"buy_fee"`
	SellFee    string `json:"sell_fee"`
	BaseAmount string `json:"base_amount"`
	Error      string `json:"error"`
}

// Execute submits the attempt to the execution service and decodes its
// settlement report. Any transport, status, or service-level failure is
// returned as an ExecutionError.
func (r *Remote) Execute(ctx context.Context, pair, buyVenue, sellVenue string, baseAmount, quoteBudget decimal.Decimal) (domain.TradeResult, error) {
	reqBody := executeRequest{
		Pair:       pair,
		BuyVenue:   buyVenue,
		SellVenue:  sellVenue,
		BaseAmount: baseAmount.String(),
	}
	if quoteBudget.IsPositive() {
		reqBody.QuoteBudget = quoteBudget.String()
	}

	var resp executeResponse
	if err := r.post(ctx, "/v1/arbitrage/execute", reqBody, &resp); err != nil {
		return domain.TradeResult{}, &ExecutionError{BuyVenue: buyVenue, SellVenue: sellVenue, Err: err}
	}
	if resp.Error != "" {
		return domain.TradeResult{}, &ExecutionError{
			BuyVenue:  buyVenue,
			SellVenue: sellVenue,
			Err:       fmt.Errorf("service rejected attempt: %s", resp.Error),
		}
	}

	result, err := resp.toDomain()
	if err != nil {
		return domain.TradeResult{}, &ExecutionError{BuyVenue: buyVenue, SellVenue: sellVenue, Err: err}
	}
	return result, nil
}

func (r *executeResponse) toDomain() (domain.TradeResult, error) {
	var out domain.TradeResult
	var err error
	parse := func(name, raw string, dst *decimal.Decimal) {
		if err != nil || raw == "" {
			return
		}
		var v decimal.Decimal
		if v, err = decimal.NewFromString(raw); err != nil {
			err = fmt.Errorf("decode %s %q: %w", name, raw, err)
			return
		}
		*dst = v
	}
	parse("buy_price", r.BuyPrice, &out.BuyPrice)
	parse("sell_price", r.SellPrice, &out.SellPrice)
	parse("profit", r.Profit, &out.Profit)
	parse("buy_fee", r.BuyFee, &out.BuyFee)
	parse("sell_fee", r.SellFee, &out.SellFee)
	parse("base_amount", r.BaseAmount, &out.BaseAmount)
	if err != nil {
		return domain.TradeResult{}, err
	}
	return out, nil
}

type balanceResponse struct {
	Free  string `json:"free"`
	Error string `json:"error"`
}

// FreeBalance asks the execution service for the free balance of asset on
// venue.
func (r *Remote) FreeBalance(ctx context.Context, venue, asset string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/v1/balance?venue=%s&asset=%s", url.QueryEscape(venue), url.QueryEscape(asset))
	var resp balanceResponse
	if err := r.get(ctx, path, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrBalanceQuery, err)
	}
	if resp.Error != "" {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrBalanceQuery, resp.Error)
	}
	free, err := decimal.NewFromString(resp.Free)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode free %q: %v", domain.ErrBalanceQuery, resp.Free, err)
	}
	return free, nil
}

func (r *Remote) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, out)
}

func (r *Remote) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return r.do(req, out)
}

func (r *Remote) do(req *http.Request, out any) error {
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ TradingGateway = (*Remote)(nil)

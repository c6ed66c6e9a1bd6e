package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giftlink/backend/internal/errs"
	"go.uber.org/zap"
)

// NativeMint is the sentinel the aggregator API uses for the native asset.
const NativeMint = "TON"

// AggregatorClient talks to the external DEX aggregator. Quotes and unsigned
// transactions come back as narrow typed contracts validated on receipt.
type AggregatorClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewAggregatorClient(baseURL string, log *zap.Logger) *AggregatorClient {
	return &AggregatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type Quote struct {
	InputMint     string `json:"input_mint"`
	OutputMint    string `json:"output_mint"`
	InAmountNano  string `json:"in_amount"`
	OutAmountNano string `json:"out_amount"`
	PriceImpactBPS int   `json:"price_impact_bps"`
	RouteID       string `json:"route_id"`
}

// Quote requests a swap quote for amountNano of inputMint into outputMint.
func (c *AggregatorClient) Quote(ctx context.Context, inputMint, outputMint string, amountNano *big.Int) (*Quote, error) {
	q := url.Values{}
	q.Set("input_mint", inputMint)
	q.Set("output_mint", outputMint)
	q.Set("amount", amountNano.String())

	reqURL := fmt.Sprintf("%s/v1/quote?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.External("aggregator unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.Newf(errs.CodeExternalService, "aggregator returned %d: %s", resp.StatusCode, string(body))
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, errs.External("decode aggregator quote", err)
	}
	if quote.OutAmountNano == "" || quote.RouteID == "" {
		return nil, errs.New(errs.CodeExternalService, "aggregator quote missing out_amount or route_id")
	}
	if _, ok := new(big.Int).SetString(quote.OutAmountNano, 10); !ok {
		return nil, errs.Newf(errs.CodeExternalService, "aggregator quote out_amount %q is not an integer", quote.OutAmountNano)
	}
	return &quote, nil
}

type SwapTransaction struct {
	BOC string `json:"boc"` // unsigned transaction, base64
}

// BuildSwapTransaction asks the aggregator for an unsigned swap transaction
// executing quote with payer as the funding wallet. The core never signs it;
// the sender's wallet collaborator does.
func (c *AggregatorClient) BuildSwapTransaction(ctx context.Context, quote *Quote, payer string) (*SwapTransaction, error) {
	body, err := json.Marshal(map[string]any{
		"route_id": quote.RouteID,
		"payer":    payer,
	})
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/v1/swap", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.External("aggregator unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, errs.Newf(errs.CodeExternalService, "aggregator returned %d: %s", resp.StatusCode, string(b))
	}

	var tx SwapTransaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, errs.External("decode swap transaction", err)
	}
	if tx.BOC == "" {
		return nil, errs.New(errs.CodeExternalService, "aggregator returned empty transaction")
	}
	return &tx, nil
}

package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giftlink/backend/internal/errs"
	"go.uber.org/zap"
)

// PriceClient fetches USD prices from the external oracle.
type PriceClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewPriceClient(baseURL string, log *zap.Logger) *PriceClient {
	return &PriceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// CurrentPriceCents returns the USD price of one whole unit of the asset
// in cents. Any oracle failure surfaces as PriceUnavailableError.
func (c *PriceClient) CurrentPriceCents(ctx context.Context, symbol string) (int64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	reqURL := fmt.Sprintf("%s/v1/price?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errs.Wrap(errs.CodePriceUnavailable, "price oracle unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, errs.Newf(errs.CodePriceUnavailable, "price oracle returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Symbol string  `json:"symbol"`
		USD    float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errs.Wrap(errs.CodePriceUnavailable, "decode price response", err)
	}
	if out.USD <= 0 {
		return 0, errs.Newf(errs.CodePriceUnavailable, "price oracle returned non-positive price %f for %s", out.USD, symbol)
	}

	return int64(math.Round(out.USD * 100)), nil
}

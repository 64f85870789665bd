package oracle

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 5 * time.Second

// HTTPFeed polls a JSON endpoint for the latest price. The endpoint is
// expected to respond with {"price":"<integer>","decimals":<n>,"timestamp":<unix>}.
type HTTPFeed struct {
	url    string
	client *http.Client
}

// NewHTTPFeed constructs a feed backed by the provided endpoint.
func NewHTTPFeed(url string, client *http.Client) *HTTPFeed {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPFeed{url: strings.TrimSpace(url), client: client}
}

type httpQuote struct {
	Price     string `json:"price"`
	Decimals  uint8  `json:"decimals"`
	Timestamp int64  `json:"timestamp"`
}

// LatestPrice implements PriceFeed.
func (f *HTTPFeed) LatestPrice() (PriceData, error) {
	if f == nil || f.url == "" {
		return PriceData{}, ErrFeedUnavailable
	}
	resp, err := f.client.Get(f.url)
	if err != nil {
		return PriceData{}, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PriceData{}, fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}
	var quote httpQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return PriceData{}, fmt.Errorf("%w: decode: %v", ErrFeedUnavailable, err)
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(quote.Price), 10)
	if !ok {
		return PriceData{}, fmt.Errorf("%w: malformed price %q", ErrFeedUnavailable, quote.Price)
	}
	asOf := time.Now()
	if quote.Timestamp > 0 {
		asOf = time.Unix(quote.Timestamp, 0)
	}
	return PriceData{Price: price, Decimals: quote.Decimals, AsOf: asOf}, nil
}

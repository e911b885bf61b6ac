package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stock-target-bot/internal/types"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooClient fetches quotes and daily OHLCV history from the Yahoo
// Finance chart API. Symbols carry their own market suffix (AAPL,
// PTT.BK); the client does no routing.
type YahooClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewYahooClient(timeout time.Duration) *YahooClient {
	return &YahooClient{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CurrentPrice returns the latest market price for the symbol.
func (c *YahooClient) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	resp, err := c.fetchChart(ctx, symbol, "1d")
	if err != nil {
		return 0, err
	}

	result := resp.Chart.Result[0]
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}

	// Fall back to the last non-null close.
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				return *closes[i], nil
			}
		}
	}
	return 0, errors.Wrapf(ErrUnavailable, "no price in chart response for %s", symbol)
}

// HistoricalBars returns up to the requested number of daily bars,
// oldest first. Rows with null columns are dropped.
func (c *YahooClient) HistoricalBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	resp, err := c.fetchChart(ctx, symbol, fmt.Sprintf("%dd", days))
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "no history in chart response for %s", symbol)
	}

	quote := result.Indicators.Quote[0]
	if len(result.Timestamp) != len(quote.Close) ||
		len(result.Timestamp) != len(quote.Open) ||
		len(result.Timestamp) != len(quote.High) ||
		len(result.Timestamp) != len(quote.Low) ||
		len(result.Timestamp) != len(quote.Volume) {
		return nil, errors.Wrapf(ErrUnavailable, "misaligned chart columns for %s", symbol)
	}

	bars := make([]types.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			log.Debugf("dropping null bar for %s at index %d", symbol, i)
			continue
		}
		bars = append(bars, types.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: *quote.Volume[i],
		})
	}

	if len(bars) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "only null bars for %s", symbol)
	}
	return bars, nil
}

func (c *YahooClient) fetchChart(ctx context.Context, symbol, rangeStr string) (*chartResponse, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", rangeStr)
	params.Set("includePrePost", "false")

	reqURL := fmt.Sprintf("%s/%s?%s", c.BaseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build chart request")
	}
	req.Header.Set("User-Agent", "stock-target-bot/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "chart request for %s failed: %v", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrUnavailable, "chart request for %s returned %d", symbol, resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "could not parse chart response for %s: %v", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return nil, errors.Wrapf(ErrUnavailable, "yahoo api error for %s: %s - %s",
			symbol, parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "empty chart result for %s", symbol)
	}
	return &parsed, nil
}

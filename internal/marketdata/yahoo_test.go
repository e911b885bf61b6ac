package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func newTestClient(handler http.HandlerFunc) (*YahooClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewYahooClient(5 * time.Second)
	client.BaseURL = server.URL
	return client, server
}

func TestCurrentPriceFromMeta(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":187.23}}],"error":null}}`)
	})
	defer server.Close()

	price, err := client.CurrentPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if price != 187.23 {
		t.Errorf("price = %v, want 187.23", price)
	}
}

func TestCurrentPriceFallsBackToLastClose(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{
			"meta":{"symbol":"AAPL"},
			"timestamp":[1700000000,1700086400,1700172800],
			"indicators":{"quote":[{
				"open":[100,101,102],"high":[105,106,107],"low":[99,100,101],
				"close":[104,105.5,null],"volume":[1000,1100,1200]}]}
		}],"error":null}}`)
	})
	defer server.Close()

	price, err := client.CurrentPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if price != 105.5 {
		t.Errorf("price = %v, want last non-null close 105.5", price)
	}
}

func TestHistoricalBarsDropsNullRows(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{
			"meta":{"symbol":"AAPL","regularMarketPrice":102},
			"timestamp":[1700000000,1700086400,1700172800],
			"indicators":{"quote":[{
				"open":[100,null,102],"high":[105,106,107],"low":[99,100,101],
				"close":[104,105,106],"volume":[1000,1100,1200]}]}
		}],"error":null}}`)
	})
	defer server.Close()

	bars, err := client.HistoricalBars(context.Background(), "AAPL", 3)
	if err != nil {
		t.Fatalf("HistoricalBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected the null row dropped, got %d bars", len(bars))
	}
	if bars[0].Close != 104 || bars[1].Close != 106 {
		t.Errorf("unexpected closes %v, %v", bars[0].Close, bars[1].Close)
	}
	if !bars[0].Time.Before(bars[1].Time) {
		t.Error("bars must be oldest first")
	}
}

func TestHistoricalBarsRejectsMisalignedColumns(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{
			"meta":{"symbol":"AAPL"},
			"timestamp":[1700000000,1700086400],
			"indicators":{"quote":[{
				"open":[100],"high":[105,106],"low":[99,100],
				"close":[104,105],"volume":[1000,1100]}]}
		}],"error":null}}`)
	})
	defer server.Close()

	_, err := client.HistoricalBars(context.Background(), "AAPL", 2)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for misaligned columns, got %v", err)
	}
}

func TestFetchWrapsAPIErrors(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})
	defer server.Close()

	if _, err := client.CurrentPrice(context.Background(), "NOPE"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for api error, got %v", err)
	}
}

func TestFetchWrapsHTTPFailures(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	if _, err := client.CurrentPrice(context.Background(), "AAPL"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for status 429, got %v", err)
	}
}

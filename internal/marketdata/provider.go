package marketdata

import (
	"context"

	"github.com/pkg/errors"

	"stock-target-bot/internal/types"
)

// ErrUnavailable means the provider could not produce data for the
// symbol right now. Callers treat it as a cache miss and retry on the
// next cycle; it is never surfaced to the user as a target failure.
var ErrUnavailable = errors.New("market data unavailable")

// Provider supplies spot prices and daily history. Which backend serves
// which symbol class is a routing concern outside the engine.
type Provider interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	HistoricalBars(ctx context.Context, symbol string, days int) ([]types.Bar, error)
}

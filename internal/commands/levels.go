package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"stock-target-bot/internal/levels"
	"stock-target-bot/internal/marketdata"
	"stock-target-bot/lib/helpers"
)

// CommandLevels renders the full technical level report for a symbol.
func CommandLevels(ctx context.Context, provider marketdata.Provider,
	symbol string, historyDays, fibLookback int) (string, error) {

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", errors.New("no symbol given")
	}

	bars, err := provider.HistoricalBars(ctx, symbol, historyDays)
	if err != nil {
		return "", errors.Wrapf(err, "command /levels for %s", symbol)
	}

	lv, err := levels.Calculate(bars, fibLookback)
	if err != nil {
		return "", errors.Wrapf(err, "command /levels for %s", symbol)
	}

	lastClose := bars[len(bars)-1].Close

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 *%s* \\(close $%s\\)\n\n",
		helpers.EscapeMarkdownV2(symbol), helpers.FormatPriceUS(lastClose, true)))

	b.WriteString(fmt.Sprintf("📉 Support: *$%s*  📈 Resistance: *$%s*\n\n",
		helpers.FormatPriceUS(lv.Support, true), helpers.FormatPriceUS(lv.Resistance, true)))

	b.WriteString(fmt.Sprintf("Pivot *$%s*\nR1 *$%s*  S1 *$%s*\nR2 *$%s*  S2 *$%s*\n\n",
		helpers.FormatPriceUS(lv.Pivot, true),
		helpers.FormatPriceUS(lv.R1, true), helpers.FormatPriceUS(lv.S1, true),
		helpers.FormatPriceUS(lv.R2, true), helpers.FormatPriceUS(lv.S2, true)))

	b.WriteString(fmt.Sprintf("ATR bands: *$%s* / *$%s* below, *$%s* / *$%s* above\n",
		helpers.FormatPriceUS(lv.ATRSupport1, true), helpers.FormatPriceUS(lv.ATRSupport2, true),
		helpers.FormatPriceUS(lv.ATRResistance1, true), helpers.FormatPriceUS(lv.ATRResistance2, true)))

	if len(lv.Fibonacci) > 0 {
		b.WriteString("\nFibonacci:\n")
		for _, f := range lv.Fibonacci {
			b.WriteString(fmt.Sprintf("▫️ %s  *$%s*\n",
				helpers.EscapeMarkdownV2(fmt.Sprintf("%.1f%%", f.Ratio*100)),
				helpers.FormatPriceUS(f.Price, true)))
		}
	}

	if lv.HasProfile {
		b.WriteString(fmt.Sprintf("\nPOC *$%s*, value area $%s to $%s\n",
			helpers.FormatPriceUS(lv.PointOfControl, true),
			helpers.FormatPriceUS(lv.ValueAreaLow, true),
			helpers.FormatPriceUS(lv.ValueAreaHigh, true)))
	}

	return b.String(), nil
}

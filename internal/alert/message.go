package alert

import (
	"fmt"
	"strings"

	"stock-target-bot/internal/levels"
	"stock-target-bot/internal/types"
	"stock-target-bot/lib/helpers"
)

// FireMessage renders the target-reached notification. The technical
// levels section is optional: when lv is nil the primary alert still
// goes out, just without reference levels.
func FireMessage(t types.Target, price float64, lv *levels.Levels) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🚨 *Target Reached*\n\n*%s* is at *$%s*\n",
		helpers.EscapeMarkdownV2(t.Symbol),
		helpers.FormatPriceUS(price, true),
	))

	direction := "at or below"
	if t.Condition == types.AtOrAbove {
		direction = "at or above"
	}
	b.WriteString(fmt.Sprintf("Your target: *$%s* \\(%s\\)\n",
		helpers.FormatPriceUS(t.TargetPrice, true),
		helpers.EscapeMarkdownV2(direction),
	))

	if lv != nil {
		b.WriteString(levelsSection(lv))
	}

	return b.String()
}

// ApproachMessage renders the one-time proximity warning.
func ApproachMessage(t types.Target, price float64) string {
	return fmt.Sprintf(
		"⚠️ *Approaching Target*\n\n*%s* is at *$%s*, within %s%% of your target *$%s*\n",
		helpers.EscapeMarkdownV2(t.Symbol),
		helpers.FormatPriceUS(price, true),
		helpers.EscapeMarkdownV2(fmt.Sprintf("%.1f", t.ApproachPct)),
		helpers.FormatPriceUS(t.TargetPrice, true),
	)
}

func levelsSection(lv *levels.Levels) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n📉 Support: *$%s*  📈 Resistance: *$%s*\n",
		helpers.FormatPriceUS(lv.Support, true),
		helpers.FormatPriceUS(lv.Resistance, true),
	))
	b.WriteString(fmt.Sprintf("Pivot *$%s* \\| R1 *$%s* \\| S1 *$%s*\n",
		helpers.FormatPriceUS(lv.Pivot, true),
		helpers.FormatPriceUS(lv.R1, true),
		helpers.FormatPriceUS(lv.S1, true),
	))
	b.WriteString(fmt.Sprintf("ATR band: *$%s* to *$%s*\n",
		helpers.FormatPriceUS(lv.ATRSupport1, true),
		helpers.FormatPriceUS(lv.ATRResistance1, true),
	))

	if len(lv.Fibonacci) > 0 {
		parts := make([]string, 0, len(lv.Fibonacci))
		for _, f := range lv.Fibonacci {
			parts = append(parts, fmt.Sprintf("%s: $%s",
				helpers.EscapeMarkdownV2(fmt.Sprintf("%.1f%%", f.Ratio*100)),
				helpers.FormatPriceUS(f.Price, true),
			))
		}
		b.WriteString("Fib: " + strings.Join(parts, " \\| ") + "\n")
	}

	if lv.HasProfile {
		b.WriteString(fmt.Sprintf("POC *$%s* \\(value area $%s to $%s\\)\n",
			helpers.FormatPriceUS(lv.PointOfControl, true),
			helpers.FormatPriceUS(lv.ValueAreaLow, true),
			helpers.FormatPriceUS(lv.ValueAreaHigh, true),
		))
	}

	return b.String()
}

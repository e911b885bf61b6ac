package commands

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"stock-target-bot/internal/marketdata"
	"stock-target-bot/internal/price"
	"stock-target-bot/internal/registry"
	"stock-target-bot/internal/types"
	"stock-target-bot/lib/helpers"
	"stock-target-bot/lib/translation"
)

// CommandCheck lists the caller's targets with their current prices.
func CommandCheck(ctx context.Context, reg *registry.Registry, prices *price.Cache,
	provider marketdata.Provider, ownerID int64) string {

	targets := reg.ForOwner(ownerID)
	if len(targets) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no targets set. Use /set to add one."))
	}

	var b strings.Builder
	b.WriteString("📊 *" + helpers.EscapeMarkdownV2(translation.Translate("Your targets")) + "*\n\n")

	for _, t := range targets {
		b.WriteString(formatTargetLine(ctx, prices, provider, t))
	}

	return b.String()
}

// CommandAll summarizes every registered target, grouped by owner.
func CommandAll(ctx context.Context, reg *registry.Registry, prices *price.Cache,
	provider marketdata.Provider) string {

	snapshot := reg.Snapshot()
	if len(snapshot) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("No targets registered yet."))
	}

	var b strings.Builder
	b.WriteString("📢 *" + helpers.EscapeMarkdownV2(translation.Translate("All targets")) + "*\n\n")

	var lastOwner int64
	for _, t := range snapshot {
		if t.OwnerID != lastOwner {
			b.WriteString(fmt.Sprintf("*%s %d*\n", helpers.EscapeMarkdownV2(translation.Translate("User")), t.OwnerID))
			lastOwner = t.OwnerID
		}
		b.WriteString(formatTargetLine(ctx, prices, provider, t))
	}

	return b.String()
}

func formatTargetLine(ctx context.Context, prices *price.Cache,
	provider marketdata.Provider, t types.Target) string {

	direction := "≤"
	if t.Condition == types.AtOrAbove {
		direction = "≥"
	}

	priceText := helpers.EscapeMarkdownV2(translation.Translate("unavailable"))
	if p, err := prices.Resolve(ctx, provider, t.Symbol); err == nil {
		priceText = "$" + helpers.FormatPriceUS(p, true)
	} else {
		log.Debugf("check: no price for %s: %v", t.Symbol, err)
	}

	line := fmt.Sprintf("▫️ *%s* 🎯 %s $%s 💰 %s",
		helpers.EscapeMarkdownV2(t.Symbol),
		direction,
		helpers.FormatPriceUS(t.TargetPrice, true),
		priceText,
	)
	if t.ApproachPct > 0 {
		line += fmt.Sprintf(" ⚠️ %s%%", helpers.EscapeMarkdownV2(fmt.Sprintf("%.1f", t.ApproachPct)))
	}
	return line + "\n"
}

package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"stock-target-bot/internal/types"
	"stock-target-bot/lib/translation"
)

// ParseSet parses "/set SYMBOL PRICE [above|below] [dm|here] [N%]" into
// a target. Defaults: at-or-below (a buy-the-dip watch, as the original
// bot behaved) delivered by direct message.
func ParseSet(ownerID, chatID int64, isPrivate bool, args string) (types.Target, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return types.Target{}, errors.New(translation.Translate("Usage: /set SYMBOL PRICE [above|below] [dm|here] [N%]"))
	}

	symbol := strings.ToUpper(fields[0])

	targetPrice, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || targetPrice <= 0 {
		return types.Target{}, errors.New(translation.Translate("Target price must be a positive number"))
	}

	t := types.Target{
		OwnerID:     ownerID,
		Symbol:      symbol,
		TargetPrice: targetPrice,
		Condition:   types.AtOrBelow,
		Delivery:    types.DeliverDirect,
		CreatedAt:   time.Now().UTC(),
	}
	if !isPrivate {
		// Remember the group so delivery can fall back to it.
		t.BroadcastChatID = chatID
	}

	for _, opt := range fields[2:] {
		switch strings.ToLower(opt) {
		case "above":
			t.Condition = types.AtOrAbove
		case "below":
			t.Condition = types.AtOrBelow
		case "dm":
			t.Delivery = types.DeliverDirect
		case "here":
			if isPrivate {
				return types.Target{}, errors.New(translation.Translate("Run /set in a group chat to post alerts there, or use dm"))
			}
			t.Delivery = types.DeliverBroadcast
			t.BroadcastChatID = chatID
		default:
			if strings.HasSuffix(opt, "%") {
				pct, err := strconv.ParseFloat(strings.TrimSuffix(opt, "%"), 64)
				if err != nil || pct <= 0 || pct >= 100 {
					return types.Target{}, errors.New(translation.Translate("Approach threshold must be a percentage between 0 and 100"))
				}
				t.ApproachPct = pct
			} else {
				return types.Target{}, errors.Errorf(translation.Translate("Unknown option: %s"), opt)
			}
		}
	}

	return t, nil
}

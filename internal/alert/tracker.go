package alert

import "stock-target-bot/internal/types"

// Action is what the monitoring loop should do for a target at the
// freshly fetched price.
type Action int

const (
	// ActionNone leaves the target untouched.
	ActionNone Action = iota
	// ActionFire sends (or replaces) the target-reached notification.
	ActionFire
	// ActionApproach sends a one-time proximity warning.
	ActionApproach
	// ActionApproachReset re-arms the proximity warning after the price
	// has left the approach band away from the target.
	ActionApproachReset
)

// Evaluate runs the per-target state machine. Crossing the trigger
// condition always wins; the approach band only matters while the price
// sits on the approaching side of the target.
//
// Firing is persist-and-replace: a crossed target keeps firing every
// cycle the condition holds, each time replacing the previous live
// message, so the user sees one message with the freshest price.
func Evaluate(t types.Target, price float64) Action {
	if t.Crossed(price) {
		return ActionFire
	}

	if t.ApproachPct <= 0 {
		return ActionNone
	}

	if withinApproachBand(t, price) {
		if !t.ApproachSent {
			return ActionApproach
		}
		return ActionNone
	}

	// Price is outside the band and has not crossed. If a warning was
	// sent earlier, the target is re-armed so the next approach warns
	// again (once per band entry, not once ever).
	if t.ApproachSent {
		return ActionApproachReset
	}
	return ActionNone
}

// withinApproachBand reports whether price is on the approaching side
// of the target and within ApproachPct percent of it.
func withinApproachBand(t types.Target, price float64) bool {
	band := t.TargetPrice * t.ApproachPct / 100

	if t.Condition == types.AtOrBelow {
		return price > t.TargetPrice && price <= t.TargetPrice+band
	}
	return price < t.TargetPrice && price >= t.TargetPrice-band
}

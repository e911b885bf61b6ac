package types

import "time"

// Condition is the price relationship that fires a target.
type Condition string

const (
	AtOrBelow Condition = "below"
	AtOrAbove Condition = "above"
)

// Delivery selects where notifications for a target are sent.
type Delivery string

const (
	DeliverDirect    Delivery = "direct"
	DeliverBroadcast Delivery = "broadcast"
)

// MessageRef identifies a previously sent notification so it can be
// deleted when a replacement fires.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// Target is one user's watch on one instrument. Exactly one target
// exists per (OwnerID, Symbol); setting it again overwrites the old one.
type Target struct {
	OwnerID         int64     `json:"owner_id"`
	Symbol          string    `json:"symbol"`
	TargetPrice     float64   `json:"target_price"`
	Condition       Condition `json:"condition"`
	ApproachPct     float64   `json:"approach_pct"` // 0 disables proximity warnings
	Delivery        Delivery  `json:"delivery"`
	BroadcastChatID int64     `json:"broadcast_chat_id"`
	CreatedAt       time.Time `json:"created_at"`

	// Notification lifecycle, mutated only by the monitor.
	LiveMessage  MessageRef `json:"live_message"`
	ApproachSent bool       `json:"approach_sent"`
}

// Crossed reports whether price satisfies the target's trigger condition.
func (t Target) Crossed(price float64) bool {
	if t.Condition == AtOrAbove {
		return price >= t.TargetPrice
	}
	return price <= t.TargetPrice
}

// Bar is one daily OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

package entity

import "time"

// AlertLog is an append-only cooldown ledger: one row per fired alert key.
type AlertLog struct {
	AlertKey string
	FiredAt  time.Time
}

// ChannelDeliveryLog records the outcome of dispatching one alert to one
// channel, so ChannelFailed (spec §7) is observable without resurrecting a
// full notification-service entity tree.
type ChannelDeliveryLog struct {
	Channel  string
	AlertKey string
	Success  bool
	Error    string
	At       time.Time
}

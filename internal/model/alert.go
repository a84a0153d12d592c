package model

import (
	"encoding/json"
	"strconv"
)

// AlertType identifies the rule that produced an alert.
type AlertType string

const (
	AlertBuyCall           AlertType = "BUY_CALL"
	AlertSellPut           AlertType = "SELL_PUT"
	AlertEarlyPullbackBull AlertType = "EARLY_PULLBACK_BULLISH"
	AlertEarlyPullbackBear AlertType = "EARLY_PULLBACK_BEARISH"
	AlertTargetConfirmBull AlertType = "TARGET_LINE_CONFIRMATION_BULLISH"
	AlertTargetConfirmBear AlertType = "TARGET_LINE_CONFIRMATION_BEARISH"
	AlertTargetFollowBull  AlertType = "TARGET_FOLLOW_THROUGH_BULLISH"
	AlertTargetFollowBear  AlertType = "TARGET_FOLLOW_THROUGH_BEARISH"
)

// BreakRegion describes the price band around a broken target line.
type BreakRegion struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Target float64 `json:"target"`
}

// Alert is a discrete trading alert emitted by the rule engine.
// ID is a UUID assigned on creation; uniqueness across the log is enforced
// on the (Type, Asset, TS) triple, not on the ID.
type Alert struct {
	ID      string       `json:"id"`
	Type    AlertType    `json:"type"`
	Asset   string       `json:"asset"`
	TS      int64        `json:"ts"` // candle timestamp, epoch ms
	Message string       `json:"message"`
	Region  *BreakRegion `json:"break_region,omitempty"`
}

// DedupKey returns the set-membership key identifying this alert instance:
// "type|asset|ts".
func (a *Alert) DedupKey() string {
	return string(a.Type) + "|" + a.Asset + "|" + strconv.FormatInt(a.TS, 10)
}

// JSON returns the JSON-encoded alert.
func (a *Alert) JSON() []byte {
	b, _ := json.Marshal(a)
	return b
}

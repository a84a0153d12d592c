package rules

import (
	"fmt"

	"alert-systemv1/internal/model"
)

// Direction of a target-line interaction.
type Direction int

const (
	DirBullish Direction = iota
	DirBearish
)

// TargetConfirmation records a fired TARGET_LINE_CONFIRMATION so a later
// candle can qualify for TARGET_FOLLOW_THROUGH. Owned per asset by the
// caller; cleared once a follow-through fires.
type TargetConfirmation struct {
	Dir   Direction
	Level float64 // the pivot level that was broken
	Close float64 // close of the confirming candle
	TS    int64
}

// targetLine evaluates the pivot interaction rules. Follow-through is checked
// first: once an asset holds a confirmation, the next qualifying extension
// consumes it. Otherwise a fresh body-break through the pivot produces a
// confirmation. Re-breaks of an already-confirmed level in the same direction
// are ignored until the confirmation is consumed.
func (e *Engine) targetLine(in Input) (*model.Alert, *TargetConfirmation) {
	c := in.Current

	if in.Confirm != nil {
		if a := followThrough(in.Asset, c, in.Confirm); a != nil {
			return a, nil // confirmation consumed
		}
	}

	if !in.Pivot.Defined() {
		return nil, in.Confirm
	}

	// Body break: the candle's body crosses the level in its own direction.
	var dir Direction
	switch {
	case c.Bullish() && c.Open < in.Pivot.Pivot && c.Close > in.Pivot.Pivot:
		dir = DirBullish
	case c.Bearish() && c.Open > in.Pivot.Pivot && c.Close < in.Pivot.Pivot:
		dir = DirBearish
	default:
		return nil, in.Confirm
	}

	if in.Confirm != nil && in.Confirm.Dir == dir && in.Confirm.Level == in.Pivot.Pivot {
		return nil, in.Confirm // already confirmed at this level
	}

	typ := model.AlertTargetConfirmBull
	word := "above"
	if dir == DirBearish {
		typ = model.AlertTargetConfirmBear
		word = "below"
	}
	a := newAlert(typ, in.Asset, c.TS,
		fmt.Sprintf("%s: candle closed %s target line %.2f", in.Asset, word, in.Pivot.Pivot))
	a.Region = &model.BreakRegion{
		Low:    in.Pivot.S1,
		High:   in.Pivot.R1,
		Target: in.Pivot.Pivot,
	}
	return a, &TargetConfirmation{Dir: dir, Level: in.Pivot.Pivot, Close: c.Close, TS: c.TS}
}

// followThrough fires when price extends beyond the confirmation close in the
// confirmed direction while remaining through the level.
func followThrough(asset string, c model.Candle, confirm *TargetConfirmation) *model.Alert {
	switch confirm.Dir {
	case DirBullish:
		if c.Close > confirm.Level && c.Close > confirm.Close {
			return newAlert(model.AlertTargetFollowBull, asset, c.TS,
				fmt.Sprintf("%s: follow-through above target line %.2f, close %.2f",
					asset, confirm.Level, model.Round2(c.Close)))
		}
	case DirBearish:
		if c.Close < confirm.Level && c.Close < confirm.Close {
			return newAlert(model.AlertTargetFollowBear, asset, c.TS,
				fmt.Sprintf("%s: follow-through below target line %.2f, close %.2f",
					asset, confirm.Level, model.Round2(c.Close)))
		}
	}
	return nil
}

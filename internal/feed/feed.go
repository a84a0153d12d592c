// Package feed abstracts where candles come from. The engine seeds each
// asset from InitialHistory, then consumes the live stream from Subscribe.
package feed

import (
	"context"

	"alert-systemv1/internal/model"
)

// Feed is a candle source for a fixed set of assets.
type Feed interface {
	// Assets lists the asset names this feed produces candles for.
	Assets() []string

	// InitialHistory returns up to limit historical candles for one asset,
	// oldest first. A feed without a history endpoint returns an empty slice.
	InitialHistory(ctx context.Context, asset string, limit int) ([]model.Candle, error)

	// Subscribe streams live candles into out until ctx is cancelled.
	// Implementations must never block on a full channel.
	Subscribe(ctx context.Context, out chan<- model.Candle) error
}

package feed

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"alert-systemv1/internal/model"
)

// SimConfig holds configuration for the simulated feed.
type SimConfig struct {
	Assets   []string
	Interval time.Duration // candle period, defaults to 1s
	Start    float64       // starting price, defaults to 1000
	Seed     int64         // rng seed, 0 means time-based
}

func (c *SimConfig) defaults() {
	if c.Interval == 0 {
		c.Interval = time.Second
	}
	if c.Start == 0 {
		c.Start = 1000
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Sim generates random-walk candles without any external server. Useful for
// offline runs and demos. Prices drift ±0.1% per candle around the last close;
// InitialHistory and Subscribe share the walk, so timestamps stay strictly
// increasing across the seed/live boundary.
type Sim struct {
	cfg SimConfig
	rng *rand.Rand

	// Optional hook, called for every candle dropped on a full channel.
	OnDrop func()

	mu   sync.Mutex
	last map[string]walkState
}

type walkState struct {
	close float64
	ts    int64 // epoch ms of the last emitted candle
}

// NewSim creates a simulated feed.
func NewSim(cfg SimConfig) *Sim {
	cfg.defaults()
	return &Sim{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		last: make(map[string]walkState),
	}
}

// Assets lists the configured asset names.
func (s *Sim) Assets() []string {
	out := make([]string, len(s.cfg.Assets))
	copy(out, s.cfg.Assets)
	return out
}

// InitialHistory generates limit back-dated candles ending just before now.
func (s *Sim) InitialHistory(_ context.Context, asset string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.cfg.Interval.Milliseconds()
	now := time.Now().UnixMilli()
	start := now - int64(limit)*step

	st := walkState{close: s.cfg.Start, ts: start - step}
	out := make([]model.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		c := s.nextCandle(asset, &st, start+int64(i)*step)
		out = append(out, c)
	}
	s.last[asset] = st
	return out, nil
}

// Subscribe emits one candle per asset per interval until ctx is cancelled.
func (s *Sim) Subscribe(ctx context.Context, out chan<- model.Candle) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[feed] simulator running: %d assets every %s", len(s.cfg.Assets), s.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now().UnixMilli()
			for _, asset := range s.cfg.Assets {
				c := s.emit(asset, now)
				select {
				case out <- c:
				default:
					log.Println("[feed] candle channel full, dropping candle")
					if s.OnDrop != nil {
						s.OnDrop()
					}
				}
			}
		}
	}
}

func (s *Sim) emit(asset string, now int64) model.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.last[asset]
	if !ok {
		st = walkState{close: s.cfg.Start, ts: now - s.cfg.Interval.Milliseconds()}
	}
	ts := now
	if ts <= st.ts {
		ts = st.ts + s.cfg.Interval.Milliseconds()
	}
	c := s.nextCandle(asset, &st, ts)
	s.last[asset] = st
	return c
}

// nextCandle advances the walk by one candle; caller holds s.mu.
func (s *Sim) nextCandle(asset string, st *walkState, ts int64) model.Candle {
	open := st.close
	// ±0.1% close-to-close drift, wicks up to another 0.05% each side.
	pct := (s.rng.Float64()*0.2 - 0.1) / 100
	cl := open * (1 + pct)
	if cl < 1 {
		cl = 1
	}
	hi := maxf(open, cl) * (1 + s.rng.Float64()*0.0005)
	lo := minf(open, cl) * (1 - s.rng.Float64()*0.0005)

	cl = model.Round2(cl)
	st.close = cl // next open equals this close exactly
	st.ts = ts
	return model.Candle{
		Asset:  asset,
		TS:     ts,
		Open:   model.Round2(open),
		High:   model.Round2(hi),
		Low:    model.Round2(lo),
		Close:  cl,
		Volume: float64(s.rng.Intn(900) + 100),
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

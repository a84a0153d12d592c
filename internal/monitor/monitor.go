// Package monitor owns one isolated state slice per asset and routes
// new-candle events through the compute pipeline: history append → wholesale
// indicator recompute → rule evaluation → publish.
//
// Assets never share mutable state, so per-asset processing may run in
// parallel; the shared alert log performs its own atomic dedup insert. The
// pivot ticker reads and writes levels through the same per-asset lock, so it
// never observes a partially-updated history.
package monitor

import (
	"fmt"
	"log"
	"sync"

	"alert-systemv1/internal/alertlog"
	"alert-systemv1/internal/history"
	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/model"
	"alert-systemv1/internal/rules"
)

// Config assembles the per-asset pipeline parameters.
type Config struct {
	HistoryLimit int
	Indicators   indicator.Config
	Rules        rules.Config
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 100,
		Indicators:   indicator.DefaultConfig(),
		Rules:        rules.DefaultConfig(),
	}
}

// Update is the combined per-asset state republished after every candle.
// All slices are copies owned by the receiver.
type Update struct {
	Asset     string                  `json:"asset"`
	History   []model.Candle          `json:"history"`
	Snapshots []indicator.Snapshot    `json:"snapshots"`
	Levels    model.SupportResistance `json:"levels"`
	Pivot     model.PivotLevel        `json:"pivot"`
}

// assetState is the exclusively-owned working set of one asset.
type assetState struct {
	mu        sync.Mutex
	hist      *history.Buffer
	snapshots []indicator.Snapshot
	levels    model.SupportResistance
	prev      indicator.Snapshot // last emitted snapshot, for delta rules
	prevSet   bool
	pivot     model.PivotLevel
	confirm   *rules.TargetConfirmation
}

// Monitor maps assets to their isolated state and drives the pipeline.
type Monitor struct {
	cfg    Config
	engine *rules.Engine
	alerts *alertlog.Log

	// OnDedupDrop, when set, is called for every alert the shared log
	// rejected as a duplicate.
	OnDedupDrop func()

	mu     sync.RWMutex
	assets map[string]*assetState

	updates chan Update
}

// New creates a Monitor publishing accepted alerts into alerts.
func New(cfg Config, alerts *alertlog.Log) *Monitor {
	return &Monitor{
		cfg:     cfg,
		engine:  rules.NewEngine(cfg.Rules),
		alerts:  alerts,
		assets:  make(map[string]*assetState),
		updates: make(chan Update, 256),
	}
}

// Updates returns the stream of republished asset states. Slow consumers
// miss intermediate updates rather than blocking the pipeline.
func (m *Monitor) Updates() <-chan Update { return m.updates }

// Seed bootstraps an asset's history before live updates begin. Indicators
// are recomputed over the seeded window and the latest snapshot becomes the
// "previous" snapshot, so rules are armed from the first live candle.
//
// Seed is authoritative: any state the asset accumulated earlier is replaced
// wholesale. A live candle that lands between a Reset and the reseed would
// otherwise sit at the head of the history and reject the backdated backfill.
func (m *Monitor) Seed(asset string, candles []model.Candle) error {
	st := m.getOrCreate(asset)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.hist = history.New(m.cfg.HistoryLimit)
	st.prev = indicator.UndefinedSnapshot()
	st.prevSet = false
	st.pivot = model.UndefinedPivot()
	st.confirm = nil

	for _, c := range candles {
		if err := st.hist.Append(c); err != nil {
			return fmt.Errorf("monitor: seed %s: %w", asset, err)
		}
	}
	res := indicator.ComputeAll(st.hist.Candles(), m.cfg.Indicators)
	st.snapshots = res.Snapshots
	st.levels = res.Levels
	if len(res.Snapshots) > 0 {
		st.prev = res.Latest()
		st.prevSet = true
	}
	log.Printf("[monitor] seeded %s with %d candles", asset, st.hist.Len())
	return nil
}

// OnNewCandle processes one live candle for an asset. An ordering violation
// is returned to the caller and affects only this event; all other assets
// and subsequent candles continue normally.
func (m *Monitor) OnNewCandle(asset string, c model.Candle) error {
	st := m.getOrCreate(asset)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.hist.Append(c); err != nil {
		return fmt.Errorf("monitor: %s: %w", asset, err)
	}

	res := indicator.ComputeAll(st.hist.Candles(), m.cfg.Indicators)
	st.snapshots = res.Snapshots
	st.levels = res.Levels
	cur := res.Latest()

	if st.prevSet {
		candles := st.hist.Candles()
		out := m.engine.Evaluate(rules.Input{
			Asset:   asset,
			Current: c,
			Window:  candles[:len(candles)-1],
			Cur:     cur,
			Prev:    st.prev,
			Pivot:   st.pivot,
			Confirm: st.confirm,
		})
		st.confirm = out.Confirm
		for _, a := range out.Alerts {
			if m.alerts.Append(a) {
				log.Printf("[monitor] %s alert %s @ %d", asset, a.Type, a.TS)
			} else if m.OnDedupDrop != nil {
				m.OnDedupDrop()
			}
		}
	}
	st.prev = cur
	st.prevSet = true

	m.publish(asset, st)
	return nil
}

// publish emits a copied Update; caller holds st.mu.
func (m *Monitor) publish(asset string, st *assetState) {
	snaps := make([]indicator.Snapshot, len(st.snapshots))
	copy(snaps, st.snapshots)
	u := Update{
		Asset:     asset,
		History:   st.hist.Snapshot(),
		Snapshots: snaps,
		Levels:    st.levels,
		Pivot:     st.pivot,
	}
	select {
	case m.updates <- u:
	default:
		// drop for slow consumers; next candle republishes full state
	}
}

// State returns a copy of the current combined state for one asset.
func (m *Monitor) State(asset string) (Update, bool) {
	m.mu.RLock()
	st, ok := m.assets[asset]
	m.mu.RUnlock()
	if !ok {
		return Update{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	snaps := make([]indicator.Snapshot, len(st.snapshots))
	copy(snaps, st.snapshots)
	return Update{
		Asset:     asset,
		History:   st.hist.Snapshot(),
		Snapshots: snaps,
		Levels:    st.levels,
		Pivot:     st.pivot,
	}, true
}

// Reset discards all per-asset state: histories, snapshot series, previous
// snapshots, pivot levels, and confirmation bookkeeping. Invoked on timeframe
// or asset-set changes. The shared alert log is left untouched: alerts
// survive resets and are removed only by explicit dismissal.
func (m *Monitor) Reset() {
	m.mu.Lock()
	n := len(m.assets)
	m.assets = make(map[string]*assetState)
	m.mu.Unlock()
	log.Printf("[monitor] reset: discarded state for %d assets", n)
}

// Assets returns the currently monitored asset names.
func (m *Monitor) Assets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.assets))
	for a := range m.assets {
		out = append(out, a)
	}
	return out
}

// LatestCandle returns the newest candle for an asset, if any. Used by the
// pivot ticker; the read happens under the asset's own lock.
func (m *Monitor) LatestCandle(asset string) (model.Candle, bool) {
	m.mu.RLock()
	st, ok := m.assets[asset]
	m.mu.RUnlock()
	if !ok {
		return model.Candle{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.hist.Last()
}

// SetPivot installs a freshly computed pivot level for an asset. The level
// becomes visible to rule evaluation on the next candle event.
func (m *Monitor) SetPivot(asset string, lvl model.PivotLevel) {
	m.mu.RLock()
	st, ok := m.assets[asset]
	m.mu.RUnlock()
	if !ok {
		return
	}
	st.mu.Lock()
	st.pivot = lvl
	st.mu.Unlock()
}

func (m *Monitor) getOrCreate(asset string) *assetState {
	m.mu.RLock()
	st, ok := m.assets[asset]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok = m.assets[asset]; ok {
		return st
	}
	st = &assetState{
		hist:   history.New(m.cfg.HistoryLimit),
		levels: model.UndefinedSupportResistance(),
		pivot:  model.UndefinedPivot(),
	}
	m.assets[asset] = st
	return st
}

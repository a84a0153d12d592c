// Package alertlog provides the shared append-only alert log with
// (type, asset, timestamp) deduplication.
//
// The log outlives any single asset state: a timeframe or asset-set reset
// discards candle histories but keeps accepted alerts. Removal happens only
// through explicit dismissal by id.
package alertlog

import (
	"sync"

	"alert-systemv1/internal/model"
)

// Log is the shared alert store. Safe for concurrent use: the check-then-insert
// in Append is a single atomic step, so parallel per-asset updates can never
// produce duplicate entries for the same dedup key.
type Log struct {
	mu     sync.RWMutex
	alerts []model.Alert
	keys   map[string]struct{} // dedup keys, set-membership instead of log scans

	accepted chan model.Alert
}

// New creates an empty Log. acceptedBuf sizes the accepted-alert channel used
// by downstream consumers (notifier, stores); 0 disables it.
func New(acceptedBuf int) *Log {
	l := &Log{
		keys: make(map[string]struct{}),
	}
	if acceptedBuf > 0 {
		l.accepted = make(chan model.Alert, acceptedBuf)
	}
	return l
}

// Append adds the alert unless an entry with the same (type, asset, timestamp)
// already exists. Returns true if the alert was accepted. Duplicates are
// silently dropped; dedup is normal-path behavior, not a failure.
func (l *Log) Append(a model.Alert) bool {
	key := a.DedupKey()

	l.mu.Lock()
	if _, dup := l.keys[key]; dup {
		l.mu.Unlock()
		return false
	}
	l.keys[key] = struct{}{}
	l.alerts = append(l.alerts, a)
	l.mu.Unlock()

	if l.accepted != nil {
		select {
		case l.accepted <- a:
		default:
			// slow consumer; the log itself stays authoritative
		}
	}
	return true
}

// Dismiss removes one alert by id. No-op (false) if absent.
func (l *Log) Dismiss(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.alerts {
		if l.alerts[i].ID == id {
			delete(l.keys, l.alerts[i].DedupKey())
			l.alerts = append(l.alerts[:i], l.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// Restore bulk-loads previously persisted alerts (startup path). Entries whose
// dedup key is already present are skipped. Restore does not emit on the
// accepted channel.
func (l *Log) Restore(alerts []model.Alert) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, a := range alerts {
		key := a.DedupKey()
		if _, dup := l.keys[key]; dup {
			continue
		}
		l.keys[key] = struct{}{}
		l.alerts = append(l.alerts, a)
		n++
	}
	return n
}

// Alerts returns a copy of all alerts in append order.
func (l *Log) Alerts() []model.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// Len returns the number of stored alerts.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.alerts)
}

// Accepted returns the channel of accepted alerts, or nil if disabled.
func (l *Log) Accepted() <-chan model.Alert {
	return l.accepted
}

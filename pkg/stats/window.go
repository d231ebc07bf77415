package stats

import "time"

// MessageWindow keeps synthetic message timestamps for a trailing span.
type MessageWindow struct {
	span   time.Duration
	stamps []time.Time
}

// NewMessageWindow creates a window covering the given span.
func NewMessageWindow(span time.Duration) *MessageWindow {
	return &MessageWindow{span: span}
}

// Prune drops timestamps that are span or more older than now.
func (w *MessageWindow) Prune(now time.Time) {
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if now.Sub(ts) < w.span {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept
}

// Add records a message at t.
func (w *MessageWindow) Add(t time.Time) {
	w.stamps = append(w.stamps, t)
}

// Len returns the number of retained timestamps.
func (w *MessageWindow) Len() int {
	return len(w.stamps)
}

// Package health decides whether the chat server is reachable.
//
// Reachability is the only real signal chatdash collects. Every metric shown on
// the dashboard is synthesized by package stats and has no correlation with
// what the chat server is actually doing.
package health

import "context"

// Prober is the interface for any component that reports chat server
// reachability. All failure modes collapse into false.
type Prober interface {
	// Probe performs one reachability check.
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(ctx context.Context) bool

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

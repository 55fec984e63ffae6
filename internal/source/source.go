// Package source adapts an inbox HTTP API into the narrow message
// source contract the pipeline consumes: list candidate messages for a
// window, fetch one message body. Source failures degrade to an empty
// result so an unreachable inbox never blocks a polling cycle.
package source

import (
	"context"
	"time"
)

// MessageRef identifies a candidate message prior to body retrieval.
type MessageRef struct {
	ID        string
	ArrivedAt time.Time
}

// Window bounds a candidate listing.
type Window struct {
	From time.Time
	To   time.Time
}

// MessageSource supplies raw message bodies for a time window. Network
// failure yields an empty list or an absent body, never an error; the
// implementation logs each such failure itself.
type MessageSource interface {
	ListCandidates(ctx context.Context, window Window) []MessageRef
	FetchBody(ctx context.Context, id string) (string, bool)
}

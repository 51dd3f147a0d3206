// Package llm defines the generation gateway consumed by the chat core: an
// opaque model-session handle plus streaming and one-shot completion calls
// against it. The handle is an open conversation context seeded with system
// instructions; it lives in memory only and is never persisted.
package llm

import "context"

// Session is an opaque model-session handle. Implementations attach their own
// conversation state to it; callers only pass it back unmodified.
type Session interface{}

// Options carries per-call generation parameters.
type Options struct {
	Temperature float64
}

// Chunk is one increment of a streaming response. Text is the cumulative
// response received so far, never a bare delta. A terminal failure is
// delivered as the final chunk's Err, after which the channel closes.
type Chunk struct {
	Text string
	Err  error
}

type Client interface {
	// CreateSession opens a conversation context seeded with the given
	// system instructions.
	CreateSession(ctx context.Context, instructions string) (Session, error)

	// StreamResponse sends prompt into the session and streams the reply.
	// The channel closes after the final chunk. Cancelling ctx ends the
	// stream; the cancellation surfaces as a Chunk whose Err wraps
	// context.Canceled.
	StreamResponse(ctx context.Context, s Session, prompt string, opts Options) (<-chan Chunk, error)

	// Respond sends prompt into the session and returns the complete reply.
	Respond(ctx context.Context, s Session, prompt string, opts Options) (string, error)

	// IsModelAvailable reports whether generation calls can be attempted at
	// all with the current configuration.
	IsModelAvailable() bool

	// AvailabilityDescription is a human-readable explanation for the
	// current availability state.
	AvailabilityDescription() string
}

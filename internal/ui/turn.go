package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"localchat/internal/llm"
	"localchat/internal/settings"
	"localchat/internal/store"
)

// Turn pipeline events, applied one at a time by the chat model's Update.
// The runner goroutine only produces them; it never touches model state.

type turnHandleMsg struct {
	seq    int
	handle llm.Session
	err    error
}

// turnSessionSavedMsg doubles as the cross-component "session saved" event:
// the root model forwards it to the session directory for a refresh.
type turnSessionSavedMsg struct {
	seq        int
	session    store.Session
	persistErr error
}

type turnUserMsg struct {
	seq        int
	msg        store.Message
	persistErr error
}

type turnPlaceholderMsg struct {
	seq        int
	msg        store.Message
	persistErr error
}

type turnChunkMsg struct {
	seq        int
	text       string
	persistErr error
}

type turnDoneMsg struct {
	seq       int
	cancelled bool
	err       error
}

// turnRunner drives one send pipeline: ensure a model-session handle, persist
// the session, the user turn and the assistant placeholder, then stream or
// one-shot the generation. Every state-affecting step is reported as an event
// on the channel; the channel closes when the pipeline terminates.
//
// Persistence writes use a background context on purpose: cancelling the turn
// stops generation but never retracts text that was already produced.
type turnRunner struct {
	store    Store
	client   llm.Client
	settings settings.Settings

	handle   llm.Session
	selected *store.Session
	prompt   string
	seq      int

	events chan tea.Msg
}

func (r *turnRunner) run(ctx context.Context) {
	defer close(r.events)
	pctx := context.Background()

	handle := r.handle
	if handle == nil {
		h, err := r.client.CreateSession(ctx, r.settings.SystemInstructions)
		if err != nil {
			r.events <- turnHandleMsg{seq: r.seq, err: err}
			return
		}
		handle = h
		r.events <- turnHandleMsg{seq: r.seq, handle: h}
	}

	now := time.Now()
	var sess store.Session
	if r.selected != nil {
		sess = *r.selected
		sess.UpdatedAt = now.Unix()
	} else {
		sess = store.Session{
			ID:        uuid.NewString(),
			CreatedAt: now.Unix(),
			UpdatedAt: now.Unix(),
			Title:     r.prompt,
		}
	}
	r.events <- turnSessionSavedMsg{seq: r.seq, session: sess, persistErr: r.store.UpdateSession(pctx, sess)}

	userMsg := store.Message{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		TS:        now.UnixNano(),
		Role:      store.RoleUser,
		Text:      r.prompt,
	}
	r.events <- turnUserMsg{seq: r.seq, msg: userMsg, persistErr: r.store.CreateMessage(pctx, userMsg)}

	placeholder := store.Message{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		TS:        time.Now().UnixNano(),
		Role:      store.RoleAssistant,
	}
	r.events <- turnPlaceholderMsg{seq: r.seq, msg: placeholder, persistErr: r.store.CreateMessage(pctx, placeholder)}

	opts := llm.Options{Temperature: r.settings.Temperature}
	if r.settings.UseStreaming {
		r.streamTurn(ctx, pctx, handle, placeholder, opts)
	} else {
		r.oneShotTurn(ctx, pctx, handle, placeholder, opts)
	}
}

func (r *turnRunner) streamTurn(ctx, pctx context.Context, handle llm.Session, placeholder store.Message, opts llm.Options) {
	ch, err := r.client.StreamResponse(ctx, handle, r.prompt, opts)
	if err != nil {
		r.events <- doneFromErr(r.seq, err)
		return
	}
	for chunk := range ch {
		if chunk.Err != nil {
			r.events <- doneFromErr(r.seq, chunk.Err)
			return
		}
		placeholder.Text = chunk.Text
		r.events <- turnChunkMsg{seq: r.seq, text: chunk.Text, persistErr: r.store.UpdateMessage(pctx, placeholder)}
	}
	r.events <- turnDoneMsg{seq: r.seq}
}

func (r *turnRunner) oneShotTurn(ctx, pctx context.Context, handle llm.Session, placeholder store.Message, opts llm.Options) {
	text, err := r.client.Respond(ctx, handle, r.prompt, opts)
	if err != nil {
		r.events <- doneFromErr(r.seq, err)
		return
	}
	placeholder.Text = text
	r.events <- turnChunkMsg{seq: r.seq, text: text, persistErr: r.store.UpdateMessage(pctx, placeholder)}
	r.events <- turnDoneMsg{seq: r.seq}
}

// doneFromErr distinguishes a user-initiated stop from a real failure.
// Cancellation terminates the pipeline as a non-error completion.
func doneFromErr(seq int, err error) turnDoneMsg {
	if errors.Is(err, context.Canceled) {
		return turnDoneMsg{seq: seq, cancelled: true}
	}
	return turnDoneMsg{seq: seq, err: err}
}

// awaitTurn delivers the next pipeline event into the Update loop. A closed
// channel yields nil, which bubbletea discards.
func awaitTurn(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

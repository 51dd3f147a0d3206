package ui

import (
	"context"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"localchat/internal/llm"
	"localchat/internal/store"
)

// fakeStore is an in-memory persistence gateway that records every write.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]store.Session
	messages map[string][]store.Message

	sessionWrites int
	messageWrites int
	messageEdits  int

	failWrites bool
	writeErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]store.Session),
		messages: make(map[string][]store.Message),
	}
}

func (f *fakeStore) CreateSession(ctx context.Context, s store.Session) error {
	return f.UpdateSession(ctx, s)
}

func (f *fakeStore) UpdateSession(_ context.Context, s store.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return f.writeErr
	}
	f.sessionWrites++
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return store.Session{}, store.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return f.writeErr
	}
	f.messageWrites++
	f.messages[m.SessionID] = append(f.messages[m.SessionID], m)
	return nil
}

func (f *fakeStore) UpdateMessage(_ context.Context, m store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return f.writeErr
	}
	f.messageEdits++
	msgs := f.messages[m.SessionID]
	for i := range msgs {
		if msgs[i].ID == m.ID {
			msgs[i] = m
			return nil
		}
	}
	f.messages[m.SessionID] = append(msgs, m)
	return nil
}

func (f *fakeStore) FetchAllMessages(_ context.Context, sessionID string) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Message(nil), f.messages[sessionID]...), nil
}

func (f *fakeStore) FetchAllSessions(context.Context) ([]store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	// Recency order, matching the real gateway.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt > out[i].UpdatedAt {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SearchMessages(_ context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for sid, msgs := range f.messages {
		for _, m := range msgs {
			if strings.Contains(strings.ToLower(m.Text), strings.ToLower(query)) {
				ids = append(ids, sid)
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) counts() (sessionWrites, messageWrites, messageEdits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionWrites, f.messageWrites, f.messageEdits
}

type fakeHandle struct {
	instructions string
}

// fakeClient scripts generation behavior and counts handle creations.
type fakeClient struct {
	mu sync.Mutex

	unavailable bool
	reason      string

	createErr        error
	created          int
	lastInstructions string

	streamChunks []string
	streamErr    error
	blockStream  bool

	respondText string
	respondErr  error
}

func (c *fakeClient) CreateSession(_ context.Context, instructions string) (llm.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created++
	c.lastInstructions = instructions
	return &fakeHandle{instructions: instructions}, nil
}

func (c *fakeClient) StreamResponse(ctx context.Context, _ llm.Session, _ string, _ llm.Options) (<-chan llm.Chunk, error) {
	c.mu.Lock()
	chunks := append([]string(nil), c.streamChunks...)
	streamErr := c.streamErr
	block := c.blockStream
	c.mu.Unlock()

	ch := make(chan llm.Chunk, len(chunks)+1)
	go func() {
		defer close(ch)
		for _, text := range chunks {
			ch <- llm.Chunk{Text: text}
		}
		if block {
			<-ctx.Done()
			ch <- llm.Chunk{Err: ctx.Err()}
			return
		}
		if streamErr != nil {
			ch <- llm.Chunk{Err: streamErr}
		}
	}()
	return ch, nil
}

func (c *fakeClient) Respond(context.Context, llm.Session, string, llm.Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respondText, c.respondErr
}

func (c *fakeClient) IsModelAvailable() bool { return !c.unavailable }

func (c *fakeClient) AvailabilityDescription() string {
	if c.unavailable {
		return c.reason
	}
	return "Available"
}

func (c *fakeClient) createdCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

// drainTurn pulls pipeline events into the model until the event channel
// closes, the way the program loop would one message at a time.
func drainTurn(m *chatModel) {
	for {
		msg := awaitTurn(m.turnEvents)()
		if msg == nil {
			return
		}
		m.update(msg)
	}
}

// pullTurnEvents applies exactly n pipeline events.
func pullTurnEvents(m *chatModel, n int) []tea.Msg {
	out := make([]tea.Msg, 0, n)
	for i := 0; i < n; i++ {
		msg := awaitTurn(m.turnEvents)()
		if msg == nil {
			return out
		}
		out = append(out, msg)
		m.update(msg)
	}
	return out
}

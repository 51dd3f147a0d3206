package ui

import (
	"context"

	"localchat/internal/store"
)

// Store is the persistence gateway surface the UI depends on. *store.Store
// satisfies it; tests substitute in-memory doubles.
type Store interface {
	CreateSession(ctx context.Context, session store.Session) error
	UpdateSession(ctx context.Context, session store.Session) error
	GetSession(ctx context.Context, sessionID string) (store.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CreateMessage(ctx context.Context, msg store.Message) error
	UpdateMessage(ctx context.Context, msg store.Message) error
	FetchAllMessages(ctx context.Context, sessionID string) ([]store.Message, error)
	FetchAllSessions(ctx context.Context) ([]store.Session, error)
	SearchMessages(ctx context.Context, query string) ([]string, error)
}

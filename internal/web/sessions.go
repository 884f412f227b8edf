package web

import (
	"context"
	"errors"
	"sync"

	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/session"
)

// sessionManager keeps live sessions in memory and persists them to the
// optional store.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	store    *session.Store
	counter  *llm.TokenCounter
}

func newSessionManager(store *session.Store, counter *llm.TokenCounter) *sessionManager {
	return &sessionManager{
		sessions: make(map[string]*session.Session),
		store:    store,
		counter:  counter,
	}
}

// get returns a live or stored session.
func (m *sessionManager) get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx, id)
}

func (m *sessionManager) getLocked(ctx context.Context, id string) (*session.Session, error) {
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	if m.store == nil {
		return nil, session.ErrNotFound
	}
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.SetTokenCounter(m.counter)
	m.sessions[id] = sess
	return sess, nil
}

// getOrCreate returns the session id, creating it when it does not exist.
// An empty id always creates a new session.
func (m *sessionManager) getOrCreate(ctx context.Context, id string) *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		sess, err := m.getLocked(ctx, id)
		if err == nil {
			return sess
		}
		if !errors.Is(err, session.ErrNotFound) {
			logger.Warn("failed to load session %s: %v", id, err)
		}
	}

	sess := session.NewSession(id)
	sess.SetTokenCounter(m.counter)
	m.sessions[sess.ID] = sess
	return sess
}

func (m *sessionManager) clear(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		sess.Clear()
		m.save(context.Background(), sess)
	}
}

func (m *sessionManager) delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store == nil {
		if !live {
			return session.ErrNotFound
		}
		return nil
	}
	err := m.store.Delete(ctx, id)
	if live && errors.Is(err, session.ErrNotFound) {
		return nil
	}
	return err
}

func (m *sessionManager) list(ctx context.Context) ([]session.Summary, error) {
	if m.store != nil {
		return m.store.List(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]session.Summary, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, session.Summary{
			ID:           sess.ID,
			Title:        sess.GetTitle(),
			MessageCount: sess.Len(),
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
		})
	}
	return out, nil
}

func (m *sessionManager) save(ctx context.Context, sess *session.Session) {
	if m.store == nil || !sess.IsDirty() {
		return
	}
	if err := m.store.Save(ctx, sess); err != nil {
		logger.Error("failed to save session %s: %v", sess.ID, err)
	}
}

func (m *sessionManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

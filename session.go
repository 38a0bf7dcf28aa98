package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxSessions = 100
	emptySessionGrace  = time.Minute // created sessions wait this long for a first join
)

// Session represents a game session that players can join
type Session struct {
	ID      string
	Name    string
	Game    *Game
	created time.Time
	cancel  context.CancelFunc
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
	cfg      GameConfig
	stats    StatsRecorder
	ctx      context.Context
}

// NewSessionManager creates a SessionManager. Every game it starts stops when
// ctx is cancelled.
func NewSessionManager(ctx context.Context, cfg GameConfig, stats StatsRecorder, limit int) *SessionManager {
	if limit <= 0 {
		limit = defaultMaxSessions
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		limit:    limit,
		cfg:      cfg,
		stats:    stats,
		ctx:      ctx,
	}
}

// CreateSession creates a new game session. Returns nil if limit reached.
func (sm *SessionManager) CreateSession(name string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.limit {
		logrus.WithField("limit", sm.limit).Warn("session limit reached")
		return nil
	}

	id := GenerateUUID()
	game := NewGame(sm.cfg, sm.stats)
	game.log = game.log.WithField("session", id)

	ctx, cancel := context.WithCancel(sm.ctx)
	sess := &Session{
		ID:      id,
		Name:    name,
		Game:    game,
		created: time.Now(),
		cancel:  cancel,
	}
	sm.sessions[id] = sess
	go game.Run(ctx)

	logrus.WithFields(logrus.Fields{"session": id, "name": name}).Info("session created")
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// RemovePlayer removes a player from a session and reaps the session once
// it is empty
func (sm *SessionManager) RemovePlayer(sessionID, playerID string) {
	sm.mu.RLock()
	sess, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return
	}
	sess.Game.RemovePlayer(playerID)

	if sess.Game.PlayerCount() == 0 {
		sm.closeSession(sessionID)
	}
}

func (sm *SessionManager) closeSession(id string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if !ok {
		return
	}
	sess.cancel()
	sess.Game.Stop()
	logrus.WithField("session", id).Info("session closed")
}

// ReapEmpty closes sessions that have had no players for longer than grace
// since creation. Returns how many were closed.
func (sm *SessionManager) ReapEmpty(grace time.Duration) int {
	now := time.Now()
	sm.mu.RLock()
	var idle []string
	for id, sess := range sm.sessions {
		if sess.Game.PlayerCount() == 0 && now.Sub(sess.created) > grace {
			idle = append(idle, id)
		}
	}
	sm.mu.RUnlock()
	for _, id := range idle {
		sm.closeSession(id)
	}
	return len(idle)
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ListSessions returns info about all active sessions, busiest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		list = append(list, SessionInfo{
			ID:      sess.ID,
			Name:    sess.Name,
			Players: sess.Game.PlayerCount(),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Players != list[j].Players {
			return list[i].Players > list[j].Players
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// CloseAll stops every session
func (sm *SessionManager) CloseAll() {
	sm.mu.RLock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.RUnlock()
	for _, id := range ids {
		sm.closeSession(id)
	}
}

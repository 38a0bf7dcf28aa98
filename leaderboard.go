package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	defaultLeaderboardTTL   = 30 * time.Second
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// Leaderboard serves ranked stats from a short-lived cache in front of the
// database. Stat writes go through it so cached rankings are dropped as soon
// as they go stale.
type Leaderboard struct {
	db    *DB
	cache *ristretto.Cache[string, []LeaderboardEntry]
	ttl   time.Duration
}

// NewLeaderboard creates a Leaderboard caching query results for ttl
func NewLeaderboard(db *DB, ttl time.Duration) (*Leaderboard, error) {
	if ttl <= 0 {
		ttl = defaultLeaderboardTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []LeaderboardEntry]{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache: %w", err)
	}
	return &Leaderboard{db: db, cache: cache, ttl: ttl}, nil
}

func leaderboardKey(orderBy string, limit int) string {
	return orderBy + "|" + strconv.Itoa(limit)
}

// Top returns up to limit entries ordered by orderBy
func (l *Leaderboard) Top(orderBy string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	key := leaderboardKey(orderBy, limit)
	if entries, ok := l.cache.Get(key); ok {
		return entries, nil
	}

	entries, err := l.db.GetLeaderboard(orderBy, limit)
	if err != nil {
		return nil, err
	}
	cost := int64(len(entries))
	if cost == 0 {
		cost = 1
	}
	l.cache.SetWithTTL(key, entries, cost, l.ttl)
	l.cache.Wait()
	return entries, nil
}

// Invalidate drops every cached ranking
func (l *Leaderboard) Invalidate() {
	l.cache.Clear()
}

// RecordKill implements StatsRecorder
func (l *Leaderboard) RecordKill(killerID, victimID int64, cause string) error {
	if err := l.db.RecordKill(killerID, victimID, cause); err != nil {
		return err
	}
	l.Invalidate()
	return nil
}

// RecordSharkHit implements StatsRecorder
func (l *Leaderboard) RecordSharkHit(playerID int64) error {
	if err := l.db.RecordSharkHit(playerID); err != nil {
		return err
	}
	l.Invalidate()
	return nil
}

// RecordPlaytime implements StatsRecorder. Playtime is not ranked, so the
// cache is left alone.
func (l *Leaderboard) RecordPlaytime(playerID int64, seconds float64) error {
	return l.db.RecordPlaytime(playerID, seconds)
}

// Close releases the cache
func (l *Leaderboard) Close() {
	l.cache.Close()
}

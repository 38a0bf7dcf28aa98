package main

import (
	"testing"
	"time"
)

func newTestLeaderboard(t *testing.T, db *DB) *Leaderboard {
	t.Helper()
	lb, err := NewLeaderboard(db, time.Minute)
	if err != nil {
		t.Fatalf("new leaderboard: %v", err)
	}
	t.Cleanup(lb.Close)
	return lb
}

func TestLeaderboardCachesUntilWrite(t *testing.T) {
	db := openTestDB(t)
	lb := newTestLeaderboard(t, db)
	a := mustCreatePlayer(t, db, "alice")
	b := mustCreatePlayer(t, db, "bob")

	first, err := lb.Top("kills", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].Kills != 0 {
		t.Fatalf("unexpected initial board %+v", first)
	}

	// A write behind the cache's back is not visible yet
	if err := db.RecordKill(a, b, CauseShark); err != nil {
		t.Fatal(err)
	}
	cached, _ := lb.Top("kills", 10)
	if cached[0].Kills != 0 {
		t.Errorf("expected cached board, got %+v", cached[0])
	}

	// Writes through the recorder drop the cache
	if err := lb.RecordKill(a, b, CauseShark); err != nil {
		t.Fatal(err)
	}
	fresh, _ := lb.Top("kills", 10)
	if fresh[0].Username != "alice" || fresh[0].Kills != 2 {
		t.Errorf("expected alice with 2 kills on top, got %+v", fresh[0])
	}
}

func TestLeaderboardLimitClamped(t *testing.T) {
	db := openTestDB(t)
	lb := newTestLeaderboard(t, db)
	for _, name := range []string{"a1", "a2", "a3"} {
		mustCreatePlayer(t, db, name)
	}

	entries, err := lb.Top("kills", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
	all, _ := lb.Top("kills", 0)
	if len(all) != 3 {
		t.Errorf("expected default limit to cover all 3, got %d", len(all))
	}
}

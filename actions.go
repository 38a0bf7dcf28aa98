package main

import (
	"sort"
	"sync"
)

const maxActionsPerPlayer = 16

// Action is one input waiting to be applied on the next tick
type Action struct {
	PlayerID string
	Input    ClientInput
}

// ActionQueue buffers player inputs between network goroutines and the tick.
// Each game owns its own queue.
type ActionQueue struct {
	mu      sync.Mutex
	pending map[string][]ClientInput
	limit   int
}

// NewActionQueue creates a queue holding at most limit actions per player
func NewActionQueue(limit int) *ActionQueue {
	if limit <= 0 {
		limit = maxActionsPerPlayer
	}
	return &ActionQueue{
		pending: make(map[string][]ClientInput),
		limit:   limit,
	}
}

// Push appends an input for playerID. When the player's buffer is full the
// oldest input is dropped.
func (q *ActionQueue) Push(playerID string, input ClientInput) {
	q.mu.Lock()
	defer q.mu.Unlock()
	buf := q.pending[playerID]
	if len(buf) >= q.limit {
		buf = append(buf[:0], buf[1:]...)
	}
	q.pending[playerID] = append(buf, input)
}

// Forget drops everything queued for playerID
func (q *ActionQueue) Forget(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, playerID)
}

// Len returns the number of queued actions
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, buf := range q.pending {
		n += len(buf)
	}
	return n
}

// Drain removes and returns all queued actions ordered by player id, each
// player's inputs in arrival order
func (q *ActionQueue) Drain() []Action {
	q.mu.Lock()
	pending := q.pending
	q.pending = make(map[string][]ClientInput, len(pending))
	q.mu.Unlock()

	ids := make([]string, 0, len(pending))
	n := 0
	for id, buf := range pending {
		ids = append(ids, id)
		n += len(buf)
	}
	sort.Strings(ids)

	out := make([]Action, 0, n)
	for _, id := range ids {
		for _, in := range pending[id] {
			out = append(out, Action{PlayerID: id, Input: in})
		}
	}
	return out
}

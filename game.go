package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"sharkarena-server/internal/qtree"
)

const (
	maxSharksPerSession  = 500
	maxPlayersPerSession = 20
)

// GameConfig holds the per-session world settings
type GameConfig struct {
	Bounds         qtree.Bounds
	MaxLevel       int
	TickRate       int // physics ticks per second
	BroadcastEvery int // ticks between state broadcasts
}

// DefaultGameConfig is the 1600x2000 arena indexed three levels deep
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Bounds:         qtree.Bounds{Width: 1600, Height: 2000},
		MaxLevel:       3,
		TickRate:       60,
		BroadcastEvery: 2,
	}
}

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// StatsRecorder persists lifetime stats. Ids are account ids; guests have 0
// and are ignored by the store.
type StatsRecorder interface {
	RecordKill(killerID, victimID int64, cause string) error
	RecordSharkHit(playerID int64) error
	RecordPlaytime(playerID int64, seconds float64) error
}

type statKind int

const (
	statKill statKind = iota
	statHit
	statPlaytime
)

type statEvent struct {
	kind     statKind
	killerID int64
	victimID int64
	cause    string
	seconds  float64
}

// Game holds the state for one game session
type Game struct {
	cfg GameConfig

	mu        sync.RWMutex
	players   *qtree.Repository[*Player]
	sharks    *qtree.Repository[*Shark]
	bombs     *qtree.Repository[*Bomb]
	clients   map[string]Broadcaster // playerID -> client
	actions   *ActionQueue
	gone      []string // ids despawned since the last broadcast
	events    []statEvent
	bombTimer float64
	tick      uint64

	stats    StatsRecorder
	log      logrus.FieldLogger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewGame creates a new Game. stats may be nil.
func NewGame(cfg GameConfig, stats StatsRecorder) *Game {
	return &Game{
		cfg:       cfg,
		players:   qtree.NewRepository[*Player](cfg.Bounds, cfg.MaxLevel),
		sharks:    qtree.NewRepository[*Shark](cfg.Bounds, cfg.MaxLevel),
		bombs:     qtree.NewRepository[*Bomb](cfg.Bounds, cfg.MaxLevel),
		clients:   make(map[string]Broadcaster),
		actions:   NewActionQueue(maxActionsPerPlayer),
		bombTimer: BombSpawnInterval,
		stats:     stats,
		log:       logrus.WithField("component", "game"),
		stop:      make(chan struct{}),
	}
}

// Config returns the settings the game was built with
func (g *Game) Config() GameConfig {
	return g.cfg
}

// Run drives the tick loop until ctx is cancelled or Stop is called
func (g *Game) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(g.cfg.TickRate))
	defer ticker.Stop()

	g.log.Debug("game loop started")
	defer g.log.Debug("game loop stopped")

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// AddPlayer adds a new player to the game. Returns nil when the session is full.
func (g *Game) AddPlayer(name string) *Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.players.Len() >= maxPlayersPerSession {
		return nil
	}

	id := GenerateID(4)
	player := NewPlayer(id, name, g.cfg.Bounds)
	if !g.players.Set(id, player) {
		g.log.WithField("player", id).Warn("spawn point outside the arena")
		return nil
	}
	return player
}

// RemovePlayer removes a player from the game
func (g *Game) RemovePlayer(id string) {
	g.mu.Lock()
	p, ok := g.players.Get(id)
	if ok {
		g.players.Delete(id)
		g.gone = append(g.gone, id)
		if p.AuthPlayerID != 0 && p.Playtime > 0 {
			g.events = append(g.events, statEvent{kind: statPlaytime, victimID: p.AuthPlayerID, seconds: p.Playtime})
		}
	}
	delete(g.clients, id)
	events := g.takeEvents()
	g.mu.Unlock()

	g.actions.Forget(id)
	g.recordStats(events)
}

// SetClient associates a broadcaster with a player
func (g *Game) SetClient(playerID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[playerID] = client
}

// HandleInput queues input from a player for the next tick
func (g *Game) HandleInput(playerID string, input ClientInput) {
	g.actions.Push(playerID, input)
}

// HasPlayer checks whether a player is in this game
func (g *Game) HasPlayer(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.players.Get(id)
	return ok
}

// PlayerCount returns the number of players
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players.Len()
}

// update runs one game tick and flushes the stats it produced outside the lock
func (g *Game) update() {
	g.mu.Lock()
	g.step()
	events := g.takeEvents()
	g.mu.Unlock()

	g.recordStats(events)
}

func (g *Game) step() {
	dt := 1.0 / float64(g.cfg.TickRate)
	g.tick++

	for _, a := range g.actions.Drain() {
		if p, ok := g.players.Get(a.PlayerID); ok {
			p.Apply(a.Input)
		}
	}

	g.updatePlayers(dt)
	g.updateSharks(dt)
	g.updateBombs(dt)

	g.checkSharkHits()
	g.checkBombHits()
	g.checkRams()

	if g.tick%uint64(g.cfg.BroadcastEvery) == 0 {
		g.broadcastState()
	}
}

func (g *Game) updatePlayers(dt float64) {
	for _, id := range g.players.IDs() {
		p, _ := g.players.Get(id)
		p.Update(dt, g.cfg.Bounds)
		if p.Alive {
			p.Playtime += dt
		}
		if !g.players.UpdateActor(id, p) {
			// Walls keep players inside, so this only happens on a bad respawn
			g.log.WithField("player", id).Warn("player left the arena, respawning")
			p.Respawn(g.cfg.Bounds)
			g.players.Set(id, p)
			continue
		}

		if p.CanFire() && g.sharks.Len() < maxSharksPerSession {
			s := NewShark(p)
			g.sharks.Set(s.ID, s)
			p.FireCD = FireCooldown
		}
	}
}

func (g *Game) updateSharks(dt float64) {
	for _, id := range g.sharks.IDs() {
		s, _ := g.sharks.Get(id)
		s.Update(dt)
		if !s.Alive {
			g.despawnShark(id)
			continue
		}
		if !g.sharks.UpdateActor(id, s) {
			// Swam out of the arena; the repository already dropped it
			s.Alive = false
			g.gone = append(g.gone, id)
		}
	}
}

func (g *Game) updateBombs(dt float64) {
	g.bombTimer -= dt
	if g.bombTimer <= 0 {
		g.bombTimer = BombSpawnInterval
		if g.bombs.Len() < maxBombsPerSession {
			b := NewBomb(g.cfg.Bounds)
			g.bombs.Set(b.ID, b)
		}
	}

	for _, id := range g.bombs.IDs() {
		b, _ := g.bombs.Get(id)
		b.Update(dt)
		if !b.Alive {
			g.bombs.Delete(id)
			g.gone = append(g.gone, id)
		}
	}
}

// checkSharkHits damages players touched by someone else's shark
func (g *Game) checkSharkHits() {
	qtree.DetectOverlap(g.sharks, g.players, func(sid string, s *Shark, pid string, p *Player) {
		if s.OwnerID == pid || !s.Alive {
			return
		}
		g.despawnShark(sid)

		owner, _ := g.players.Get(s.OwnerID)
		if owner != nil {
			owner.Hits++
			if owner.AuthPlayerID != 0 {
				g.events = append(g.events, statEvent{kind: statHit, killerID: owner.AuthPlayerID})
			}
		}
		if p.TakeDamage(s.Damage) {
			g.onKill(owner, p, CauseShark)
		}
	})
}

// checkBombHits kills players that touch an armed bomb
func (g *Game) checkBombHits() {
	qtree.DetectOverlap(g.bombs, g.players, func(bid string, b *Bomb, pid string, p *Player) {
		if !b.Alive {
			return
		}
		b.Alive = false
		g.bombs.Delete(bid)
		g.gone = append(g.gone, bid)

		if p.TakeDamage(p.HP) {
			g.onKill(nil, p, CauseBomb)
		}
	})
}

// checkRams damages both players when ships collide, then pushes them apart
func (g *Game) checkRams() {
	qtree.DetectOverlap(g.players, g.players, func(ida string, a *Player, idb string, b *Player) {
		if a.RamCD > 0 || b.RamCD > 0 {
			return
		}
		a.RamCD = RamCooldown
		b.RamCD = RamCooldown
		g.pushApart(a, b)

		aDied := a.TakeDamage(RamDamage)
		bDied := b.TakeDamage(RamDamage)
		if bDied {
			g.onKill(a, b, CauseRam)
		}
		if aDied {
			g.onKill(b, a, CauseRam)
		}
	})
}

func (g *Game) pushApart(a, b *Player) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	d := math.Hypot(dx, dy)
	nx, ny := 1.0, 0.0
	if d > 0 {
		nx, ny = dx/d, dy/d
	}
	push := (PlayerSize - d) / 2
	if push < 0 {
		push = 0
	}

	half := PlayerSize / 2
	a.X = Clamp(a.X-nx*push, half, g.cfg.Bounds.Width-half)
	a.Y = Clamp(a.Y-ny*push, half, g.cfg.Bounds.Height-half)
	b.X = Clamp(b.X+nx*push, half, g.cfg.Bounds.Width-half)
	b.Y = Clamp(b.Y+ny*push, half, g.cfg.Bounds.Height-half)
	a.VX, b.VX = b.VX, a.VX
	a.VY, b.VY = b.VY, a.VY

	g.players.UpdateActor(a.ID, a)
	g.players.UpdateActor(b.ID, b)
}

func (g *Game) despawnShark(id string) {
	if s, ok := g.sharks.Get(id); ok {
		s.Alive = false
	}
	g.sharks.Delete(id)
	g.gone = append(g.gone, id)
}

// onKill notifies the session about a death. killer is nil for bombs and
// for sharks whose owner already left.
func (g *Game) onKill(killer, victim *Player, cause string) {
	msg := KillMsg{VictimID: victim.ID, VictimName: victim.Name, Cause: cause}
	death := DeathMsg{Cause: cause}
	ev := statEvent{kind: statKill, victimID: victim.AuthPlayerID, cause: cause}
	if killer != nil {
		killer.Score++
		msg.KillerID, msg.KillerName = killer.ID, killer.Name
		death.KillerID, death.KillerName = killer.ID, killer.Name
		ev.killerID = killer.AuthPlayerID
	}

	g.log.WithFields(logrus.Fields{
		"victim": victim.ID,
		"killer": msg.KillerID,
		"cause":  cause,
	}).Debug("player killed")

	g.broadcastMsg(Envelope{T: MsgKill, Data: msg})
	if client, ok := g.clients[victim.ID]; ok {
		client.SendJSON(Envelope{T: MsgDeath, Data: death})
	}
	if ev.killerID != 0 || ev.victimID != 0 {
		g.events = append(g.events, ev)
	}
}

// snapshot builds the state delta for the current tick
func (g *Game) snapshot() GameState {
	state := GameState{
		Players: make([]PlayerState, 0, g.players.Len()),
		Sharks:  make([]SharkState, 0, g.sharks.Len()),
		Bombs:   make([]BombState, 0, g.bombs.Len()),
		Gone:    g.gone,
		Tick:    g.tick,
	}
	for _, id := range g.players.IDs() {
		p, _ := g.players.Get(id)
		state.Players = append(state.Players, p.ToState())
	}
	for _, id := range g.sharks.IDs() {
		s, _ := g.sharks.Get(id)
		state.Sharks = append(state.Sharks, s.ToState())
	}
	for _, id := range g.bombs.IDs() {
		b, _ := g.bombs.Get(id)
		state.Bombs = append(state.Bombs, b.ToState())
	}
	return state
}

// broadcastState sends the msgpack-encoded state to all clients as a binary frame
func (g *Game) broadcastState() {
	data, err := msgpack.Marshal(g.snapshot())
	g.gone = nil
	if err != nil {
		g.log.WithError(err).Error("encode state")
		return
	}
	for _, client := range g.clients {
		client.SendBinary(data)
	}
}

// broadcastMsg sends a message to all clients in the session
func (g *Game) broadcastMsg(msg Envelope) {
	for _, client := range g.clients {
		client.SendJSON(msg)
	}
}

func (g *Game) takeEvents() []statEvent {
	events := g.events
	g.events = nil
	return events
}

func (g *Game) recordStats(events []statEvent) {
	if g.stats == nil {
		return
	}
	for _, ev := range events {
		var err error
		switch ev.kind {
		case statKill:
			err = g.stats.RecordKill(ev.killerID, ev.victimID, ev.cause)
		case statHit:
			err = g.stats.RecordSharkHit(ev.killerID)
		case statPlaytime:
			err = g.stats.RecordPlaytime(ev.victimID, ev.seconds)
		}
		if err != nil {
			g.log.WithError(err).Warn("record stats")
		}
	}
}

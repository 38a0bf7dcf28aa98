package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgInput    = "input"
	MsgCreate   = "create"  // create session
	MsgList     = "list"    // list sessions
	MsgCheck    = "check"   // check if session exists
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"    // resume with a stored token
	MsgProfile  = "profile" // request own stats
)

// Server -> Client message types
const (
	MsgState       = "state"
	MsgWelcome     = "welcome"
	MsgDeath       = "death"
	MsgKill        = "kill"
	MsgSessions    = "sessions"
	MsgJoined      = "joined"
	MsgCreated     = "created" // session created, client should navigate
	MsgError       = "error"
	MsgChecked     = "checked" // session check response
	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile_data"
)

// Kill causes reported in KillMsg
const (
	CauseShark = "shark"
	CauseBomb  = "bomb"
	CauseRam   = "ram"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; D is decoded once the type is known
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ClientInput is sent by the client at 20Hz
type ClientInput struct {
	MX    float64 `json:"mx"`    // pointer X (world coords)
	MY    float64 `json:"my"`    // pointer Y (world coords)
	Fire  bool    `json:"fire"`  // launch sharks while held
	Boost bool    `json:"boost"` // boost while held
}

// JoinMsg is sent when a player wants to join a session
type JoinMsg struct {
	Name      string `json:"name"`
	SessionID string `json:"sid"`
}

// CreateMsg is sent when a player wants to create a session
type CreateMsg struct {
	Name        string `json:"name"`
	SessionName string `json:"sname"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates an existing account
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"pid"`
}

// ProfileDataMsg carries the caller's lifetime stats
type ProfileDataMsg struct {
	Username  string  `json:"username"`
	Kills     int     `json:"kills"`
	Deaths    int     `json:"deaths"`
	SharkHits int     `json:"shark_hits"`
	BombsHit  int     `json:"bombs_hit"`
	Playtime  float64 `json:"playtime"`
}

// PlayerState is broadcast per player
type PlayerState struct {
	ID    string  `json:"id" msgpack:"id"`
	Name  string  `json:"n" msgpack:"n"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	R     float64 `json:"r" msgpack:"r"`   // rotation radians
	VX    float64 `json:"vx" msgpack:"vx"` // velocity X
	VY    float64 `json:"vy" msgpack:"vy"` // velocity Y
	HP    int     `json:"hp" msgpack:"hp"`
	MaxHP int     `json:"mhp" msgpack:"mhp"`
	Score int     `json:"sc" msgpack:"sc"`
	Alive bool    `json:"a" msgpack:"a"`
	Boost bool    `json:"b,omitempty" msgpack:"b,omitempty"`
}

// SharkState is broadcast per shark
type SharkState struct {
	ID    string  `json:"id" msgpack:"id"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	R     float64 `json:"r" msgpack:"r"`
	Owner string  `json:"o" msgpack:"o"`
}

// BombState is broadcast per bomb
type BombState struct {
	ID    string  `json:"id" msgpack:"id"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Size  float64 `json:"s" msgpack:"s"`
	Armed bool    `json:"a" msgpack:"a"`
}

// GameState is the msgpack-encoded delta sent as a binary frame. Gone lists
// ids despawned since the previous broadcast.
type GameState struct {
	Players []PlayerState `json:"p" msgpack:"p"`
	Sharks  []SharkState  `json:"sh" msgpack:"sh"`
	Bombs   []BombState   `json:"bo" msgpack:"bo"`
	Gone    []string      `json:"g,omitempty" msgpack:"g,omitempty"`
	Tick    uint64        `json:"tick" msgpack:"tick"`
}

// WelcomeMsg is sent to a player when they join
type WelcomeMsg struct {
	ID     string  `json:"id"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// DeathMsg notifies a player they died
type DeathMsg struct {
	KillerID   string `json:"kid,omitempty"`
	KillerName string `json:"kn,omitempty"`
	Cause      string `json:"c"`
}

// KillMsg is broadcast to all players in session
type KillMsg struct {
	KillerID   string `json:"kid,omitempty"`
	KillerName string `json:"kn,omitempty"`
	VictimID   string `json:"vid"`
	VictimName string `json:"vn"`
	Cause      string `json:"c"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// CheckMsg is sent by client to check if a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID     string `json:"sid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

type testServer struct {
	*httptest.Server
	wsURL string
	hub   *Hub
}

// startTestServer spins up an httptest.Server backed by a temp database
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	db := openTestDB(t)
	auth := newTestAuth(t, db)
	lb := newTestLeaderboard(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	sessions := NewSessionManager(ctx, DefaultGameConfig(), lb, 10)
	hub := NewHub(sessions, db, auth)
	go hub.Run(ctx)

	mux := SetupRoutes(hub, Routes{ClientDir: tmpDir, PublicURL: "http://arena.test/", Leaderboard: lb})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll()
		cancel()
	})

	return &testServer{
		Server: srv,
		wsURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		hub:    hub,
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads the next JSON message, skipping state frames.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
	t.Fatal("no JSON message among the state frames")
	return Envelope{}
}

// readState reads the next msgpack-encoded state frame, skipping JSON.
func readState(t *testing.T, conn *websocket.Conn) GameState {
	t.Helper()
	for i := 0; i < 50; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var gs GameState
		if err := msgpack.Unmarshal(raw, &gs); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return gs
	}
	t.Fatal("no state frame received")
	return GameState{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createAndJoin creates a session then joins it. Returns the session ID and
// the player's id.
func createAndJoin(t *testing.T, conn *websocket.Conn, name, sname string) (string, string) {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"name": name, "sname": sname})
	created := readEnvelope(t, conn)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s", created.T)
	}
	sid := dataMap(t, created)["sid"].(string)

	sendMsg(t, conn, MsgJoin, map[string]string{"name": name, "sid": sid})
	joined := readEnvelope(t, conn)
	if joined.T != MsgJoined {
		t.Fatalf("expected joined, got %s", joined.T)
	}
	welcome := readEnvelope(t, conn)
	if welcome.T != MsgWelcome {
		t.Fatalf("expected welcome, got %s", welcome.T)
	}
	return sid, dataMap(t, welcome)["id"].(string)
}

// ---------- UUID generation tests ----------

func TestGenerateUUIDFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := GenerateUUID()
		if !uuidRegex.MatchString(id) {
			t.Errorf("GenerateUUID() = %q, does not match UUID v4 format", id)
		}
	}
}

func TestGenerateUUIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true
	}
}

// ---------- Session manager ----------

func TestSessionIDIsUUID(t *testing.T) {
	sm := NewSessionManager(context.Background(), DefaultGameConfig(), nil, 1)
	defer sm.CloseAll()
	sess := sm.CreateSession("TestArena")
	if !uuidRegex.MatchString(sess.ID) {
		t.Errorf("session ID %q is not a valid UUID v4", sess.ID)
	}
}

func TestSessionLimit(t *testing.T) {
	sm := NewSessionManager(context.Background(), DefaultGameConfig(), nil, 1)
	defer sm.CloseAll()
	if sm.CreateSession("one") == nil {
		t.Fatal("expected first session")
	}
	if sm.CreateSession("two") != nil {
		t.Error("expected limit to reject a second session")
	}
}

func TestSessionReapEmpty(t *testing.T) {
	sm := NewSessionManager(context.Background(), DefaultGameConfig(), nil, 5)
	defer sm.CloseAll()
	empty := sm.CreateSession("empty")
	busy := sm.CreateSession("busy")
	busy.Game.AddPlayer("P")

	if n := sm.ReapEmpty(time.Hour); n != 0 {
		t.Errorf("expected nothing reaped inside the grace period, got %d", n)
	}
	if n := sm.ReapEmpty(0); n != 1 {
		t.Errorf("expected 1 reaped session, got %d", n)
	}
	if sm.GetSession(empty.ID) != nil {
		t.Error("empty session should be gone")
	}
	if sm.GetSession(busy.ID) == nil {
		t.Error("busy session should survive")
	}
}

// ---------- SPA routing ----------

func TestSPARoutingRoot(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingUUIDPath(t *testing.T) {
	srv := startTestServer(t)

	uuid := GenerateUUID()
	resp, err := http.Get(srv.URL + "/" + uuid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /%s status = %d, want 200", uuid, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<html>") {
		t.Errorf("UUID path should serve index.html, got %q", body)
	}
}

func TestSPARoutingNonUUIDPath(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get(srv.URL + "/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// Should fall through to file server (404)
	if resp.StatusCode != 404 {
		t.Errorf("GET /not-a-uuid status = %d, want 404", resp.StatusCode)
	}
}

// ---------- HTTP API ----------

func TestHealthz(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)
	createAndJoin(t, c, "Pilot", "Arena")

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["sessions"] != 1 || got["clients"] != 1 {
		t.Errorf("expected 1 session and 1 client, got %v", got)
	}
}

func TestQRCode(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)
	sid, _ := createAndJoin(t, c, "Pilot", "Arena")

	resp, err := http.Get(srv.URL + "/api/qr?sid=" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("expected PNG data")
	}

	missing, err := http.Get(srv.URL + "/api/qr?sid=" + GenerateUUID())
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != 404 {
		t.Errorf("expected 404 for unknown session, got %d", missing.StatusCode)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv := startTestServer(t)
	if _, err := srv.hub.db.CreatePlayer("bruce", "x"); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/leaderboard?sort=kills&limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var entries []LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Username != "bruce" {
		t.Errorf("expected bruce on the board, got %+v", entries)
	}
}

// ---------- Session protocol ----------

func TestCheckSessionExists(t *testing.T) {
	srv := startTestServer(t)

	c1 := dialWS(t, srv.wsURL)
	sid, _ := createAndJoin(t, c1, "Pilot", "Arena")

	c2 := dialWS(t, srv.wsURL)
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})

	checked := readEnvelope(t, c2)
	if checked.T != MsgChecked {
		t.Fatalf("expected checked, got %s", checked.T)
	}
	d := dataMap(t, checked)
	if d["exists"] != true {
		t.Error("expected exists=true")
	}
	if d["name"] != "Arena" {
		t.Errorf("expected name=Arena, got %v", d["name"])
	}
	if d["players"].(float64) != 1 {
		t.Errorf("expected 1 player, got %v", d["players"])
	}
}

func TestJoinNonExistentSession(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)

	sendMsg(t, c, MsgJoin, map[string]string{"name": "Lost", "sid": GenerateUUID()})

	errMsg := readEnvelope(t, c)
	if errMsg.T != MsgError {
		t.Fatalf("expected error, got %s", errMsg.T)
	}
}

func TestJoinReceivesWelcomeAndState(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)

	sendMsg(t, c, MsgCreate, map[string]string{"sname": "Reef"})
	sid := dataMap(t, readEnvelope(t, c))["sid"].(string)
	sendMsg(t, c, MsgJoin, map[string]string{"name": "Bruce", "sid": sid})
	readEnvelope(t, c) // joined
	welcome := readEnvelope(t, c)
	w := dataMap(t, welcome)
	if w["w"].(float64) != 1600 || w["h"].(float64) != 2000 {
		t.Errorf("expected 1600x2000 world, got %v", w)
	}
	pid := w["id"].(string)

	gs := readState(t, c)
	if len(gs.Players) != 1 || gs.Players[0].ID != pid || gs.Players[0].Name != "Bruce" {
		t.Errorf("expected state with our player, got %+v", gs.Players)
	}
	if gs.Tick == 0 {
		t.Error("expected a non-zero tick")
	}
}

func TestBinaryInputLaunchesShark(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)
	createAndJoin(t, c, "Gunner", "Range")

	// Aim at (800, 100) with the fire flag set
	input := []byte{binaryInputTag, 0x03, 0x20, 0x00, 0x64, 0x01}
	if err := c.WriteMessage(websocket.BinaryMessage, input); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 30; i++ {
		if gs := readState(t, c); len(gs.Sharks) > 0 {
			return
		}
	}
	t.Error("expected a shark in the state after firing")
}

func TestCreateAndLeaveSession(t *testing.T) {
	srv := startTestServer(t)

	c := dialWS(t, srv.wsURL)
	sid, _ := createAndJoin(t, c, "Solo", "TempBattle")

	sendMsg(t, c, MsgLeave, nil)
	time.Sleep(100 * time.Millisecond)

	c2 := dialWS(t, srv.wsURL)
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readEnvelope(t, c2))["exists"] != false {
		t.Error("session should be cleaned up after last player leaves")
	}
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	srv := startTestServer(t)

	c := dialWS(t, srv.wsURL)
	sid, _ := createAndJoin(t, c, "Ghost", "Haunt")

	c2 := dialWS(t, srv.wsURL)
	sendMsg(t, c2, MsgJoin, map[string]string{"name": "Stay", "sid": sid})
	readEnvelope(t, c2)
	readEnvelope(t, c2)

	c.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess := srv.hub.sessions.GetSession(sid)
		if sess != nil && sess.Game.PlayerCount() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("expected the disconnected player to be removed")
}

func TestListSessions(t *testing.T) {
	srv := startTestServer(t)

	c := dialWS(t, srv.wsURL)
	sendMsg(t, c, MsgList, nil)
	listMsg := readEnvelope(t, c)
	if listMsg.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", listMsg.T)
	}
	raw, _ := json.Marshal(listMsg.Data)
	var sessions []SessionInfo
	json.Unmarshal(raw, &sessions)
	if len(sessions) != 0 {
		t.Errorf("expected 0 sessions, got %d", len(sessions))
	}

	c2 := dialWS(t, srv.wsURL)
	createAndJoin(t, c2, "P1", "Arena1")

	sendMsg(t, c, MsgList, nil)
	raw2, _ := json.Marshal(readEnvelope(t, c).Data)
	var sessions2 []SessionInfo
	json.Unmarshal(raw2, &sessions2)
	if len(sessions2) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions2))
	}
	if sessions2[0].Name != "Arena1" || sessions2[0].Players != 1 {
		t.Errorf("unexpected session info %+v", sessions2[0])
	}
}

// ---------- Accounts ----------

func TestRegisterThenProfile(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)

	sendMsg(t, c, MsgProfile, nil)
	if env := readEnvelope(t, c); env.T != MsgError {
		t.Errorf("expected error before auth, got %s", env.T)
	}

	sendMsg(t, c, MsgRegister, map[string]string{"username": "squirt", "password": "turtle"})
	ok := readEnvelope(t, c)
	if ok.T != MsgAuthOK {
		t.Fatalf("expected auth_ok, got %s (%v)", ok.T, ok.Data)
	}
	token := dataMap(t, ok)["token"].(string)

	sendMsg(t, c, MsgProfile, nil)
	prof := readEnvelope(t, c)
	if prof.T != MsgProfileData || dataMap(t, prof)["username"] != "squirt" {
		t.Errorf("expected profile for squirt, got %s %v", prof.T, prof.Data)
	}

	// A fresh connection resumes with the token
	c2 := dialWS(t, srv.wsURL)
	sendMsg(t, c2, MsgAuth, map[string]string{"token": token})
	if env := readEnvelope(t, c2); env.T != MsgAuthOK {
		t.Errorf("expected auth_ok on resume, got %s", env.T)
	}
}

func TestRegisterDuplicateReportsError(t *testing.T) {
	srv := startTestServer(t)
	c := dialWS(t, srv.wsURL)

	sendMsg(t, c, MsgRegister, map[string]string{"username": "peach", "password": "starfish"})
	readEnvelope(t, c)
	sendMsg(t, c, MsgRegister, map[string]string{"username": "peach", "password": "starfish"})
	env := readEnvelope(t, c)
	if env.T != MsgError || dataMap(t, env)["msg"] != ErrUsernameTaken.Error() {
		t.Errorf("expected username taken error, got %s %v", env.T, env.Data)
	}
}

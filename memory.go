// Concentration
//
// Sixteen face-down cards hold eight pairs. Clicking a card turns it over;
// turning over a second card counts as an attempt. A matching pair stays
// face up, a mismatched pair is briefly shown and then turned back over.
// The game ends once all eight pairs are found.
//
// Features:
// - One game per ID: /memory/:gameid and /memory/:gameid/ws
// - /memory redirects to the player's current game, or a new one
// - Every tab attached to a game sees the same board
// - Players identified by cookie (playerID)
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - Mismatched pairs are sent to clients along with the cleared board, so the
//   browser can keep them visible for --reveal-delay
// - In-browser QR link to share the current game, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/concentration/games/memory"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	memoryPath       = "/memory"
	gameIDLength     = 8
	gameIDLetters    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	playerCookieName = "concentration_id"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "flip", "reset"
	Position *int   `json:"position,omitempty"` // flip
}

// SessionInfoMessage is sent immediately on connect.
type SessionInfoMessage struct {
	Type          string `json:"type"` // "session_info"
	GameID        string `json:"game_id"`
	RevealDelayMS int64  `json:"reveal_delay_ms"`
}

// Reveal carries a pair that was just turned back over.
type Reveal struct {
	Positions [2]int `json:"positions"`
	Values    [2]int `json:"values"`
}

// BoardMessage broadcasts the current board to every attached client.
type BoardMessage struct {
	Type string `json:"type"` // "board"
	memory.Snapshot
	Reveal *Reveal `json:"reveal,omitempty"`
}

// GameOverMessage is broadcast once the last pair is found.
type GameOverMessage struct {
	Type     string `json:"type"` // "game_over"
	Attempts int    `json:"attempts"`
	Message  string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type flipRequest struct {
	client   *Client
	position int
}

// Hub owns one game and serializes every event that touches it.
type Hub struct {
	id      string
	game    *memory.Game
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	flips    chan flipRequest
	resets   chan *Client
	done     chan struct{}

	mu sync.RWMutex

	lastActive time.Time
	closed     bool
}

func newHub(gameID string, game *memory.Game) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		game:       game,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		flips:      make(chan flipRequest),
		resets:     make(chan *Client),
		done:       make(chan struct{}),
		lastActive: now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.closed {
				h.mu.Unlock()
				close(c.send)
				_ = c.conn.Close()
				continue
			}
			h.lastActive = time.Now()
			h.clients[c] = true

			h.sendLocked(c, SessionInfoMessage{
				Type:          "session_info",
				GameID:        h.id,
				RevealDelayMS: cfg.revealDelay.Milliseconds(),
			})
			h.sendLocked(c, h.boardLocked(nil))
			if h.game.Over() {
				h.sendLocked(c, h.gameOverLocked())
			}
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case fr := <-h.flips:
			h.handleFlip(cfg, fr)

		case c := <-h.resets:
			h.handleReset(cfg, c)
		}
	}
}

// sendLocked queues msg for c, dropping the client if its buffer is full.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

func (h *Hub) boardLocked(reveal *Reveal) BoardMessage {
	return BoardMessage{
		Type:     "board",
		Snapshot: h.game.Snapshot(),
		Reveal:   reveal,
	}
}

func (h *Hub) gameOverLocked() GameOverMessage {
	attempts := h.game.Attempts()

	return GameOverMessage{
		Type:     "game_over",
		Attempts: attempts,
		Message:  "Congratulations! You completed the game in " + pluralize(attempts, "attempt") + "!",
	}
}

// handleFlip applies a flip and tells every client about the result.
func (h *Hub) handleFlip(cfg *Config, fr flipRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	res := h.game.Flip(fr.position)

	var reveal *Reveal

	switch res.Outcome {
	case memory.Ignored:
		return
	case memory.Matched:
		logf(cfg, "GAMES: Pair of %ds found at %d and %d in %s", res.Values[0]+1, res.Pair[0], res.Pair[1], h.id)
	case memory.Mismatched:
		reveal = &Reveal{
			Positions: res.Pair,
			Values:    res.Values,
		}
	}

	h.broadcastLocked(h.boardLocked(reveal))

	if res.Outcome == memory.Matched && h.game.Over() {
		logf(cfg, "GAMES: Game %s completed in %s", h.id, pluralize(h.game.Attempts(), "attempt"))
		h.broadcastLocked(h.gameOverLocked())
	}
}

func (h *Hub) handleReset(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()
	h.game.Reset()

	logf(cfg, "GAMES: Game %s reset", h.id)

	h.broadcastLocked(h.boardLocked(nil))
}

func (h *Hub) snapshot() memory.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.game.Snapshot()
}

// closeAll disconnects all clients of this hub and stops its loop (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.done)

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func getOrSetPlayerID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated game.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	lastGame    map[string]string // playerID -> gameID
	idleTimeout time.Duration
	newGame     func() *memory.Game
}

func newGameManager(ctx context.Context, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		lastGame:    make(map[string]string),
		idleTimeout: idleTimeout,
		newGame:     memory.New,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, gm.newGame())
	gm.hubs[gameID] = hub
	go hub.run(cfg)

	logf(cfg, "GAMES: Started game %s", gameID)

	return hub
}

func (gm *GameManager) lookupHub(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

func (gm *GameManager) rememberGame(playerID, gameID string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	gm.lastGame[playerID] = gameID
}

// currentGame returns the player's last game, if it is still running.
func (gm *GameManager) currentGame(playerID string) (string, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	gameID, ok := gm.lastGame[playerID]
	if !ok {
		return "", false
	}

	if _, alive := gm.hubs[gameID]; !alive {
		delete(gm.lastGame, playerID)
		return "", false
	}

	return gameID, true
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const maxByte = byte(255 - (256 % len(gameIDLetters)))

	for {
		out := make([]byte, 0, gameIDLength)
		buf := make([]byte, gameIDLength*2)

		for len(out) < gameIDLength {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}

			for _, b := range buf {
				if b <= maxByte && len(out) < gameIDLength {
					out = append(out, gameIDLetters[int(b)%len(gameIDLetters)])
				}
			}
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

func validGameID(id string) bool {
	if len(id) != gameIDLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(gameIDLetters, rune(id[i])) {
			return false
		}
	}

	return true
}

// reap removes hubs that have been idle since before cutoff and returns how many it removed.
func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped++
		}
	}

	for playerID, gameID := range gm.lastGame {
		if _, ok := gm.hubs[gameID]; !ok {
			delete(gm.lastGame, playerID)
		}
	}

	return reaped
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(cfg, w, r)

		hub := gm.getHub(cfg, gameID)
		gm.rememberGame(playerID, gameID)

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			errs <- err
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: Player connected to %s from %s", gameID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "flip":
			if msg.Position == nil {
				continue
			}
			select {
			case h.flips <- flipRequest{client: c, position: *msg.Position}:
			case <-h.done:
				return
			}
		case "reset":
			select {
			case h.resets <- c:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveState returns the board of a running game as JSON.
func serveState(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, ok := gm.lookupHub(ps.ByName("gameid"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(hub.snapshot()); err != nil {
			errs <- err
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("gameid")) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func getIndexHandler(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.NotFound(w, r)
			return
		}

		data, err := assets.ReadFile("assets/memory/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		gm.rememberGame(getOrSetPlayerID(cfg, w, r), gameID)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectGame handles GET /path by sending the player back to their running
// game, or, with ?new or without one, to a freshly allocated game ID.
func redirectGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(cfg, w, r)

		if !r.URL.Query().Has("new") {
			if gameID, ok := gm.currentGame(playerID); ok {
				http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
				return
			}
		}

		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s%s/%s", cfg.prefix, path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerMemoryGame sets up routes so that:
//   - $path                  → redirects to the player's game, or a new one
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/state    → JSON board for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerMemoryGame(cfg *Config, path string, gm *GameManager, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectGame(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, gm, errs))
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm, errs))
	mux.GET(cfg.prefix+path+"/:gameid/state", serveState(cfg, gm, errs))
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg, errs))
}

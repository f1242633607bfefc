package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/internal/ctf"
	"github.com/mcdev12/gatetimer/go/internal/game"
	"github.com/mcdev12/gatetimer/go/internal/race"
	"github.com/rs/zerolog/log"
)

// Source provides the state streamed to viewers.
type Source interface {
	Snapshot() game.Snapshot
}

// Config holds the live feed settings.
type Config struct {
	Interval        time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default live feed configuration.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Second,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// the UI is served from the same box or opened from a file
			return true
		},
	}
}

// Stats describes the connected viewers.
type Stats struct {
	Viewers int `json:"viewers"`
}

type ctfFrame struct {
	Type string        `json:"type"`
	Ctf  *ctf.Snapshot `json:"ctf"`
}

type playersFrame struct {
	Type    string            `json:"type"`
	Players []race.PlayerView `json:"players"`
}

// Broadcaster streams the game state to every connected viewer at a fixed
// interval. Each viewer id has at most one feed.
type Broadcaster struct {
	source   Source
	clock    clockwork.Clock
	config   Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	viewers map[string]*viewer
}

type viewer struct {
	id          string
	conn        *websocket.Conn
	cancel      context.CancelFunc
	connectedAt time.Time
}

// NewBroadcaster creates a broadcaster reading from source.
func NewBroadcaster(source Source, clock clockwork.Clock, config Config) *Broadcaster {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultConfig().PingInterval
	}
	return &Broadcaster{
		source: source,
		clock:  clock,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		viewers: make(map[string]*viewer),
	}
}

// Serve upgrades the request and starts the feed for viewer id, replacing
// any feed already running under that id.
func (b *Broadcaster) Serve(w http.ResponseWriter, r *http.Request, id string) error {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &viewer{
		id:          id,
		conn:        conn,
		cancel:      cancel,
		connectedAt: b.clock.Now(),
	}

	b.mu.Lock()
	if old, ok := b.viewers[id]; ok {
		old.cancel()
		old.conn.Close()
		log.Info().Str("viewer", id).Msg("viewer reconnected, replacing feed")
	}
	b.viewers[id] = v
	total := len(b.viewers)
	b.mu.Unlock()

	go b.writePump(ctx, v)
	go b.readPump(v)

	log.Info().Str("viewer", id).Int("viewers", total).Msg("viewer connected")
	return nil
}

// Stats returns the number of active viewers.
func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Viewers: len(b.viewers)}
}

// Close ends every feed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, v := range b.viewers {
		v.cancel()
		v.conn.Close()
		delete(b.viewers, id)
	}
	log.Info().Msg("live feed closed")
}

// drop removes v if it is still the current feed for its id.
func (b *Broadcaster) drop(v *viewer) {
	v.cancel()
	v.conn.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.viewers[v.id] == v {
		delete(b.viewers, v.id)
		log.Info().
			Str("viewer", v.id).
			Dur("connected_for", b.clock.Since(v.connectedAt)).
			Msg("viewer disconnected")
	}
}

// frame renders the snapshot for the active mode. SPECTRUM has no feed.
func frame(snap game.Snapshot) ([]byte, bool, error) {
	var msg any
	switch snap.Mode {
	case game.ModeCTF:
		msg = ctfFrame{Type: "ctf", Ctf: snap.Ctf}
	case game.ModeRace:
		players := snap.Players
		if players == nil {
			players = []race.PlayerView{}
		}
		msg = playersFrame{Type: "players", Players: players}
	default:
		return nil, false, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// writePump is the only writer on the connection.
func (b *Broadcaster) writePump(ctx context.Context, v *viewer) {
	ticker := b.clock.NewTicker(b.config.Interval)
	ping := b.clock.NewTicker(b.config.PingInterval)
	defer func() {
		ticker.Stop()
		ping.Stop()
		b.drop(v)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.Chan():
			data, ok, err := frame(b.source.Snapshot())
			if err != nil {
				log.Error().Err(err).Str("viewer", v.id).Msg("failed to encode live frame")
				continue
			}
			if !ok {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			v.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("viewer", v.id).Msg("failed to write live frame")
				return
			}

		case <-ping.Chan():
			v.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("viewer", v.id).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump discards viewer messages and detects disconnects.
func (b *Broadcaster) readPump(v *viewer) {
	defer b.drop(v)

	v.conn.SetReadLimit(b.config.MaxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("viewer", v.id).Msg("unexpected websocket close")
			}
			return
		}
		v.conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
	}
}

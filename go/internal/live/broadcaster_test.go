package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/internal/ctf"
	"github.com/mcdev12/gatetimer/go/internal/game"
	"github.com/mcdev12/gatetimer/go/internal/race"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu   sync.Mutex
	snap game.Snapshot
}

func (s *fakeSource) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeSource) set(snap game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

type harness struct {
	clock       *clockwork.FakeClock
	source      *fakeSource
	broadcaster *Broadcaster
	server      *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  clockwork.NewFakeClock(),
		source: &fakeSource{snap: game.Snapshot{Mode: game.ModeRace}},
	}
	h.broadcaster = NewBroadcaster(h.source, h.clock, DefaultConfig())

	mux := http.NewServeMux()
	NewHandler(h.broadcaster).RegisterRoutes(mux)
	h.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		h.broadcaster.Close()
		h.server.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// tick waits for every feed's tickers and fires one interval.
func (h *harness) tick(t *testing.T, viewers int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 2*viewers))
	h.clock.Advance(time.Second)
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBroadcasterPushesPlayersInRace(t *testing.T) {
	h := newHarness(t)
	h.source.set(game.Snapshot{
		Mode: game.ModeRace,
		Players: []race.PlayerView{
			{Name: "alice", Address: "10.0.0.5", Laps: []race.Lap{{ID: 1, DurationMs: 15000}}},
		},
	})

	conn := h.dial(t, "/ws/screen")
	h.tick(t, 1)

	msg := readFrame(t, conn)
	assert.JSONEq(t, `"players"`, string(msg["type"]))

	var players []race.PlayerView
	require.NoError(t, json.Unmarshal(msg["players"], &players))
	require.Len(t, players, 1)
	assert.Equal(t, "alice", players[0].Name)
	assert.Equal(t, int64(15000), players[0].Laps[0].DurationMs)
}

func TestBroadcasterPushesEmptyPlayerList(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "/ws/screen")
	h.tick(t, 1)

	msg := readFrame(t, conn)
	assert.JSONEq(t, `[]`, string(msg["players"]))
}

func TestBroadcasterPushesCtfSnapshot(t *testing.T) {
	h := newHarness(t)
	h.source.set(game.Snapshot{
		Mode: game.ModeCTF,
		Ctf: &ctf.Snapshot{
			TeamNames:  []string{"Red", "Blue"},
			TimeLeftMs: 42000,
			Nodes:      []ctf.NodeView{{Address: "10.0.0.7", Current: 1, CapturedMs: []int64{0, 500}}},
		},
	})

	conn := h.dial(t, "/ws?viewer=tv")
	h.tick(t, 1)

	msg := readFrame(t, conn)
	assert.JSONEq(t, `"ctf"`, string(msg["type"]))

	var snap ctf.Snapshot
	require.NoError(t, json.Unmarshal(msg["ctf"], &snap))
	assert.Equal(t, int64(42000), snap.TimeLeftMs)
	assert.Equal(t, []string{"Red", "Blue"}, snap.TeamNames)
}

func TestBroadcasterSendsNothingInSpectrum(t *testing.T) {
	h := newHarness(t)
	h.source.set(game.Snapshot{Mode: game.ModeSpectrum})

	conn := h.dial(t, "/ws/screen")
	h.tick(t, 1)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestBroadcasterReconnectReplacesFeed(t *testing.T) {
	h := newHarness(t)

	first := h.dial(t, "/ws/screen")
	assert.Eventually(t, func() bool { return h.broadcaster.Stats().Viewers == 1 }, time.Second, 10*time.Millisecond)

	second := h.dial(t, "/ws/screen")

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err, "old socket is closed")

	assert.Eventually(t, func() bool { return h.broadcaster.Stats().Viewers == 1 }, time.Second, 10*time.Millisecond)

	h.tick(t, 1)
	msg := readFrame(t, second)
	assert.JSONEq(t, `"players"`, string(msg["type"]))
}

func TestBroadcasterTracksViewers(t *testing.T) {
	h := newHarness(t)

	a := h.dial(t, "/ws/a")
	h.dial(t, "/ws/b")
	assert.Eventually(t, func() bool { return h.broadcaster.Stats().Viewers == 2 }, time.Second, 10*time.Millisecond)

	a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	a.Close()
	assert.Eventually(t, func() bool { return h.broadcaster.Stats().Viewers == 1 }, time.Second, 10*time.Millisecond)

	h.broadcaster.Close()
	assert.Equal(t, 0, h.broadcaster.Stats().Viewers)
}

func TestFrame(t *testing.T) {
	data, ok, err := frame(game.Snapshot{Mode: game.ModeRace})
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"players","players":[]}`, string(data))

	_, ok, err = frame(game.Snapshot{Mode: game.ModeSpectrum})
	require.NoError(t, err)
	assert.False(t, ok)
}

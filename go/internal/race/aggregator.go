package race

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/settings"
	"github.com/rs/zerolog/log"
)

// ClearLapsPath is the node endpoint that wipes its lap list.
const ClearLapsPath = "/api/v1/clear_laps"

type clearLapsRequest struct {
	Offset int64 `json:"offset"`
}

// Aggregator tracks laps per player. There is no global running flag:
// laps are accepted whenever a registered player reports one.
// Not safe for concurrent use; the game coordinator serializes access.
type Aggregator struct {
	clock   clockwork.Clock
	pusher  nodeclient.Pusher
	maxLaps int

	players []*Player
	index   map[string]int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMaxLaps overrides the per-player lap cap.
func WithMaxLaps(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxLaps = n
		}
	}
}

// NewAggregator creates an empty race.
func NewAggregator(pusher nodeclient.Pusher, clock clockwork.Clock, opts ...Option) *Aggregator {
	a := &Aggregator{
		clock:   clock,
		pusher:  pusher,
		maxLaps: DefaultMaxLaps,
		index:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddPlayer registers a player. It returns false if address is already present.
func (a *Aggregator) AddPlayer(address, name string) bool {
	if _, ok := a.index[address]; ok {
		return false
	}
	a.index[address] = len(a.players)
	a.players = append(a.players, &Player{Address: address, Name: name})

	log.Info().Str("address", address).Str("player", name).Msg("player added")
	return true
}

// RecordLap appends a lap to the reporting player, evicting the oldest lap past the cap.
func (a *Aggregator) RecordLap(report LapReport) (Lap, error) {
	i, ok := a.index[report.Address]
	if !ok {
		return Lap{}, &PlayerNotFoundError{Address: report.Address, Name: report.Player}
	}
	p := a.players[i]

	lap := Lap{
		ID:         report.ID,
		DurationMs: report.DurationMs,
		RSSI:       report.RSSI,
	}
	if report.AbsoluteTimeMs != nil {
		lap.AbsoluteTimeMs = *report.AbsoluteTimeMs
	} else {
		lap.AbsoluteTimeMs = a.clock.Now().UnixMilli()
	}

	p.laps = append(p.laps, lap)
	if len(p.laps) > a.maxLaps {
		p.laps = p.laps[len(p.laps)-a.maxLaps:]
	}
	return lap, nil
}

// ResetAll tells every node to clear its laps and hold off detection for
// delay, then clears local laps. Pushes are fire-and-forget.
func (a *Aggregator) ResetAll(delay time.Duration) {
	body := clearLapsRequest{Offset: delay.Milliseconds()}
	for _, p := range a.players {
		a.pusher.Push(nodeclient.Command{
			Address: p.Address,
			Method:  http.MethodPost,
			Path:    ClearLapsPath,
			Body:    body,
		})
	}

	start := a.clock.Now().Add(delay)
	for _, p := range a.players {
		p.laps = nil
		p.StartedAt = start
	}

	log.Info().Int("players", len(a.players)).Dur("delay", delay).Msg("race reset")
}

// OnConfigChange is reserved for projecting config onto players.
func (a *Aggregator) OnConfigChange(cfg settings.Config) {}

// Players returns the read model in registration order.
func (a *Aggregator) Players() []PlayerView {
	out := make([]PlayerView, 0, len(a.players))
	for _, p := range a.players {
		out = append(out, p.view())
	}
	return out
}

// Player returns the read model of one player.
func (a *Aggregator) Player(address string) (PlayerView, bool) {
	i, ok := a.index[address]
	if !ok {
		return PlayerView{}, false
	}
	return a.players[i].view(), true
}

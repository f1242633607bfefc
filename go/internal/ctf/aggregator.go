package ctf

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/nodes"
	"github.com/mcdev12/gatetimer/go/internal/settings"
	"github.com/rs/zerolog/log"
)

// Node endpoints driven by the session.
const (
	StartPath = "/api/v1/ctf/start"
	StopPath  = "/api/v1/ctf/stop"
)

type startRequest struct {
	Duration int64 `json:"duration"`
}

// Aggregator holds the capture-the-flag session: the team roster snapshot,
// the participating nodes and the session clock.
// Not safe for concurrent use; the game coordinator serializes access.
type Aggregator struct {
	clock  clockwork.Clock
	pusher nodeclient.Pusher

	teamNames []string
	nodes     []*Node
	index     map[string]int
	startedAt time.Time
	duration  time.Duration
}

// NewAggregator creates an idle session with an empty roster.
func NewAggregator(pusher nodeclient.Pusher, clock clockwork.Clock) *Aggregator {
	return &Aggregator{
		clock:     clock,
		pusher:    pusher,
		teamNames: []string{},
		index:     make(map[string]int),
	}
}

// OnConfigChange rebuilds the roster from the active slots' names and drops
// every node so they re-register under the new roster.
func (a *Aggregator) OnConfigChange(cfg settings.Config) {
	names := []string{}
	for _, i := range cfg.ActiveSlots() {
		names = append(names, cfg.Slots[i].Name)
	}
	a.teamNames = names
	a.nodes = nil
	a.index = make(map[string]int)

	log.Info().Strs("teams", names).Msg("ctf roster updated")
}

// TeamNames returns a copy of the roster.
func (a *Aggregator) TeamNames() []string {
	out := make([]string, len(a.teamNames))
	copy(out, a.teamNames)
	return out
}

// RegisterNode adds n to the session. It returns false if already present.
func (a *Aggregator) RegisterNode(n *nodes.Node) bool {
	if _, ok := a.index[n.Address]; ok {
		return false
	}
	cn := &Node{node: n}
	cn.reset(len(a.teamNames))
	a.index[n.Address] = len(a.nodes)
	a.nodes = append(a.nodes, cn)

	log.Info().Str("address", n.Address).Str("name", n.Name).Msg("ctf node registered")
	return true
}

// Start opens a session of the given length and tells every node to start
// its countdown. Each node receives the time remaining when its push is
// actually sent, so all countdowns end together.
func (a *Aggregator) Start(duration time.Duration) {
	start := a.clock.Now()
	a.startedAt = start
	a.duration = duration

	clock := a.clock
	for _, n := range a.nodes {
		n.reset(len(a.teamNames))
		a.pusher.Push(nodeclient.Command{
			Address: n.Address(),
			Method:  http.MethodPost,
			Path:    StartPath,
			Lazy: func() any {
				left := duration - clock.Since(start)
				if left < 0 {
					left = 0
				}
				return startRequest{Duration: left.Milliseconds()}
			},
		})
	}

	log.Info().Dur("duration", duration).Int("nodes", len(a.nodes)).Msg("ctf session started")
}

// Stop ends the session and tells every node to stop.
func (a *Aggregator) Stop() {
	a.startedAt = time.Time{}
	a.duration = 0

	for _, n := range a.nodes {
		a.pusher.Push(nodeclient.Command{
			Address: n.Address(),
			Method:  http.MethodGet,
			Path:    StopPath,
		})
	}

	log.Info().Int("nodes", len(a.nodes)).Msg("ctf session stopped")
}

// IsRunning reports whether a session is open and its time is not up.
func (a *Aggregator) IsRunning() bool {
	return a.TimeLeft() > 0
}

// TimeLeft returns the remaining session time, zero when not running.
func (a *Aggregator) TimeLeft() time.Duration {
	if a.startedAt.IsZero() {
		return 0
	}
	left := a.duration - a.clock.Since(a.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// ApplyRemoteUpdate accepts a node's capture state. Roster mismatches and
// unknown nodes are rejected without touching any state; reports outside a
// running session are accepted but ignored.
func (a *Aggregator) ApplyRemoteUpdate(u Update) error {
	if !sameRoster(u.TeamNames, a.teamNames) {
		return &ConfigMismatchError{Address: u.Address, Name: u.Name}
	}

	i, ok := a.index[u.Address]
	if !ok {
		return &NodeNotFoundError{Address: u.Address, Name: u.Name}
	}

	if !a.IsRunning() {
		return nil
	}

	n := a.nodes[i]
	n.Current = u.Current
	n.CapturedMs = append([]int64(nil), u.CapturedMs...)
	return nil
}

// Snapshot returns the read model of the session.
func (a *Aggregator) Snapshot() Snapshot {
	views := make([]NodeView, 0, len(a.nodes))
	for _, n := range a.nodes {
		views = append(views, NodeView{
			Address:    n.node.Address,
			Name:       n.node.Name,
			Current:    n.Current,
			CapturedMs: append([]int64{}, n.CapturedMs...),
		})
	}
	return Snapshot{
		TeamNames:  a.TeamNames(),
		TimeLeftMs: a.TimeLeft().Milliseconds(),
		Nodes:      views,
	}
}

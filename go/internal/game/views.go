package game

import (
	"github.com/mcdev12/gatetimer/go/internal/ctf"
	"github.com/mcdev12/gatetimer/go/internal/race"
)

// NodeStatus is a registry entry as listed by /api/v1/nodes.
type NodeStatus struct {
	Address  string `json:"ipaddr"`
	Name     string `json:"name"`
	LastSeen int64  `json:"last_seen"`
	Online   bool   `json:"online"`
}

// Snapshot is the live read model of the active game.
// Only the part matching Mode is filled in.
type Snapshot struct {
	Mode    Mode
	Ctf     *ctf.Snapshot
	Players []race.PlayerView
}

// Config returns the flat configuration.
func (c *Coordinator) Config() map[string]any {
	return c.store.Flat()
}

// Nodes lists the registry in order with liveness.
func (c *Coordinator) Nodes() []NodeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := c.registry.All()
	out := make([]NodeStatus, 0, len(all))
	for _, n := range all {
		out = append(out, NodeStatus{
			Address:  n.Address,
			Name:     n.Name,
			LastSeen: n.LastSeenAt.UnixMilli(),
			Online:   c.registry.Online(n, c.staleAfter),
		})
	}
	return out
}

// CtfSnapshot returns the capture-the-flag read model.
func (c *Coordinator) CtfSnapshot() ctf.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctf.Snapshot()
}

// RaceSnapshot returns every player with their laps.
func (c *Coordinator) RaceSnapshot() []race.PlayerView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.race.Players()
}

// Snapshot returns the read model of whichever game is active.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{Mode: c.mode()}
	switch snap.Mode {
	case ModeCTF:
		s := c.ctf.Snapshot()
		snap.Ctf = &s
	case ModeRace:
		snap.Players = c.race.Players()
	}
	return snap
}

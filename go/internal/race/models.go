package race

import "time"

// DefaultMaxLaps caps the laps kept per player.
const DefaultMaxLaps = 100

// Lap is one completed pass through the gate.
type Lap struct {
	ID             int   `json:"id"`
	DurationMs     int64 `json:"duration"`
	RSSI           int   `json:"rssi"`
	AbsoluteTimeMs int64 `json:"abs_time"`
}

// LapReport is what a node posts to /api/v1/player/lap.
type LapReport struct {
	Address        string `json:"ipv4"`
	Player         string `json:"player"`
	ID             int    `json:"id"`
	DurationMs     int64  `json:"duration"`
	RSSI           int    `json:"rssi"`
	AbsoluteTimeMs *int64 `json:"abs_time,omitempty"`
}

// Player is the race state of one node's pilot.
type Player struct {
	Address   string
	Name      string
	StartedAt time.Time
	laps      []Lap
}

// PlayerView is the read model pushed to viewers.
type PlayerView struct {
	Name        string `json:"name"`
	Address     string `json:"ipaddr"`
	RaceStartMs int64  `json:"race_start_ms"`
	Laps        []Lap  `json:"laps"`
}

func (p *Player) view() PlayerView {
	laps := make([]Lap, len(p.laps))
	copy(laps, p.laps)

	var start int64
	if !p.StartedAt.IsZero() {
		start = p.StartedAt.UnixMilli()
	}
	return PlayerView{
		Name:        p.Name,
		Address:     p.Address,
		RaceStartMs: start,
		Laps:        laps,
	}
}

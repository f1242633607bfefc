package ctf

import (
	"strings"

	"github.com/mcdev12/gatetimer/go/internal/nodes"
)

// Node is a gate in a capture-the-flag session. Current is the index of the
// team holding the zone, -1 when nobody does. CapturedMs is aligned with the
// session's team names.
type Node struct {
	node       *nodes.Node
	Current    int
	CapturedMs []int64
}

func (n *Node) reset(teams int) {
	n.Current = -1
	n.CapturedMs = make([]int64, teams)
}

// Address returns the address of the underlying gate.
func (n *Node) Address() string {
	return n.node.Address
}

// Update is a remote node's view of its own capture state.
type Update struct {
	Address    string
	Name       string
	TeamNames  []string
	Current    int
	CapturedMs []int64
}

// NodeReport is one node entry of the /api/v1/ctf/update body.
type NodeReport struct {
	Address    string  `json:"ipv4"`
	Name       string  `json:"name"`
	Current    int     `json:"current"`
	CapturedMs []int64 `json:"captured_ms"`
}

// Report is the "ctf" object of the /api/v1/ctf/update body.
type Report struct {
	TeamNames []string     `json:"team_names"`
	Nodes     []NodeReport `json:"nodes"`
}

// Update extracts the reporting node's entry, which nodes send first.
func (r Report) Update() (Update, error) {
	if len(r.Nodes) == 0 {
		return Update{}, ErrEmptyReport
	}
	n := r.Nodes[0]
	return Update{
		Address:    n.Address,
		Name:       n.Name,
		TeamNames:  r.TeamNames,
		Current:    n.Current,
		CapturedMs: n.CapturedMs,
	}, nil
}

// Snapshot is the read model pushed to viewers.
type Snapshot struct {
	TeamNames  []string   `json:"team_names"`
	TimeLeftMs int64      `json:"time_left_ms"`
	Nodes      []NodeView `json:"nodes"`
}

// NodeView is one node inside a Snapshot.
type NodeView struct {
	Address    string  `json:"ipv4"`
	Name       string  `json:"name"`
	Current    int     `json:"current"`
	CapturedMs []int64 `json:"captured_ms"`
}

func sameRoster(a, b []string) bool {
	return strings.Join(a, "|") == strings.Join(b, "|")
}

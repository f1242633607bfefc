package ctf

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/nodes"
	"github.com/mcdev12/gatetimer/go/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	mu   sync.Mutex
	cmds []nodeclient.Command
}

func (r *recordingPusher) Push(cmd nodeclient.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
}

// redBlue returns a config whose only active slots are named Red and Blue.
func redBlue() settings.Config {
	cfg := settings.Default()
	for i := range cfg.Slots {
		cfg.Slots[i].Freq = 0
	}
	cfg.Slots[0].Freq = 5658
	cfg.Slots[0].Name = "Red"
	cfg.Slots[3].Freq = 5732
	cfg.Slots[3].Name = "Blue"
	return cfg
}

func newSession(t *testing.T) (*Aggregator, *clockwork.FakeClock, *recordingPusher, *nodes.Registry) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	pusher := &recordingPusher{}
	a := NewAggregator(pusher, clock)
	a.OnConfigChange(redBlue())
	return a, clock, pusher, nodes.NewRegistry(clock)
}

func TestOnConfigChangeUsesActiveSlotNames(t *testing.T) {
	a, _, _, reg := newSession(t)
	n, _ := reg.Upsert("10.0.0.1", "gate")
	require.True(t, a.RegisterNode(n))

	assert.Equal(t, []string{"Red", "Blue"}, a.TeamNames())

	a.OnConfigChange(redBlue())
	assert.Empty(t, a.Snapshot().Nodes, "roster change drops registrations")
}

func TestRegisterNodeIsIdempotent(t *testing.T) {
	a, _, _, reg := newSession(t)
	n, _ := reg.Upsert("10.0.0.1", "gate")

	assert.True(t, a.RegisterNode(n))
	assert.False(t, a.RegisterNode(n))

	snap := a.Snapshot()
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, -1, snap.Nodes[0].Current)
	assert.Equal(t, []int64{0, 0}, snap.Nodes[0].CapturedMs)
}

func TestSessionTiming(t *testing.T) {
	a, clock, pusher, reg := newSession(t)
	for _, addr := range []string{"10.0.0.1", "10.0.0.2"} {
		n, _ := reg.Upsert(addr, "")
		a.RegisterNode(n)
	}

	a.Start(60 * time.Second)
	assert.True(t, a.IsRunning())
	assert.Equal(t, int64(60000), a.Snapshot().TimeLeftMs)

	require.Len(t, pusher.cmds, 2)
	for _, cmd := range pusher.cmds {
		assert.Equal(t, StartPath, cmd.Path)
	}

	clock.Advance(61 * time.Second)
	assert.False(t, a.IsRunning())
	assert.Equal(t, int64(0), a.Snapshot().TimeLeftMs)
}

func TestStartPushCarriesRemainingTimeAtSend(t *testing.T) {
	a, clock, pusher, reg := newSession(t)
	n, _ := reg.Upsert("10.0.0.1", "")
	a.RegisterNode(n)

	a.Start(60 * time.Second)
	require.Len(t, pusher.cmds, 1)

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, startRequest{Duration: 58500}, pusher.cmds[0].Lazy())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, startRequest{Duration: 0}, pusher.cmds[0].Lazy())
}

func TestStopClearsSessionAndNotifies(t *testing.T) {
	a, _, pusher, reg := newSession(t)
	n, _ := reg.Upsert("10.0.0.1", "")
	a.RegisterNode(n)
	a.Start(time.Minute)

	a.Stop()

	assert.False(t, a.IsRunning())
	require.Len(t, pusher.cmds, 2)
	assert.Equal(t, StopPath, pusher.cmds[1].Path)
	assert.Equal(t, "10.0.0.1", pusher.cmds[1].Address)
}

func TestApplyRemoteUpdate(t *testing.T) {
	update := func(names ...string) Update {
		return Update{
			Address:    "10.0.0.1",
			Name:       "gate",
			TeamNames:  names,
			Current:    1,
			CapturedMs: []int64{1200, 3400},
		}
	}

	t.Run("roster mismatch never mutates", func(t *testing.T) {
		a, _, _, reg := newSession(t)
		n, _ := reg.Upsert("10.0.0.1", "gate")
		a.RegisterNode(n)
		a.Start(time.Minute)
		before := a.Snapshot()

		for _, names := range [][]string{{"Blue", "Red"}, {"Red"}, {}, {"Red", "Blue", "Green"}} {
			err := a.ApplyRemoteUpdate(update(names...))
			assert.ErrorIs(t, err, ErrConfigMismatch)
			var mismatch *ConfigMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, "10.0.0.1", mismatch.Address)
		}
		assert.Equal(t, before, a.Snapshot())
	})

	t.Run("unknown node", func(t *testing.T) {
		a, _, _, _ := newSession(t)
		a.Start(time.Minute)
		err := a.ApplyRemoteUpdate(update("Red", "Blue"))
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("ignored while not running", func(t *testing.T) {
		a, clock, _, reg := newSession(t)
		n, _ := reg.Upsert("10.0.0.1", "gate")
		a.RegisterNode(n)

		require.NoError(t, a.ApplyRemoteUpdate(update("Red", "Blue")))
		snap := a.Snapshot()
		assert.Equal(t, -1, snap.Nodes[0].Current)
		assert.Equal(t, []int64{0, 0}, snap.Nodes[0].CapturedMs)

		a.Start(time.Second)
		clock.Advance(2 * time.Second)
		require.NoError(t, a.ApplyRemoteUpdate(update("Red", "Blue")))
		assert.Equal(t, -1, a.Snapshot().Nodes[0].Current)
	})

	t.Run("applied while running", func(t *testing.T) {
		a, _, _, reg := newSession(t)
		n, _ := reg.Upsert("10.0.0.1", "gate")
		a.RegisterNode(n)
		a.Start(time.Minute)

		require.NoError(t, a.ApplyRemoteUpdate(update("Red", "Blue")))
		snap := a.Snapshot()
		assert.Equal(t, 1, snap.Nodes[0].Current)
		assert.Equal(t, []int64{1200, 3400}, snap.Nodes[0].CapturedMs)
	})
}

func TestStartResetsCaptureState(t *testing.T) {
	a, _, _, reg := newSession(t)
	n, _ := reg.Upsert("10.0.0.1", "gate")
	a.RegisterNode(n)
	a.Start(time.Minute)
	require.NoError(t, a.ApplyRemoteUpdate(Update{
		Address: "10.0.0.1", TeamNames: []string{"Red", "Blue"}, Current: 0, CapturedMs: []int64{5, 6},
	}))

	a.Start(time.Minute)

	snap := a.Snapshot()
	assert.Equal(t, -1, snap.Nodes[0].Current)
	assert.Equal(t, []int64{0, 0}, snap.Nodes[0].CapturedMs)
}

func TestReportUpdate(t *testing.T) {
	_, err := Report{TeamNames: []string{"Red"}}.Update()
	assert.ErrorIs(t, err, ErrEmptyReport)

	u, err := Report{
		TeamNames: []string{"Red"},
		Nodes:     []NodeReport{{Address: "10.0.0.1", Name: "gate", Current: 0, CapturedMs: []int64{7}}},
	}.Update()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", u.Address)
	assert.Equal(t, []int64{7}, u.CapturedMs)
}

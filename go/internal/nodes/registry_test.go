package nodes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertKeepsSingleNodePerAddress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(clock)

	n, created := reg.Upsert("10.0.0.5", "gate-a")
	require.True(t, created)
	first := n.LastSeenAt

	var last time.Time
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		n, created = reg.Upsert("10.0.0.5", "gate-b")
		assert.False(t, created)
		last = clock.Now()
	}

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "gate-b", reg.Find("10.0.0.5").Name)
	assert.Equal(t, last, reg.Find("10.0.0.5").LastSeenAt)
	assert.True(t, last.After(first))
}

func TestRegistryOrder(t *testing.T) {
	reg := NewRegistry(clockwork.NewFakeClock())
	reg.Upsert("a", "")
	reg.Upsert("b", "")
	reg.Upsert("c", "")
	reg.Upsert("a", "again")

	var addrs []string
	for _, n := range reg.All() {
		addrs = append(addrs, n.Address)
	}
	assert.Equal(t, []string{"a", "b", "c"}, addrs)
	assert.Equal(t, 2, reg.Index("c"))
	assert.Equal(t, -1, reg.Index("zz"))
	assert.Nil(t, reg.Find("zz"))
}

func TestTouchAndOnline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(clock)

	assert.False(t, reg.Touch("10.0.0.1"))

	n, _ := reg.Upsert("10.0.0.1", "gate")
	clock.Advance(45 * time.Second)
	assert.False(t, reg.Online(n, 30*time.Second))

	require.True(t, reg.Touch("10.0.0.1"))
	assert.Equal(t, clock.Now(), n.LastSeenAt)
	assert.True(t, reg.Online(n, 30*time.Second))
}

func TestNodeJSON(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000123))
	reg := NewRegistry(clock)
	n, _ := reg.Upsert("10.0.0.7", "finish")

	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ipaddr":"10.0.0.7","name":"finish","last_seen":1700000000123}`, string(data))
}

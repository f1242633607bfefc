package nodeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.5/api/v1/settings", Command{Address: "10.0.0.5", Path: "/api/v1/settings"}.URL())
	assert.Equal(t, "http://127.0.0.1:9000/x", Command{Address: "http://127.0.0.1:9000/", Path: "/x"}.URL())
}

func TestClientDo(t *testing.T) {
	var (
		gotMethod string
		gotType   string
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(time.Second)

	err := client.Do(context.Background(), Command{
		Address: srv.URL,
		Method:  http.MethodPost,
		Path:    "/api/v1/clear_laps",
		Body:    map[string]int{"offset": 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, float64(3000), gotBody["offset"])
	assert.Equal(t, "application/json", gotType)

	err = client.Do(context.Background(), Command{Address: srv.URL, Path: "/fail"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestClientLazyBodyEvaluatedAtSend(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := 1
	cmd := Command{
		Address: srv.URL,
		Method:  http.MethodPost,
		Path:    "/",
		Lazy:    func() any { return map[string]int{"n": n} },
	}
	n = 2

	require.NoError(t, NewClient(time.Second).Do(context.Background(), cmd))
	assert.Equal(t, 2, got["n"])
}

type recordingSender struct {
	mu    sync.Mutex
	cmds  []Command
	err   error
	block chan struct{}
	done  chan struct{}
}

func (s *recordingSender) Do(ctx context.Context, cmd Command) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.cmds = append(s.cmds, cmd)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

func TestDispatcherDeliversAndCounts(t *testing.T) {
	sender := &recordingSender{done: make(chan struct{}, 8)}
	counters := &Counters{}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 2, QueueSize: 8, Timeout: time.Second}, counters)
	d.Start(context.Background())
	defer d.Stop()

	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		d.Push(Command{Address: addr, Path: "/api/v1/settings"})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-sender.done:
		case <-time.After(2 * time.Second):
			t.Fatal("push not delivered")
		}
	}

	assert.Eventually(t, func() bool { return counters.Snapshot().Sent == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(0), counters.Snapshot().Failed)
}

func TestDispatcherCountsFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused"), done: make(chan struct{}, 1)}
	counters := &Counters{}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 1, QueueSize: 1, Timeout: time.Second}, counters)
	d.Start(context.Background())
	defer d.Stop()

	d.Push(Command{Address: "10.0.0.9", Path: "/api/v1/ctf/stop"})
	<-sender.done

	assert.Eventually(t, func() bool { return counters.Snapshot().Failed == 1 }, time.Second, 10*time.Millisecond)
}

func TestDispatcherTimesOutSlowNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	counters := &Counters{}
	d := NewDispatcher(NewClient(5*time.Second), DispatcherConfig{Workers: 1, QueueSize: 1, Timeout: 50 * time.Millisecond}, counters)
	d.Start(context.Background())
	defer d.Stop()

	d.Push(Command{Address: strings.TrimPrefix(srv.URL, "http://"), Path: "/slow"})

	assert.Eventually(t, func() bool { return counters.Snapshot().Failed == 1 }, time.Second, 10*time.Millisecond)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	counters := &Counters{}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 1, QueueSize: 1, Timeout: time.Second}, counters)

	// not started: the queue holds one command, the rest are dropped
	d.Push(Command{Address: "a"})
	d.Push(Command{Address: "b"})
	d.Push(Command{Address: "c"})

	assert.Equal(t, uint64(2), counters.Snapshot().Dropped)
	close(sender.block)
}

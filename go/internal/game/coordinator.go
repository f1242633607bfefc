package game

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/ctf"
	"github.com/mcdev12/gatetimer/go/internal/events"
	"github.com/mcdev12/gatetimer/go/internal/nodes"
	"github.com/mcdev12/gatetimer/go/internal/race"
	"github.com/mcdev12/gatetimer/go/internal/settings"
	"github.com/rs/zerolog/log"
)

// DefaultStaleAfter is how long a silent node is still reported online.
const DefaultStaleAfter = 30 * time.Second

// Coordinator is the single entry point for every state change. It owns the
// config store, the node registry and both aggregators, and linearizes all
// mutations behind one lock. Pushes to nodes are handed to the pusher and
// never awaited.
type Coordinator struct {
	mu sync.RWMutex

	clock     clockwork.Clock
	store     *settings.Store
	registry  *nodes.Registry
	race      *race.Aggregator
	ctf       *ctf.Aggregator
	pusher    nodeclient.Pusher
	publisher events.Publisher

	maxLaps    int
	staleAfter time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithPublisher exports accepted events.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithMaxLaps caps the laps kept per player.
func WithMaxLaps(n int) Option {
	return func(c *Coordinator) { c.maxLaps = n }
}

// WithStaleAfter sets the window after which a silent node is reported offline.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Coordinator) { c.staleAfter = d }
}

// New creates a coordinator around store. Call LoadConfig before serving.
func New(store *settings.Store, pusher nodeclient.Pusher, opts ...Option) *Coordinator {
	c := &Coordinator{
		clock:      clockwork.NewRealClock(),
		store:      store,
		pusher:     pusher,
		publisher:  events.NoopPublisher{},
		maxLaps:    race.DefaultMaxLaps,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry = nodes.NewRegistry(c.clock)
	c.race = race.NewAggregator(pusher, c.clock, race.WithMaxLaps(c.maxLaps))
	c.ctf = ctf.NewAggregator(pusher, c.clock)
	c.ctf.OnConfigChange(store.Config())
	return c
}

// LoadConfig restores persisted settings and rebuilds the derived state.
func (c *Coordinator) LoadConfig(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded, err := c.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("keeping default configuration")
	}

	cfg := c.store.Config()
	c.race.OnConfigChange(cfg)
	c.ctf.OnConfigChange(cfg)

	log.Info().Bool("loaded", loaded).Str("mode", c.mode().String()).Msg("configuration ready")
	return loaded, err
}

// Mode returns the current game mode.
func (c *Coordinator) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode()
}

func (c *Coordinator) mode() Mode {
	return ModeFromSetting(c.store.Config().GameMode)
}

// require guards mode-specific operations. Callers hold c.mu.
func (c *Coordinator) require(want Mode) (Result, bool) {
	if c.mode() != want {
		return wrongMode(want), false
	}
	return Result{}, true
}

// RegisterOrTouchNode records contact from a node and, when the node is new
// to the active game, pushes it the configuration it needs.
func (c *Coordinator) RegisterOrTouchNode(address, name, player string) Result {
	if address == "" {
		return errorResult("Failed to add Node")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.register(address, name, player)
	return okResult("Node added!")
}

func (c *Coordinator) register(address, name, player string) {
	node, created := c.registry.Upsert(address, name)
	if created {
		log.Info().Str("address", address).Str("name", name).Msg("node joined")
		c.publish(events.TypeNodeJoined, node)
	}

	cfg := c.store.Config()
	switch c.mode() {
	case ModeCTF:
		if c.ctf.RegisterNode(node) {
			c.pushCtfConfig(address, cfg)
		}
	case ModeRace:
		if c.race.AddPlayer(address, player) {
			// a new node shifts every node's slot index
			c.pushAll(cfg)
		}
	}
}

// ApplyConfigUpdate applies a batch of settings all-or-nothing, then
// re-projects the configuration to every node.
func (c *Coordinator) ApplyConfigUpdate(ctx context.Context, updates map[string]any) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	flat, err := c.store.ApplyBatch(ctx, updates)
	if err != nil {
		log.Warn().Err(err).Msg("configuration update rejected")
		if errors.Is(err, settings.ErrUnknownKey) || errors.Is(err, settings.ErrInvalidValue) {
			return errorResult("Invalid key/value pair: " + err.Error())
		}
		return errorResult(err.Error())
	}

	cfg := c.store.Config()
	c.pushAll(cfg)
	c.race.OnConfigChange(cfg)
	c.ctf.OnConfigChange(cfg)

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	c.publish(events.TypeConfigChanged, map[string]any{"keys": keys, "mode": c.mode().String()})

	return Result{Status: StatusOK, Config: flat}
}

// HandleCtfReport ingests a node's capture state. Roster mismatches and
// unknown nodes are healed (config re-push, registration) and the node is
// asked to retry.
func (c *Coordinator) HandleCtfReport(report ctf.Report) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.require(ModeCTF); !ok {
		return res
	}

	u, err := report.Update()
	if err != nil {
		return errorResult(err.Error())
	}
	c.registry.Touch(u.Address)

	err = c.ctf.ApplyRemoteUpdate(u)
	var (
		mismatch *ctf.ConfigMismatchError
		notFound *ctf.NodeNotFoundError
	)
	switch {
	case errors.As(err, &mismatch):
		log.Warn().Str("address", mismatch.Address).Msg("ctf roster mismatch, re-pushing config")
		c.pushCtfConfig(mismatch.Address, c.store.Config())
		return retryResult("Config invalid")
	case errors.As(err, &notFound):
		log.Warn().Str("address", notFound.Address).Msg("ctf node not found, registering")
		c.register(notFound.Address, notFound.Name, "")
		return retryResult("Node not found, try again")
	case err != nil:
		return errorResult(err.Error())
	}

	if c.ctf.IsRunning() {
		c.publish(events.TypeCtfCapture, report)
	}
	return okResult("")
}

// HandleRaceLap ingests a lap. A lap from an unknown player registers it;
// the lap itself is lost and the next one is recorded.
func (c *Coordinator) HandleRaceLap(report race.LapReport) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.require(ModeRace); !ok {
		return res
	}

	c.registry.Touch(report.Address)

	lap, err := c.race.RecordLap(report)
	var notFound *race.PlayerNotFoundError
	if errors.As(err, &notFound) {
		log.Info().Str("address", notFound.Address).Msg("lap from unknown player, registering")
		c.register(notFound.Address, notFound.Name, notFound.Name)
		return okResult("")
	}

	c.publish(events.TypeLapRecorded, map[string]any{"ipv4": report.Address, "player": report.Player, "lap": lap})
	return okResult("")
}

// StartCtf opens a capture-the-flag session.
func (c *Coordinator) StartCtf(duration time.Duration) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.require(ModeCTF); !ok {
		return res
	}
	if duration <= 0 {
		return errorResult("duration_ms must be positive")
	}

	c.ctf.Start(duration)
	c.publish(events.TypeCtfStarted, map[string]any{"duration_ms": duration.Milliseconds(), "team_names": c.ctf.TeamNames()})
	return Result{Status: StatusOK}
}

// StopCtf ends the session.
func (c *Coordinator) StopCtf() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.require(ModeCTF); !ok {
		return res
	}

	c.ctf.Stop()
	c.publish(events.TypeCtfStopped, struct{}{})
	return Result{Status: StatusOK}
}

// ClearLaps resets the race; nodes suppress detection for delay.
func (c *Coordinator) ClearLaps(delay time.Duration) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.require(ModeRace); !ok {
		return res
	}

	c.race.ResetAll(delay)
	return Result{Status: StatusOK}
}

// pushAll sends each node its projection for the current mode. Callers hold c.mu.
func (c *Coordinator) pushAll(cfg settings.Config) {
	ctfMode := c.mode() == ModeCTF
	for i, n := range c.registry.All() {
		if ctfMode {
			c.pushCtfConfig(n.Address, cfg)
			continue
		}
		c.pushSettings(n.Address, raceProjection(cfg, i))
	}
}

func (c *Coordinator) pushCtfConfig(address string, cfg settings.Config) {
	c.pushSettings(address, ctfProjection(cfg))
}

func (c *Coordinator) pushSettings(address string, body map[string]any) {
	c.pusher.Push(nodeclient.Command{
		Address: address,
		Method:  http.MethodPost,
		Path:    SettingsPath,
		Body:    body,
	})
}

func (c *Coordinator) publish(eventType string, payload any) {
	ev, err := events.NewEvent(eventType, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := c.publisher.Publish(context.Background(), ev); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

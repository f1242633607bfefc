package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/events"
	"github.com/mcdev12/gatetimer/go/internal/game"
	"github.com/mcdev12/gatetimer/go/internal/live"
	"github.com/mcdev12/gatetimer/go/internal/settings"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Coordinator *game.Coordinator
	Dispatcher  *nodeclient.Dispatcher
	Counters    *nodeclient.Counters
	Broadcaster *live.Broadcaster

	natsConn *nats.Conn
}

func setupServices(cfg *ServerConfig, persister settings.Persister) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Dispatcher → Coordinator → Live feed
	clock := clockwork.NewRealClock()

	counters := &nodeclient.Counters{}
	dispatcher := nodeclient.NewDispatcher(
		nodeclient.NewClient(cfg.Push.Timeout),
		cfg.dispatcherConfig(),
		counters,
	)

	s := &Services{
		Dispatcher: dispatcher,
		Counters:   counters,
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.Subject

		conn, err := events.ConnectNATS(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		s.natsConn = conn
		publisher = events.NewNATSPublisher(conn, natsCfg.SubjectPrefix)
		log.Info().Str("url", cfg.NATS.URL).Str("subject", natsCfg.SubjectPrefix).Msg("exporting events to NATS")
	}

	s.Coordinator = game.New(
		settings.NewStore(persister),
		dispatcher,
		game.WithClock(clock),
		game.WithPublisher(publisher),
		game.WithMaxLaps(cfg.Race.MaxLaps),
		game.WithStaleAfter(cfg.Nodes.StaleAfter),
	)

	liveCfg := live.DefaultConfig()
	liveCfg.Interval = cfg.Live.Interval
	s.Broadcaster = live.NewBroadcaster(s.Coordinator, clock, liveCfg)

	return s, nil
}

// Start restores the game settings and starts the push workers.
func (s *Services) Start(ctx context.Context) {
	if _, err := s.Coordinator.LoadConfig(ctx); err != nil {
		log.Warn().Err(err).Msg("starting with default settings")
	}
	s.Dispatcher.Start(ctx)
}

// Stop releases every service. Settings are not written here: every
// accepted batch is already persisted, and a blob rejected at load must
// survive until the user replaces it.
func (s *Services) Stop() {
	s.Broadcaster.Close()
	s.Dispatcher.Stop()
	if s.natsConn != nil {
		if err := s.natsConn.Drain(); err != nil {
			log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
}

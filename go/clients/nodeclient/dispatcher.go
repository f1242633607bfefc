package nodeclient

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DispatcherConfig bounds the background push machinery.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// DefaultDispatcherConfig returns the production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:   4,
		QueueSize: 256,
		Timeout:   3 * time.Second,
	}
}

// Sender performs a single command.
type Sender interface {
	Do(ctx context.Context, cmd Command) error
}

// Dispatcher delivers commands fire-and-forget through a bounded queue.
// Push never blocks; a full queue drops the command.
type Dispatcher struct {
	sender  Sender
	config  DispatcherConfig
	metrics MetricsCollector
	queue   chan Command

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before commands are delivered.
func NewDispatcher(sender Sender, config DispatcherConfig, metrics MetricsCollector) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Dispatcher{
		sender:  sender,
		config:  config,
		metrics: metrics,
		queue:   make(chan Command, config.QueueSize),
	}
}

// Start launches the worker pool. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(workerCtx, i)
	}

	log.Info().
		Int("workers", d.config.Workers).
		Int("queue_size", d.config.QueueSize).
		Dur("timeout", d.config.Timeout).
		Msg("node dispatcher started")
}

// Stop cancels in-flight pushes and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	log.Info().Int("pending", len(d.queue)).Msg("node dispatcher stopped")
}

// Push enqueues cmd without waiting for delivery.
func (d *Dispatcher) Push(cmd Command) {
	select {
	case d.queue <- cmd:
	default:
		d.metrics.RecordDrop(cmd.Path)
		log.Warn().
			Str("address", cmd.Address).
			Str("path", cmd.Path).
			Msg("push queue full, dropping command")
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.queue:
			d.send(ctx, cmd)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, cmd Command) {
	reqCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Do(reqCtx, cmd)
	elapsed := time.Since(start)
	d.metrics.RecordPush(cmd.Path, err == nil, elapsed)

	if err != nil {
		log.Warn().
			Err(err).
			Str("address", cmd.Address).
			Str("method", cmd.Method).
			Str("path", cmd.Path).
			Msg("push to node failed")
		return
	}

	log.Debug().
		Str("address", cmd.Address).
		Str("method", cmd.Method).
		Str("path", cmd.Path).
		Dur("duration", elapsed).
		Msg("push delivered")
}

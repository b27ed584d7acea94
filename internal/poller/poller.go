package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorbase/realtime/internal/api"
	"github.com/tutorbase/realtime/internal/metrics"
	"github.com/tutorbase/realtime/internal/model"
)

// ChannelState reports whether the realtime channel is currently open. The
// poller only fetches while it is not.
type ChannelState interface {
	Connected() bool
}

// Sink receives fetched fallback data.
type Sink interface {
	HandleBalance(balance model.Balance) error
	HandleMetrics(m model.DashboardMetrics) error
}

// Config holds poller configuration.
type Config struct {
	UserID   int64
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Poller periodically fetches balance and dashboard metrics over REST while
// the realtime channel is disconnected.
type Poller struct {
	cfg     Config
	client  *api.Client
	channel ChannelState
	sink    Sink
	logger  *slog.Logger
	met     *metrics.Set

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client *api.Client, channel ChannelState, sink Sink, logger *slog.Logger, met *metrics.Set) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		channel: channel,
		sink:    sink,
		logger:  logger,
		met:     met,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("fallback poller started",
		"interval", p.cfg.Interval,
		"user_id", p.cfg.UserID,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if p.channel != nil && p.channel.Connected() {
				continue
			}
			p.poll()
		}
	}
}

// poll fetches one round of fallback data.
func (p *Poller) poll() {
	start := time.Now()

	if err := p.pollBalance(); err != nil {
		p.logger.Warn("failed to poll balance", "err", err)
		p.met.IncPolls("balance", "error")
	} else {
		p.met.IncPolls("balance", "ok")
	}

	if err := p.pollMetrics(); err != nil {
		p.logger.Warn("failed to poll dashboard metrics", "err", err)
		p.met.IncPolls("metrics", "error")
	} else {
		p.met.IncPolls("metrics", "ok")
	}

	p.logger.Debug("poll cycle complete", "duration", time.Since(start))
}

func (p *Poller) pollBalance() error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	balance, err := p.client.GetBalance(ctx, p.cfg.UserID)
	if err != nil {
		return err
	}
	if p.sink != nil {
		return p.sink.HandleBalance(*balance)
	}
	return nil
}

func (p *Poller) pollMetrics() error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	m, err := p.client.GetDashboardMetrics(ctx, p.cfg.UserID)
	if err != nil {
		return err
	}
	if p.sink != nil {
		return p.sink.HandleMetrics(*m)
	}
	return nil
}

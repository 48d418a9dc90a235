package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/store"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

// DefaultPollInterval matches the refresh cadence of the operator panel.
const DefaultPollInterval = 3 * time.Second

// Refresher reloads and reconciles the log.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Poller keeps a Refresher current. It refreshes on a fixed interval and,
// when the store can push changes, immediately after every write.
type Poller struct {
	target   Refresher
	watcher  store.Watcher
	interval time.Duration
	logger   *logger.Logger
}

// NewPoller creates a poller. st is used only to detect store.Watcher.
func NewPoller(target Refresher, st store.LogStore, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		target:   target,
		interval: interval,
		logger:   log.Named("poller"),
	}
	if w, ok := st.(store.Watcher); ok {
		p.watcher = w
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.target.Refresh(ctx)

	var changes <-chan struct{}
	if p.watcher != nil {
		ch, err := p.watcher.Watch(ctx)
		if err != nil {
			p.logger.Warn("store watch unavailable, polling only", zap.Error(err))
		} else {
			changes = ch
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("poller started",
		zap.Duration("interval", p.interval),
		zap.Bool("watching", changes != nil),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.target.Refresh(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			p.target.Refresh(ctx)
		}
	}
}

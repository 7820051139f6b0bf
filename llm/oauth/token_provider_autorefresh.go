package oauth

import (
	"context"
	"time"

	"github.com/zhenzou/executors"

	"github.com/ronakrm/promptrelay/internal/log"
)

const (
	defaultAutoRefreshInterval = 1 * time.Minute
	defaultRefreshBefore       = 5 * time.Minute
)

// AutoRefreshOptions controls the background refresh schedule.
type AutoRefreshOptions struct {
	// Interval between refresh checks.
	Interval time.Duration
	// RefreshBefore refreshes credentials that expire within this window.
	RefreshBefore time.Duration
}

// StartAutoRefresh schedules a background task that refreshes the credentials
// before they expire. Calling it again while running is a no-op.
func (p *TokenProvider) StartAutoRefresh(ctx context.Context, opts AutoRefreshOptions) {
	if opts.Interval <= 0 {
		opts.Interval = defaultAutoRefreshInterval
	}

	if opts.RefreshBefore <= 0 {
		opts.RefreshBefore = defaultRefreshBefore
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if p.refreshCancel != nil {
		return
	}

	executor := executors.NewPoolScheduleExecutor(executors.WithMaxConcurrent(1))

	cancelFunc, err := executor.ScheduleFuncAtFixRate(
		func(taskCtx context.Context) {
			p.refreshIfExpiring(taskCtx, opts.RefreshBefore)
		},
		opts.Interval,
	)
	if err != nil {
		log.Error(ctx, "failed to schedule token refresh", log.Cause(err))
		_ = executor.Shutdown(ctx)

		return
	}

	p.refreshCancel = cancelFunc
	p.refreshExecutor = executor

	log.Debug(ctx, "oauth auto refresh started",
		log.Duration("interval", opts.Interval),
		log.Duration("refresh_before", opts.RefreshBefore),
	)
}

// StopAutoRefresh cancels the background refresh schedule.
func (p *TokenProvider) StopAutoRefresh() {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if p.refreshCancel == nil {
		return
	}

	p.refreshCancel()
	p.refreshCancel = nil

	if p.refreshExecutor != nil {
		_ = p.refreshExecutor.Shutdown(context.Background())
		p.refreshExecutor = nil
	}
}

// refreshIfExpiring refreshes the credentials when they expire within the
// given window. Refreshes ride the same singleflight group as Get, so
// concurrent callers never trigger duplicate refreshes.
func (p *TokenProvider) refreshIfExpiring(ctx context.Context, window time.Duration) {
	p.mu.RLock()
	creds := p.creds
	p.mu.RUnlock()

	if creds == nil || creds.RefreshToken == "" {
		return
	}

	if !creds.IsExpired(time.Now().Add(window)) {
		return
	}

	if _, err := p.Get(ctx); err != nil {
		log.Warn(ctx, "background token refresh failed", log.Cause(err))
	}
}

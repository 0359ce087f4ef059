package gatewayclient

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cvmfs-go/graft/internal/logger"
)

// RunRefreshLoop is the lease's background keep-alive actor. It polls every
// pollInterval and calls Refresh, which itself no-ops unless refreshInterval
// has elapsed. The loop exits when the lease is cancelled or ctx is done.
//
// Callers should run this in its own goroutine immediately after Acquire
// succeeds, and rely on Cancel to stop it rather than cancelling ctx
// directly, so the final refresh-stop handshake completes cleanly.
func (l *Lease) RunRefreshLoop(ctx context.Context) {
	l.refreshStarted.Store(true)
	defer close(l.refreshStopped)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopRefresh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				logger.Error("lease refresh failed", logger.Err(err))
			}
		}
	}
}

// InstallSignalCancel arranges for SIGINT, SIGTERM, and SIGABRT to cancel
// the lease exactly once before the process exits. The returned stop
// function removes the handler; callers that reach a clean Cancel() on
// their own should call stop to avoid a redundant cancellation attempt.
func (l *Lease) InstallSignalCancel() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)

	done := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, cancelling lease", logger.Path(sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = l.Cancel(ctx)
			os.Exit(1)
		case <-done:
		}
	}()

	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

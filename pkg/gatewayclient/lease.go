package gatewayclient

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	graftsqlerrors "github.com/cvmfs-go/graft/internal/graftsql/errors"
	"github.com/cvmfs-go/graft/internal/logger"
)

// Lease holds a gateway lease for one repository path and drives the
// background refresh actor keeping it alive.
type Lease struct {
	client  *Client
	repo    string
	path    string
	token   string
	metrics *Metrics

	lastRefresh    atomic.Int64 // unix seconds
	refreshDenied  atomic.Bool  // gateway doesn't support PATCH
	cancelled      atomic.Bool
	refreshStarted atomic.Bool // set by RunRefreshLoop; Cancel only waits on refreshStopped if this is true
	stopRefresh    chan struct{}
	refreshStopped chan struct{}

	// CurrentRevision and CurrentRootHash are the gateway's view of the
	// repository at acquisition time, zero/empty if the gateway reported
	// none (a brand new repository). The driver reconciles these against
	// the locally fetched manifest before applying any changeset.
	CurrentRevision uint64
	CurrentRootHash string
}

// AcquireOptions configures the retry behavior of Acquire.
type AcquireOptions struct {
	// BusyRetryInterval is how long to sleep between retries when the
	// gateway reports the lease path is busy. Zero means no retry:
	// a single busy reply is surfaced as LeaseBusy immediately.
	BusyRetryInterval time.Duration
	// Metadata is forwarded to the gateway as free-form lease metadata
	// (mirrors CVMFS_GATEWAY_METADATA in the original publisher).
	Metadata string
}

// Acquire requests an exclusive write lease on repo+leasePath from the
// gateway, retrying on a busy reply and on transport failures until ctx is
// cancelled. A non-busy gateway reply or an HTTP error status ends the
// attempt with LeaseDenied; with a non-positive BusyRetryInterval a busy
// reply fails at once with LeaseBusy.
func Acquire(ctx context.Context, client *Client, repo, leasePath string, opts AcquireOptions, metrics *Metrics) (*Lease, error) {
	req := acquireRequest{KeyID: client.keyID, Secret: client.secret, Metadata: opts.Metadata}

	attempt := 0
	for {
		attempt++
		var resp acquireResponse
		_, err := client.do(ctx, http.MethodPost, leasePathURL(repo, leasePath), req, &resp)

		if err == nil {
			switch resp.Status {
			case statusOK:
				lease := &Lease{
					client:          client,
					repo:            repo,
					path:            leasePath,
					token:           resp.SessionToken,
					metrics:         metrics,
					stopRefresh:     make(chan struct{}),
					refreshStopped:  make(chan struct{}),
					CurrentRevision: resp.CurrentRevision,
					CurrentRootHash: resp.CurrentRootHash,
				}
				lease.lastRefresh.Store(time.Now().Unix())
				logger.Info("lease acquired", logger.LeasePath(leasePath),
					logger.Revision(resp.CurrentRevision), logger.RootHash(resp.CurrentRootHash))
				metrics.incAcquired()
				return lease, nil
			case statusBusy:
				metrics.incBusy()
				if opts.BusyRetryInterval <= 0 {
					return nil, graftsqlerrors.Newf(graftsqlerrors.LeaseBusy, "lease path %q is busy", leasePath)
				}
				logger.Warn("lease busy, retrying", logger.LeasePath(leasePath),
					logger.Attempt(attempt), logger.RetryAfter(int(opts.BusyRetryInterval.Seconds())))
			default:
				return nil, graftsqlerrors.Newf(graftsqlerrors.LeaseDenied, "gateway denied lease for %q: %s", leasePath, resp.Reason)
			}
		} else {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return nil, graftsqlerrors.Wrap(graftsqlerrors.LeaseDenied, err, "gateway rejected lease acquisition")
			}
			logger.Warn("lease acquisition request failed, retrying", logger.Err(err), logger.Attempt(attempt))
		}

		select {
		case <-ctx.Done():
			return nil, graftsqlerrors.Wrap(graftsqlerrors.TransportError, ctx.Err(), "lease acquisition cancelled")
		case <-time.After(opts.BusyRetryInterval):
		}
	}
}

// Token returns the lease's session token.
func (l *Lease) Token() string { return l.token }

// Refresh sends a PATCH to extend the lease, but only if at least
// refreshInterval has elapsed since the last successful (or suppressed)
// refresh. A 405 response is treated as "this gateway doesn't support
// refresh" and marks the lease refreshed so the condition isn't retried on
// every poll.
func (l *Lease) Refresh(ctx context.Context) error {
	if time.Since(time.Unix(l.lastRefresh.Load(), 0)) < refreshInterval {
		return nil
	}
	if l.refreshDenied.Load() {
		l.lastRefresh.Store(time.Now().Unix())
		return nil
	}

	var resp endResponse
	_, err := l.client.do(ctx, http.MethodPatch, sessionURL(l.token), nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusMethodNotAllowed {
			l.refreshDenied.Store(true)
			l.lastRefresh.Store(time.Now().Unix())
			logger.Warn("gateway does not support lease refresh", logger.LeasePath(l.path))
			return nil
		}
		l.metrics.incRefreshFailed()
		logger.Error("lease refresh request failed", logger.Err(err))
		return graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "lease refresh request failed")
	}

	if resp.Status != statusOK {
		l.metrics.incRefreshFailed()
		return graftsqlerrors.Newf(graftsqlerrors.LeaseDenied, "lease refresh failed: %s", resp.Reason)
	}

	l.lastRefresh.Store(time.Now().Unix())
	l.metrics.incRefreshed()
	logger.Debug("lease refreshed", logger.LeasePath(l.path))
	return nil
}

// Commit posts the changeset's old and new root hashes to the gateway,
// finalizing the revision the lease protected. Commit implicitly ends the
// refresh cycle: callers should stop the background actor immediately
// afterward.
func (l *Lease) Commit(ctx context.Context, oldRootHash, newRootHash string, priority int64) error {
	req := commitRequest{OldRootHash: oldRootHash, NewRootHash: newRootHash, Priority: priority}

	var resp endResponse
	_, err := l.client.do(ctx, http.MethodPost, "/commit", req, &resp)
	if err != nil {
		return graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "commit request failed")
	}
	if resp.Status != statusOK {
		return graftsqlerrors.Newf(graftsqlerrors.LeaseDenied, "commit rejected: %s", resp.Reason)
	}

	logger.Info("commit accepted", logger.RootHash(newRootHash))
	return nil
}

// Cancel releases the lease and stops the background refresh actor, if
// running. It is idempotent: calling it more than once is a no-op after the
// first call.
func (l *Lease) Cancel(ctx context.Context) error {
	if !l.cancelled.CompareAndSwap(false, true) {
		return nil
	}

	if l.stopRefresh != nil {
		close(l.stopRefresh)
		if l.refreshStarted.Load() {
			<-l.refreshStopped
		}
	}

	var resp endResponse
	_, err := l.client.do(ctx, http.MethodDelete, sessionURL(l.token), nil, &resp)
	if err != nil {
		logger.Error("lease cancellation request failed", logger.Err(err))
		return graftsqlerrors.Wrap(graftsqlerrors.TransportError, err, "lease cancellation request failed")
	}
	if resp.Status != statusOK {
		logger.Error("lease cancellation failed", logger.LeasePath(l.path))
		return graftsqlerrors.Newf(graftsqlerrors.LeaseDenied, "lease cancellation failed: %s", resp.Reason)
	}

	logger.Info("lease cancelled", logger.LeasePath(l.path))
	return nil
}

// Package lock implements the per-wallet mutual-exclusion gate of
// spec.md §4.7: every state-mutating wallet operation runs inside
// RunLocked, which either acquires the wallet's lock within Wait or
// fails with a lock-timeout, and auto-releases after Hold to protect
// against a crashed holder.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obyte-wallet/walletd/internal/metrics"
	"github.com/obyte-wallet/walletd/internal/walleterr"
)

// Options bounds one RunLocked call.
type Options struct {
	Wait time.Duration
	Hold time.Duration
}

// walletLock is a single-token mutex: the token sits in ch when the lock
// is free. Acquiring is a channel receive, which composes cleanly with
// context deadlines (unlike sync.Mutex, a pending receive that loses the
// select can simply be abandoned without leaking the lock).
type walletLock struct {
	ch chan struct{}
}

func newWalletLock() *walletLock {
	wl := &walletLock{ch: make(chan struct{}, 1)}
	wl.ch <- struct{}{}
	return wl
}

// Manager owns one lock per wallet id, created lazily.
type Manager struct {
	mu      sync.Mutex
	wallets map[string]*walletLock
}

// New constructs an empty lock manager.
func New() *Manager {
	return &Manager{wallets: make(map[string]*walletLock)}
}

func (m *Manager) walletLockFor(id string) *walletLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl, ok := m.wallets[id]
	if !ok {
		wl = newWalletLock()
		m.wallets[id] = wl
	}
	return wl
}

// RunLocked acquires the walletID lock within opts.Wait, runs fn under a
// context bounded by opts.Hold, and releases the lock either when fn
// returns or when the hold budget expires, whichever is first. An
// auto-expired fn's eventual result is discarded; its side effects must
// be idempotent per spec.md §5's cancellation semantics — the lock is
// the safety net against a crashed or wedged holder, not a cancellation
// mechanism fn can rely on completing instantly.
func (m *Manager) RunLocked(ctx context.Context, walletID string, opts Options, fn func(ctx context.Context) error) error {
	wl := m.walletLockFor(walletID)

	waitCtx, cancelWait := context.WithTimeout(ctx, opts.Wait)
	defer cancelWait()

	select {
	case <-wl.ch:
	case <-waitCtx.Done():
		metrics.LockAcquireTotal.WithLabelValues("timeout").Inc()
		return walleterr.New(walleterr.LockTimeout, fmt.Sprintf("could not acquire lock for wallet %s within %s", walletID, opts.Wait))
	}
	metrics.LockAcquireTotal.WithLabelValues("ok").Inc()
	acquiredAt := time.Now()

	var released int32
	release := func() {
		if atomic.CompareAndSwapInt32(&released, 0, 1) {
			metrics.LockHoldSeconds.Observe(time.Since(acquiredAt).Seconds())
			wl.ch <- struct{}{}
		}
	}

	holdCtx, cancelHold := context.WithTimeout(ctx, opts.Hold)
	defer cancelHold()

	done := make(chan error, 1)
	go func() { done <- fn(holdCtx) }()

	select {
	case err := <-done:
		release()
		return err
	case <-holdCtx.Done():
		release()
		metrics.LockAcquireTotal.WithLabelValues("hold_expired").Inc()
		return walleterr.New(walleterr.LockTimeout, fmt.Sprintf("lock hold expired for wallet %s after %s", walletID, opts.Hold))
	}
}
